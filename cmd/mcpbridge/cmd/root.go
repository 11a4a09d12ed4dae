// Package cmd provides the CLI commands for the bridge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpbridge/bridge/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcpbridge",
	Short: "mcpbridge - MCP editor bridge",
	Long: `mcpbridge mediates between an LLM-facing MCP endpoint and a fleet of
editor clients connected over TCP.

It exposes the commands and resources listed in the handlers directory's
handlers.yaml manifest as MCP tools and resources (prompt entries in the
manifest are not exposed), adds four client-management tools, forwards MCP
calls to the active editor client, and announces itself on the local
network via a UDP broadcast.

Quick start:
  1. Create a config file: mcpbridge.yaml
  2. Run: mcpbridge serve

Configuration:
  Config is loaded from mcpbridge.yaml in the current directory,
  $HOME/.mcpbridge/, or /etc/mcpbridge/.

  Environment variables can override config values with the MCP_BRIDGE_ prefix.
  Example: MCP_BRIDGE_SERVER_PORT=27182

Commands:
  serve       Start the bridge
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcpbridge.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
