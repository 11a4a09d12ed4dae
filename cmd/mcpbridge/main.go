// Command mcpbridge mediates between an LLM-facing MCP endpoint and a
// fleet of TCP-connected editor clients.
package main

import "github.com/mcpbridge/bridge/cmd/mcpbridge/cmd"

func main() {
	cmd.Execute()
}
