// Package config defines the bridge's configuration schema and loading.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// BridgeConfig is the root configuration for the mcpbridge process.
type BridgeConfig struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Router    RouterConfig    `mapstructure:"router"`
	Editor    EditorConfig    `mapstructure:"editor"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Handlers  HandlersConfig  `mapstructure:"handlers"`
	LogLevel  string          `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	DevMode   bool            `mapstructure:"dev_mode"`
}

// ServerConfig configures the TCP listener that accepts editor connections.
type ServerConfig struct {
	Host    string `mapstructure:"host" validate:"omitempty,hostname|ip"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	BindAll bool   `mapstructure:"bind_all"`
}

// RouterConfig holds the request/response correlation settings.
// RequestTimeout is loaded and validated but not passed to the router; the
// router applies router.DefaultTimeout (30s) to any request whose context
// has no deadline.
type RouterConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`
}

// EditorConfig holds the editor-side main-thread dispatcher settings. The
// serve command does not start an editor-side dispatcher, so
// MainThreadTimeout is loaded and validated only.
type EditorConfig struct {
	MainThreadTimeout time.Duration `mapstructure:"main_thread_timeout" validate:"required,gt=0"`
}

// DiscoveryConfig holds the settings of the UDP broadcast announcing the
// listener to editors on the local network. Port and Enabled are loaded
// and validated (see validateDiscoveryPort); the hub does not read them and
// always announces, on the listener port plus one.
type DiscoveryConfig struct {
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Enabled bool `mapstructure:"enabled"`
}

// HandlersConfig configures handler discovery from disk.
type HandlersConfig struct {
	Dir string `mapstructure:"dir"`
}

const (
	defaultHost              = "127.0.0.1"
	defaultPort              = 27182
	defaultRequestTimeout    = 30 * time.Second
	defaultMainThreadTimeout = 5 * time.Second
)

// SetDefaults fills in zero-valued optional fields. Call before Validate.
func (c *BridgeConfig) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Router.RequestTimeout == 0 {
		c.Router.RequestTimeout = defaultRequestTimeout
	}
	if c.Editor.MainThreadTimeout == 0 {
		c.Editor.MainThreadTimeout = defaultMainThreadTimeout
	}
	if c.Discovery.Port == 0 {
		c.Discovery.Port = c.Server.Port + 1
	}
	// viper.IsSet distinguishes "not set" (zero value, defaults to true)
	// from "explicitly false".
	if !viper.IsSet("discovery.enabled") {
		c.Discovery.Enabled = true
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SetDevDefaults applies permissive overrides suited to local development.
// Does not force bind_all; only nudges the log level when dev mode is on
// and the caller never set one explicitly.
func (c *BridgeConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if !viper.IsSet("log_level") {
		c.LogLevel = "debug"
	}
}

// ListenAddr returns the host:port the server config binds, honoring
// BindAll.
func (c *ServerConfig) ListenAddr() string {
	host := c.Host
	if c.BindAll {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// DiscoveryAddr returns the host:port the discovery broadcaster binds.
func (c *DiscoveryConfig) DiscoveryAddr(serverHost string) string {
	return net.JoinHostPort(serverHost, strconv.Itoa(c.Port))
}
