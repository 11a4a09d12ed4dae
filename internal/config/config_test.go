package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBridgeConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg BridgeConfig
	cfg.SetDefaults()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 27182 {
		t.Errorf("Server.Port = %d, want 27182", cfg.Server.Port)
	}
	if cfg.Router.RequestTimeout != 30*time.Second {
		t.Errorf("Router.RequestTimeout = %v, want 30s", cfg.Router.RequestTimeout)
	}
	if cfg.Editor.MainThreadTimeout != 5*time.Second {
		t.Errorf("Editor.MainThreadTimeout = %v, want 5s", cfg.Editor.MainThreadTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestBridgeConfig_SetDefaults_DiscoveryPortFollowsServerPort(t *testing.T) {
	t.Parallel()

	cfg := BridgeConfig{Server: ServerConfig{Port: 9000}}
	cfg.SetDefaults()

	if cfg.Discovery.Port != 9001 {
		t.Errorf("Discovery.Port = %d, want 9001 (server.port + 1)", cfg.Discovery.Port)
	}
}

func TestBridgeConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := BridgeConfig{
		Server: ServerConfig{Host: "0.0.0.0", Port: 9090},
		Router: RouterConfig{RequestTimeout: 10 * time.Second},
		Editor: EditorConfig{MainThreadTimeout: time.Second},
		Discovery: DiscoveryConfig{
			Port: 9091,
		},
		LogLevel: "warn",
	}
	cfg.SetDefaults()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host was overwritten: got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port was overwritten: got %d", cfg.Server.Port)
	}
	if cfg.Router.RequestTimeout != 10*time.Second {
		t.Errorf("Router.RequestTimeout was overwritten: got %v", cfg.Router.RequestTimeout)
	}
	if cfg.Editor.MainThreadTimeout != time.Second {
		t.Errorf("Editor.MainThreadTimeout was overwritten: got %v", cfg.Editor.MainThreadTimeout)
	}
	if cfg.Discovery.Port != 9091 {
		t.Errorf("Discovery.Port was overwritten: got %d", cfg.Discovery.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel was overwritten: got %q", cfg.LogLevel)
	}
}

func TestBridgeConfig_SetDevDefaults_NoOpWithoutDevMode(t *testing.T) {
	t.Parallel()

	cfg := BridgeConfig{}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q (dev defaults should not apply)", cfg.LogLevel, "info")
	}
}

func TestBridgeConfig_SetDevDefaults_DevModeLowersLogLevel(t *testing.T) {
	t.Parallel()

	cfg := BridgeConfig{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestServerConfig_ListenAddr(t *testing.T) {
	t.Parallel()

	cfg := ServerConfig{Host: "127.0.0.1", Port: 27182}
	if got, want := cfg.ListenAddr(), "127.0.0.1:27182"; got != want {
		t.Errorf("ListenAddr() = %q, want %q", got, want)
	}

	cfg.BindAll = true
	if got, want := cfg.ListenAddr(), "0.0.0.0:27182"; got != want {
		t.Errorf("ListenAddr() with BindAll = %q, want %q", got, want)
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcpbridge.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  port: 9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcpbridge.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  port: 9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "mcpbridge" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "mcpbridge"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "mcpbridge.yaml")
	ymlPath := filepath.Join(dir, "mcpbridge.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  port: 8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  port: 9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
