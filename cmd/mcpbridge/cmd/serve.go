package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mcpbridge/bridge/internal/bridge"
	"github.com/mcpbridge/bridge/internal/config"
	"github.com/mcpbridge/bridge/internal/handler"
	"github.com/mcpbridge/bridge/internal/hub"
	"github.com/mcpbridge/bridge/internal/mcpendpoint"
	"github.com/mcpbridge/bridge/internal/router"
	"github.com/mcpbridge/bridge/internal/telemetry"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge",
	Long: `Start the bridge: register the commands and resources listed in the
configured handlers directory's manifest, accept editor connections over
TCP, and serve those handlers as an MCP endpoint over stdio for the calling
LLM tool, forwarding each call to the active editor client.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// Signal context for graceful shutdown; a second Ctrl+C forces a hard exit.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	return run(ctx, cfg, logger)
}

// run wires the hub, router, handler registry, and MCP endpoint together and
// blocks until ctx is canceled.
func run(ctx context.Context, cfg *config.BridgeConfig, logger *slog.Logger) error {
	host := cfg.Server.Host
	if cfg.Server.BindAll {
		host = "0.0.0.0"
	}

	h := hub.New(host, cfg.Server.Port, logger)
	r := router.New(h, logger)
	h.SetCorrelator(r)

	reg := handler.NewRegistry()

	ep := mcpendpoint.New("mcpbridge", Version, logger)
	br := bridge.New(h, r, reg, ep, logger)

	if cfg.Handlers.Dir != "" {
		result, err := handler.Discover(cfg.Handlers.Dir, "")
		if err != nil {
			logger.Warn("handler discovery failed", "dir", cfg.Handlers.Dir, "error", err)
		} else if result.Manifest != nil {
			if err := br.RegisterManifest(result.Manifest); err != nil {
				return fmt.Errorf("failed to register discovered handlers: %w", err)
			}
			logger.Info("handlers discovered", "dir", cfg.Handlers.Dir, "count", len(result.Manifest.Handlers))
		}
	}

	br.Wire()

	metricsReg := prometheus.NewRegistry()
	metrics := telemetry.New(metricsReg)
	metrics.SubscribeHub(ctx, h)
	go serveMetrics(ctx, metricsReg, logger)

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}
	logger.Info("hub listening", "addr", h.Addr().String())

	defer r.Shutdown()

	if err := br.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp endpoint stopped: %w", err)
	}

	logger.Info("mcpbridge stopped")
	return nil
}

// serveMetrics exposes Prometheus metrics over HTTP on an ephemeral
// loopback port, logged once bound. Failures are logged, never fatal:
// metrics are an observability aid, not a required dependency for the
// bridge to operate.
func serveMetrics(ctx context.Context, reg *prometheus.Registry, logger *slog.Logger) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		logger.Warn("metrics listener failed to bind", "error", err)
		return
	}
	logger.Info("metrics listening", "addr", ln.Addr().String())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		logger.Debug("metrics server stopped", "error", err)
	}
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
