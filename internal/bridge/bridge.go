package bridge

import (
	"context"
	"log/slog"

	"github.com/mcpbridge/bridge/internal/handler"
	"github.com/mcpbridge/bridge/internal/hub"
	"github.com/mcpbridge/bridge/internal/mcpendpoint"
	"github.com/mcpbridge/bridge/internal/router"
)

// Bridge wires the client hub, request router, and handler registry onto an
// MCP endpoint (spec §4.4). Wire must be called once, before Run.
type Bridge struct {
	hub      *hub.Hub
	router   *router.RequestRouter
	registry *handler.Registry
	endpoint *mcpendpoint.Endpoint
	logger   *slog.Logger
}

// New constructs a Bridge from its four collaborators.
func New(h *hub.Hub, r *router.RequestRouter, reg *handler.Registry, ep *mcpendpoint.Endpoint, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{hub: h, router: r, registry: reg, endpoint: ep, logger: logger}
}

// Wire registers every enabled handler from the registry plus the four
// synthetic client-management tools onto the MCP endpoint.
func (b *Bridge) Wire() {
	b.wireCommands()
	b.wireResources()
	b.wirePrompts()
	b.wireClientManagementTools()
	b.logger.Info("bridge: wired",
		"commands", len(b.registry.Commands()),
		"resources", len(b.registry.Resources()),
		"prompts", len(b.registry.Prompts()))
}

// Run serves the MCP endpoint over stdio until ctx is canceled. Wire must
// have been called first.
func (b *Bridge) Run(ctx context.Context) error {
	return b.endpoint.Run(ctx, mcpendpoint.StdioTransport())
}
