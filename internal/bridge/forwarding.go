package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mcpbridge/bridge/internal/handler"
	"github.com/mcpbridge/bridge/internal/router"
	"github.com/mcpbridge/bridge/internal/wire"
)

// ForwardingCommand adapts a manifest-discovered command prefix into a
// handler.CommandHandler: executing it sends a correlated "prefix.action"
// request to the active client and waits for its response (spec §4.3,
// §4.4). One ForwardingCommand can cover several wire commands sharing a
// prefix, each exposed as its own MCP tool name.
type ForwardingCommand struct {
	prefix string
	defs   map[string]handler.ToolDefinition
	router *router.RequestRouter
}

// NewForwardingCommand constructs a ForwardingCommand for prefix, exposing
// one MCP tool per full dotted wire command name in wireCommandNames (each
// expected to be "prefix.action"; see actionFromWireCommand).
func NewForwardingCommand(prefix string, wireCommandNames []string, r *router.RequestRouter) *ForwardingCommand {
	defs := make(map[string]handler.ToolDefinition, len(wireCommandNames))
	for _, full := range wireCommandNames {
		action := actionFromWireCommand(prefix, full)
		defs[prefix+"_"+action] = handler.ToolDefinition{Description: "forwarded editor command: " + full}
	}
	return &ForwardingCommand{prefix: prefix, defs: defs, router: r}
}

// actionFromWireCommand strips prefix+"." from full, the inverse of the
// "prefix_action" MCP tool naming this package derives elsewhere.
func actionFromWireCommand(prefix, full string) string {
	if rest, ok := strings.CutPrefix(full, prefix+"."); ok {
		return rest
	}
	return full
}

func (f *ForwardingCommand) CommandPrefix() string { return f.prefix }
func (f *ForwardingCommand) Description() string {
	return "forwarded editor commands for " + f.prefix
}
func (f *ForwardingCommand) ToolDefinitions() map[string]handler.ToolDefinition {
	return f.defs
}

func (f *ForwardingCommand) Execute(ctx context.Context, action string, params json.RawMessage) (any, error) {
	command := f.prefix + "." + action
	result, err := f.router.Send(ctx, command, wire.KindCommand, params)
	if err != nil {
		return nil, classifyRouterErr(err)
	}
	return decodeResult(result)
}

// ForwardingResource adapts an editor-exposed resource URI into a
// handler.ResourceHandler backed by the router (spec §4.4).
type ForwardingResource struct {
	uri         string
	description string
	router      *router.RequestRouter
}

// NewForwardingResource constructs a ForwardingResource.
func NewForwardingResource(uri, description string, r *router.RequestRouter) *ForwardingResource {
	return &ForwardingResource{uri: uri, description: description, router: r}
}

func (f *ForwardingResource) URI() string         { return f.uri }
func (f *ForwardingResource) Description() string { return f.description }

func (f *ForwardingResource) Fetch(ctx context.Context, uri string, params map[string]string) (any, error) {
	payload, err := json.Marshal(map[string]any{"uri": uri, "params": params})
	if err != nil {
		return nil, newError(CodeProtocolError, err)
	}
	result, err := f.router.Send(ctx, uri, wire.KindResource, payload)
	if err != nil {
		return nil, classifyRouterErr(err)
	}
	return decodeResult(result)
}

func decodeResult(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, newError(CodeProtocolError, err)
	}
	return out, nil
}
