package bridge

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpbridge/bridge/internal/handler"
)

// wirePrompts registers one MCP prompt per enabled PromptHandler. The
// argument schema is captured once at Wire time (a prompt's template and
// arguments don't change with enablement), but the render closure
// re-resolves the handler from the registry on every call, so disabling a
// prompt after Wire has run is honored on the next invocation (universal
// property: handler-disable honored).
func (b *Bridge) wirePrompts() {
	for _, h := range b.registry.Prompts() {
		name := h.Name()
		args := make([]*mcp.PromptArgument, 0, len(h.Arguments()))
		for _, a := range h.Arguments() {
			args = append(args, &mcp.PromptArgument{Name: a.Name, Description: a.Description, Required: a.Required})
		}
		b.endpoint.AddPrompt(name, h.Description(), args,
			func(ctx context.Context, callArgs map[string]string) (string, error) {
				live, err := b.registry.Prompt(name)
				if err != nil {
					return "", classifyHandlerErr(err)
				}
				return handler.RenderPrompt(live, callArgs), nil
			})
	}
}
