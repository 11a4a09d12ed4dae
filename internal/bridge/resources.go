package bridge

import (
	"context"
	"strings"
)

// wireResources registers one MCP resource per enabled ResourceHandler,
// routing to a static or templated registration depending on whether the
// handler's URI carries a "{param}" placeholder (spec §4.4's
// resource-adaptation algorithm). Each wired closure re-resolves its
// handler from the registry on every call rather than capturing it once
// at Wire time, so disabling a handler after Wire has run is honored on
// the very next fetch (universal property: handler-disable honored).
func (b *Bridge) wireResources() {
	for _, h := range b.registry.Resources() {
		uri := h.URI()
		description := h.Description()
		if strings.Contains(uri, "{") {
			b.endpoint.AddResourceTemplate(uri, uri, description, "application/json",
				func(ctx context.Context, requestURI string, params map[string]string) (any, error) {
					return b.fetchResource(ctx, uri, requestURI, params)
				})
			continue
		}
		b.endpoint.AddResource(uri, uri, description, "application/json",
			func(ctx context.Context, requestURI string) (any, error) {
				return b.fetchResource(ctx, uri, requestURI, nil)
			})
	}
}

// fetchResource resolves registeredURI live and runs its handler's Fetch,
// so a resource disabled after Wire has run is rejected rather than
// served by a stale closure.
func (b *Bridge) fetchResource(ctx context.Context, registeredURI, requestURI string, params map[string]string) (any, error) {
	h, err := b.registry.Resource(registeredURI)
	if err != nil {
		return nil, classifyHandlerErr(err)
	}
	result, err := h.Fetch(ctx, requestURI, params)
	if err != nil {
		return nil, wrap(CodeHandlerExecution, err)
	}
	return result, nil
}
