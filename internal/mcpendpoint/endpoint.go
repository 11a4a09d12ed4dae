// Package mcpendpoint isolates this repository's dependency on the exact
// shape of github.com/modelcontextprotocol/go-sdk/mcp behind a small,
// stable adapter surface. Every other package talks to handler.Registry
// and bridge types; the one other SDK import is internal/bridge's use of
// mcp.PromptArgument when it registers prompts through AddPrompt.
package mcpendpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolFunc executes a tool call given its raw JSON arguments and returns a
// JSON-marshalable result or an error.
type ToolFunc func(ctx context.Context, args json.RawMessage) (any, error)

// ResourceFunc fetches the content behind a resource URI.
type ResourceFunc func(ctx context.Context, uri string) (any, error)

// TemplatedResourceFunc fetches the content behind a resource URI matched
// against a resourceUriTemplate, given the placeholder values extracted
// from the caller's concrete URI (spec §4.4's resource-adaptation
// algorithm).
type TemplatedResourceFunc func(ctx context.Context, uri string, params map[string]string) (any, error)

// PromptFunc renders a prompt's text given the caller's arguments.
type PromptFunc func(ctx context.Context, args map[string]string) (string, error)

// Endpoint adapts registered tools, resources, and prompts onto an MCP
// server (spec §4.4).
type Endpoint struct {
	server *mcp.Server
	logger *slog.Logger
}

// New creates an Endpoint identifying itself to MCP clients as name/version.
func New(name, version string, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	impl := &mcp.Implementation{Name: name, Version: version}
	return &Endpoint{
		server: mcp.NewServer(impl, nil),
		logger: logger,
	}
}

// AddTool registers a model-invoked tool (spec §4.4). Arguments are passed
// through as a raw JSON object; handler.Registry-level input validation, if
// any, is the handler's own responsibility.
func (e *Endpoint) AddTool(name, description string, fn ToolFunc) {
	tool := &mcp.Tool{Name: name, Description: description}
	mcp.AddTool(e.server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, nil, fmt.Errorf("mcpendpoint: marshal tool arguments: %w", err)
		}
		result, err := fn(ctx, raw)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, nil, nil
		}
		body, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("mcpendpoint: marshal tool result: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		}, result, nil
	})
}

// AddResource registers an application-fetched resource at a fixed URI
// (spec §4.4).
func (e *Endpoint) AddResource(uri, name, description, mimeType string, fn ResourceFunc) {
	res := &mcp.Resource{URI: uri, Name: name, Description: description, MIMEType: mimeType}
	e.server.AddResource(res, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := fn(ctx, req.Params.URI)
		if err != nil {
			return nil, err
		}
		text, err := stringifyResource(content)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: mimeType, Text: text}},
		}, nil
	})
}

// AddResourceTemplate registers a resource whose uriTemplate contains one
// or more "{param}" placeholders (spec §4.4: "If resourceUriTemplate
// contains {…}, register as a templated resource"). The SDK matches a
// client's concrete request URI against the template and this endpoint
// extracts the placeholder values itself, passing them to fn as params.
func (e *Endpoint) AddResourceTemplate(uriTemplate, name, description, mimeType string, fn TemplatedResourceFunc) {
	re, names := uriTemplateToMatcher(uriTemplate)
	template := &mcp.ResourceTemplate{URITemplate: uriTemplate, Name: name, Description: description, MIMEType: mimeType}
	e.server.AddResourceTemplate(template, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		params := extractTemplateParams(re, names, uri)
		content, err := fn(ctx, uri, params)
		if err != nil {
			return nil, err
		}
		text, err := stringifyResource(content)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mimeType, Text: text}},
		}, nil
	})
}

// uriTemplateToMatcher compiles a RFC 6570-style "{param}" template into a
// regexp with one capture group per placeholder, returned alongside the
// placeholder names in capture-group order.
func uriTemplateToMatcher(uriTemplate string) (*regexp.Regexp, []string) {
	var pattern strings.Builder
	var names []string
	pattern.WriteByte('^')

	rest := uriTemplate
	for {
		literal, tail, found := strings.Cut(rest, "{")
		pattern.WriteString(regexp.QuoteMeta(literal))
		if !found {
			break
		}
		name, tail, found := strings.Cut(tail, "}")
		if !found {
			// Unterminated placeholder: treat the remainder as literal
			// rather than fail registration outright.
			pattern.WriteString(regexp.QuoteMeta("{" + tail))
			break
		}
		names = append(names, name)
		pattern.WriteString("([^/]+)")
		rest = tail
	}
	pattern.WriteByte('$')
	return regexp.MustCompile(pattern.String()), names
}

func extractTemplateParams(re *regexp.Regexp, names []string, uri string) map[string]string {
	m := re.FindStringSubmatch(uri)
	if m == nil {
		return nil
	}
	params := make(map[string]string, len(names))
	for i, name := range names {
		params[name] = m[i+1]
	}
	return params
}

func stringifyResource(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("mcpendpoint: marshal resource content: %w", err)
	}
	return string(body), nil
}

// AddPrompt registers a user-selected prompt template (spec §4.4).
func (e *Endpoint) AddPrompt(name, description string, args []*mcp.PromptArgument, fn PromptFunc) {
	prompt := &mcp.Prompt{Name: name, Description: description, Arguments: args}
	e.server.AddPrompt(prompt, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		rendered, err := fn(ctx, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: rendered}},
			},
		}, nil
	})
}

// Run serves the MCP endpoint over transport (typically stdio, the LLM
// SDK's own framing, which is opaque and out of this repository's scope —
// see spec §1) until ctx is canceled.
func (e *Endpoint) Run(ctx context.Context, transport mcp.Transport) error {
	e.logger.Info("mcpendpoint: starting")
	return e.server.Run(ctx, transport)
}

// StdioTransport returns the standard stdio transport used by the
// reference deployment.
func StdioTransport() mcp.Transport {
	return &mcp.StdioTransport{}
}
