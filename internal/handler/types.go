// Package handler implements HandlerRegistry (spec §4.4, part of component
// C4): discovery and registration of CommandHandler, ResourceHandler, and
// PromptHandler implementations, each individually enable/disable-able.
//
// Handlers are discovered by interface, not by duck-typing a method set at
// call time: a type is registered because it was constructed and passed to
// Register, and Register asserts it satisfies one of the three handler
// interfaces. This keeps the registry's behavior traceable to an explicit
// constructor call rather than to incidental method-name matches.
package handler

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes one MCP tool a CommandHandler exposes under its
// CommandPrefix (spec §4.4: "a map of tool names to
// {description, parameterSchema, annotations?}").
type ToolDefinition struct {
	Description     string
	ParameterSchema json.RawMessage
	Annotations     map[string]any
}

// CommandHandler adapts to one or more model-invoked MCP tools sharing a
// command prefix (spec §4.4). ToolDefinitions keys its map by the full MCP
// tool name (e.g. "menu_execute"); the action passed to Execute is that
// name's segment after its first underscore, defaulting to "execute" when
// none is present.
type CommandHandler interface {
	CommandPrefix() string
	Description() string
	ToolDefinitions() map[string]ToolDefinition
	Execute(ctx context.Context, action string, params json.RawMessage) (any, error)
}

// ResourceHandler adapts to an MCP resource: application-controlled context
// fetched by URI (spec §4.4). URI returns the resourceUriTemplate; when it
// contains a "{param}" placeholder the resource is registered as a
// template and Fetch receives the placeholder values extracted from the
// caller's concrete URI, otherwise params is empty.
type ResourceHandler interface {
	URI() string
	Description() string
	Fetch(ctx context.Context, uri string, params map[string]string) (any, error)
}

// PromptArgument describes one named placeholder in a PromptHandler's
// template.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// PromptHandler adapts to an MCP prompt: a user-selected template with
// "{param}" placeholders substituted from supplied arguments (spec §4.4).
type PromptHandler interface {
	Name() string
	Description() string
	Template() string
	Arguments() []PromptArgument
}

// Kind identifies which of the three handler interfaces a registration
// satisfies.
type Kind string

const (
	KindCommand  Kind = "command"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

// entry is the registry's bookkeeping for one registered handler.
type entry struct {
	kind    Kind
	name    string
	enabled bool

	command  CommandHandler
	resource ResourceHandler
	prompt   PromptHandler
}
