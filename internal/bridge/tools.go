package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcpbridge/bridge/internal/hub"
)

// unknownProduct and unknownProject are substituted for a connected
// client's product name / project path when its registration has not yet
// supplied them, so listClients never emits an empty string for a field a
// model might otherwise try to match against (spec §10).
const (
	unknownProduct = "Unknown"
	unknownProject = "UnknownProject"
)

// listClientsWaitInterval is the short fixed interval listClients waits
// after re-announcing, for late clients to register before the response is
// assembled (spec §4.4, scenario S6).
const listClientsWaitInterval = 3 * time.Second

// defaultToolAction is the action a tool name derives to when it carries
// no underscore (spec §4.4: "defaulting to execute if absent").
const defaultToolAction = "execute"

// actionFromToolName derives the action spec §4.4 says is "the segment
// after the first underscore" of an MCP tool name, defaulting to
// defaultToolAction when no underscore is present.
func actionFromToolName(toolName string) string {
	_, action, found := strings.Cut(toolName, "_")
	if !found || action == "" {
		return defaultToolAction
	}
	return action
}

// wireCommands registers one MCP tool per ToolDefinition exposed by every
// enabled CommandHandler (spec §4.4's tool-adaptation algorithm). Each
// wired closure re-resolves its handler from the registry on every call
// rather than capturing the handler value once at Wire time, so disabling
// a handler after Wire has run is honored on the very next call (universal
// property: handler-disable honored).
func (b *Bridge) wireCommands() {
	for _, h := range b.registry.Commands() {
		prefix := h.CommandPrefix()
		for toolName, def := range h.ToolDefinitions() {
			toolName, def := toolName, def
			action := actionFromToolName(toolName)
			b.endpoint.AddTool(toolName, def.Description, func(ctx context.Context, args json.RawMessage) (any, error) {
				return b.executeCommand(ctx, prefix, action, toolName, args)
			})
		}
	}
}

// executeCommand resolves prefix live, runs the handler's action, and
// shapes the result per spec §4.4's tool-adaptation algorithm: a
// success:false result becomes a tool-level error, and any returned error
// is wrapped as an ExecutionError carrying {type, timestamp, command}
// (steps 2 and 4).
func (b *Bridge) executeCommand(ctx context.Context, prefix, action, toolName string, args json.RawMessage) (any, error) {
	h, err := b.registry.Command(prefix)
	if err != nil {
		return nil, classifyHandlerErr(err)
	}
	result, err := h.Execute(ctx, action, args)
	if err != nil {
		return nil, asExecutionError(toolName, wrap(CodeHandlerExecution, err))
	}
	if failed, message := reportsFailure(result); failed {
		return nil, asExecutionError(toolName, fmt.Errorf("%s", message))
	}
	return result, nil
}

// reportsFailure inspects a handler's successful return value for the
// success:false shape spec §4.4 step 2 requires be surfaced as a
// tool-level error, optionally reading a human-readable "message" field.
func reportsFailure(result any) (bool, string) {
	m, ok := result.(map[string]any)
	if !ok {
		return false, ""
	}
	success, ok := m["success"].(bool)
	if !ok || success {
		return false, ""
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return true, msg
	}
	return true, "handler reported success: false"
}

// clientSummary is the shape returned by listClients and getActiveClient.
type clientSummary struct {
	ClientID    string `json:"clientId"`
	IsActive    bool   `json:"isActive"`
	ProductName string `json:"productName"`
	ProjectPath string `json:"projectPath"`
}

func summarize(c hub.ClientSnapshot) clientSummary {
	s := clientSummary{ClientID: string(c.ID), IsActive: c.IsActive, ProductName: unknownProduct, ProjectPath: unknownProject}
	if c.Info != nil {
		if c.Info.ProductName != "" {
			s.ProductName = c.Info.ProductName
		}
		if c.Info.ProjectPath != "" {
			s.ProjectPath = c.Info.ProjectPath
		}
	}
	return s
}

// isUnknown reports whether a client's product/project fields are still
// the unregistered placeholders, per spec §4.4: clients whose productName
// is missing or equals Unknown/UnknownProject are filtered from
// user-visible listings but remain in the hub.
func isUnknown(s clientSummary) bool {
	return s.ProductName == "" || s.ProductName == unknownProduct || s.ProductName == unknownProject
}

// wireClientManagementTools registers the four synthetic tools spec §4.4
// requires regardless of which domain handlers are discovered: listClients,
// setActiveClient, connectToProject, getActiveClient. Each tool's logic
// lives in its own method below so it can be exercised directly in tests
// without going through the MCP endpoint.
func (b *Bridge) wireClientManagementTools() {
	b.endpoint.AddTool("listClients", "List every editor client currently connected to the bridge.", b.listClients)
	b.endpoint.AddTool("setActiveClient", "Make the given clientId the active client that tool calls are routed to.", b.setActiveClient)
	b.endpoint.AddTool("connectToProject", "Make the client whose registered product name matches productName (case-insensitive substring) the active client.", b.connectToProject)
	b.endpoint.AddTool("getActiveClient", "Describe the currently active editor client, if any.", b.getActiveClient)
}

// listClients triggers a fresh UDP discovery announce, waits a short fixed
// interval for late clients to register, and returns the enumeration
// filtered to clients with a known productName (spec §4.4, scenario S6).
func (b *Bridge) listClients(ctx context.Context, args json.RawMessage) (any, error) {
	b.hub.Announce(hub.ListClientsAnnounceType)

	select {
	case <-time.After(listClientsWaitInterval):
	case <-ctx.Done():
		return nil, wrap(CodeTimeout, ctx.Err())
	}

	clients := b.hub.GetConnectedClients()
	out := make([]clientSummary, 0, len(clients))
	for _, c := range clients {
		s := summarize(c)
		if isUnknown(s) {
			continue
		}
		out = append(out, s)
	}
	return map[string]any{"clients": out}, nil
}

func (b *Bridge) setActiveClient(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, wrap(CodeProtocolError, err)
	}
	if params.ClientID == "" {
		return nil, wrap(CodeProtocolError, fmt.Errorf("setActiveClient: clientId is required"))
	}
	if err := b.hub.SetActiveClient(hub.ClientID(params.ClientID)); err != nil {
		return nil, wrap(CodeNoClientsConnected, err)
	}
	return map[string]any{"activeClientId": params.ClientID}, nil
}

// connectToProject makes the active client the first connected client (in
// enumeration order) whose productName contains params.ProductName as a
// case-insensitive substring (spec §4.4).
func (b *Bridge) connectToProject(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		ProductName string `json:"productName"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, wrap(CodeProtocolError, err)
	}
	needle := strings.ToLower(params.ProductName)
	for _, c := range b.hub.GetConnectedClients() {
		if c.Info == nil {
			continue
		}
		if strings.Contains(strings.ToLower(c.Info.ProductName), needle) {
			if err := b.hub.SetActiveClient(c.ID); err != nil {
				return nil, wrap(CodeNoClientsConnected, err)
			}
			return map[string]any{"activeClientId": string(c.ID)}, nil
		}
	}
	return nil, wrap(CodeNoClientsConnected, fmt.Errorf("connectToProject: no connected client with productName matching %q", params.ProductName))
}

func (b *Bridge) getActiveClient(ctx context.Context, args json.RawMessage) (any, error) {
	id, ok := b.hub.ActiveClient()
	if !ok {
		return nil, wrap(CodeNoClientsConnected, fmt.Errorf("getActiveClient: no active client"))
	}
	for _, c := range b.hub.GetConnectedClients() {
		if c.ID == id {
			return summarize(c), nil
		}
	}
	return nil, wrap(CodeNoClientsConnected, fmt.Errorf("getActiveClient: active client %s not found", id))
}
