// Package bridge implements MCPBridge (spec §4.4, the remainder of
// component C4): it wires the handler registry, the client hub, and the
// request router to an MCP endpoint, adapting registered handlers into
// tools/resources/prompts and adding the four synthetic client-management
// tools.
package bridge

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mcpbridge/bridge/internal/handler"
	"github.com/mcpbridge/bridge/internal/router"
)

// Code enumerates the bridge's error kinds (spec §7).
type Code string

const (
	CodeNoClientsConnected Code = "NoClientsConnected"
	CodeConnectionClosed   Code = "ConnectionClosed"
	CodeTimeout            Code = "Timeout"
	CodeProtocolError      Code = "ProtocolError"
	CodeHandlerDisabled    Code = "HandlerDisabled"
	CodeHandlerExecution   Code = "HandlerExecution"
	CodeConfigurationError Code = "ConfigurationError"
)

// Error is the bridge's typed error, wrapping an underlying cause with one
// of the seven recognized Codes. Callers distinguish kinds with errors.Is
// against the package-level sentinels below rather than inspecting Code
// directly.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	// An ExecutionError already renders the full spec §4.4 step-4 shape as
	// its own text; prefixing "Code: " here would bury that JSON inside a
	// sentence the MCP client has to re-parse.
	if _, ok := e.Err.(*ExecutionError); ok {
		return e.Err.Error()
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel for the same Code, so callers can
// write errors.Is(err, bridge.ErrNoClientsConnected) regardless of what Err
// wraps.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Sentinel values for errors.Is comparisons; Err is nil on each since only
// Code participates in Is.
var (
	ErrNoClientsConnected = &Error{Code: CodeNoClientsConnected}
	ErrConnectionClosed   = &Error{Code: CodeConnectionClosed}
	ErrTimeout            = &Error{Code: CodeTimeout}
	ErrProtocolError      = &Error{Code: CodeProtocolError}
	ErrHandlerDisabled    = &Error{Code: CodeHandlerDisabled}
	ErrHandlerExecution   = &Error{Code: CodeHandlerExecution}
	ErrConfigurationError = &Error{Code: CodeConfigurationError}
)

// wrap classifies a lower-layer error (from router or handler) into a
// *Error: an error that already is (or wraps) an *Error is returned as that
// *Error, anything else is wrapped with the given code.
func wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return newError(code, err)
}

// classifyRouterErr maps internal/router's sentinel errors onto the
// bridge's error kinds (spec §7), so a forwarding handler's caller sees a
// consistent taxonomy regardless of which layer detected the failure.
func classifyRouterErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, router.ErrNoClientsConnected):
		return newError(CodeNoClientsConnected, err)
	case errors.Is(err, router.ErrConnectionClosed), errors.Is(err, router.ErrShuttingDown):
		return newError(CodeConnectionClosed, err)
	case errors.Is(err, router.ErrTimeout):
		return newError(CodeTimeout, err)
	default:
		return newError(CodeHandlerExecution, err)
	}
}

// classifyHandlerErr maps internal/handler's lookup sentinels onto the
// bridge's error kinds, so a live registry lookup inside a wired tool
// closure (spec §4.4's enable/disable, universal property: handler-disable
// honored) reports the same taxonomy as every other bridge error.
func classifyHandlerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, handler.ErrHandlerDisabled):
		return newError(CodeHandlerDisabled, err)
	case errors.Is(err, handler.ErrUnknownHandler):
		return newError(CodeHandlerDisabled, err)
	default:
		return newError(CodeHandlerExecution, err)
	}
}

// ExecutionError is the structured shape spec §4.4 step 4 requires for a
// thrown handler error surfaced to the model: {type, timestamp, command}.
// Its Error method renders that shape as the JSON text callers see, while
// Unwrap preserves the original cause for internal errors.Is/As callers.
type ExecutionError struct {
	Cause   error
	When    int64
	Command string
}

func (e *ExecutionError) Error() string {
	body := struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
		Command   string `json:"command"`
		Message   string `json:"message"`
	}{
		Type:      "execution_error",
		Timestamp: e.When,
		Command:   e.Command,
		Message:   e.Cause.Error(),
	}
	out, err := json.Marshal(body)
	if err != nil {
		// Marshaling a struct of strings and an integer cannot fail in practice; fall
		// back to the plain message rather than hide the original error.
		return e.Cause.Error()
	}
	return string(out)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// asExecutionError wraps err as an *Error carrying an *ExecutionError,
// preserving err's existing bridge Code (if any) so errors.Is against the
// sentinels above still works, while the text the model sees is the
// spec §4.4 step-4 JSON shape rather than a "Code: message" sentence.
func asExecutionError(command string, err error) *Error {
	code := CodeHandlerExecution
	var be *Error
	if errors.As(err, &be) {
		code = be.Code
	}
	return &Error{Code: code, Err: &ExecutionError{Cause: err, When: time.Now().Unix(), Command: command}}
}
