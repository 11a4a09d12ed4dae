package router

import "errors"

// ErrNoClientsConnected is returned by Send when no editor client is
// currently connected (spec §4.3 precondition).
var ErrNoClientsConnected = errors.New("router: no clients connected")

// ErrConnectionClosed is returned to a caller whose pending request's target
// client disconnected before a response arrived (spec §5 disconnect
// cancellation).
var ErrConnectionClosed = errors.New("router: connection closed")

// ErrTimeout is returned when a request's deadline elapses with no matching
// response (spec §4.3).
var ErrTimeout = errors.New("router: request timed out")

// ErrShuttingDown is returned to every pending request when the router is
// stopped (spec §5 global cancellation).
var ErrShuttingDown = errors.New("router: shutting down")
