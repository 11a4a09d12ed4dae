// Package hub implements the multi-client TCP front-end: per-client socket
// lifecycle, identity rewrite on registration, active-client election, and
// UDP discovery announcement (spec §4.2).
package hub

import (
	"net"
	"time"

	"github.com/mcpbridge/bridge/internal/wire"
)

// ClientID is an opaque string identifying a connected editor client.
// Initially derived from the remote address ("<prefix>-<ip>:<port>"),
// rewritten to a persistent id supplied by the client's registration
// message. A ClientID is never reused once its socket closes.
type ClientID string

// EventKind enumerates the lifecycle events the hub emits.
type EventKind string

const (
	EventClientConnected     EventKind = "clientConnected"
	EventClientRegistered    EventKind = "clientRegistered"
	EventActiveClientChanged EventKind = "activeClientChanged"
	EventClientError         EventKind = "clientError"
	EventClientDisconnected  EventKind = "clientDisconnected"
	EventMessage             EventKind = "message"
)

// Event is a lifecycle or async-message notification fanned out to
// subscribers (spec §4.2's "emit clientConnected" etc., generalized into a
// single channel so the bridge's synthetic tools and telemetry can both
// observe the hub without racing the dispatch loop — an additive,
// non-protocol-visible convenience described in SPEC_FULL.md §5.2).
type Event struct {
	Kind     EventKind
	ClientID ClientID
	Err      error
	Message  *wire.Envelope
}

// ClientSnapshot is a point-in-time view of a connected client, returned by
// GetConnectedClients. Callers may freely retain it.
type ClientSnapshot struct {
	ID       ClientID
	IsActive bool
	Info     *wire.ClientInfo
}

// clientRecord is the hub's internal bookkeeping for one connected socket.
// Guarded by Hub.mu.
type clientRecord struct {
	conn      net.Conn
	framer    *wire.Framer
	info      *wire.ClientInfo
	active    bool
	connectAt time.Time
}
