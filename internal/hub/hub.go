package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mcpbridge/bridge/internal/ctxkey"
	"github.com/mcpbridge/bridge/internal/wire"
)

// MaxReadBufferBytes bounds a single client's unbounded-in-principle read
// buffer (spec §5's "a production implementation should cap it"). A
// connection whose framer accumulates more than this without completing a
// message is dropped.
const MaxReadBufferBytes = 1 << 20 // 1 MiB

// Correlator resolves an inbound message carrying a recognized id against a
// pending outbound request. Implemented by internal/router.RequestRouter.
// Returns true if the message was claimed as a correlated response.
type Correlator interface {
	Resolve(clientID ClientID, env *wire.Envelope) (claimed bool)
	// ClientDisconnected rejects every pending request targeted at clientID.
	ClientDisconnected(clientID ClientID)
}

// Hub is the bridge's multi-client TCP front-end (spec §4.2, component C2).
// All shared state is guarded by a single coarse mutex; the mutex is never
// held across a socket write (spec §5).
type Hub struct {
	host string
	port int

	logger     *slog.Logger
	correlator Correlator

	mu        sync.Mutex
	clients   map[ClientID]*clientRecord
	order     []ClientID // connection order, oldest first; used for promotion
	activeID  ClientID
	hasActive bool
	listener  net.Listener
	closed    bool

	subMu sync.Mutex
	subs  []chan Event
}

// New creates a Hub bound to host:port. Call Start to begin accepting
// connections.
func New(host string, port int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		host:    host,
		port:    port,
		logger:  logger,
		clients: make(map[ClientID]*clientRecord),
	}
}

// SetCorrelator wires the request router that resolves correlated
// responses. Must be called before Start.
func (h *Hub) SetCorrelator(c Correlator) {
	h.correlator = c
}

// Subscribe returns a channel of lifecycle/message events. The channel is
// closed when ctx is done. Delivery is best-effort: a slow subscriber drops
// events rather than blocking the dispatch loop.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 64)
	h.subMu.Lock()
	h.subs = append(h.subs, ch)
	h.subMu.Unlock()

	go func() {
		<-ctx.Done()
		h.subMu.Lock()
		for i, s := range h.subs {
			if s == ch {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				break
			}
		}
		h.subMu.Unlock()
		close(ch)
	}()
	return ch
}

func (h *Hub) emit(ev Event) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, s := range h.subs {
		select {
		case s <- ev:
		default:
			h.logger.Warn("hub: dropping event for slow subscriber", "kind", ev.Kind)
		}
	}
}

// Start binds the listener and begins accepting connections. It also sends
// the initial UDP discovery announcement. Start returns once the listener
// is bound; the accept loop runs in the background until ctx is canceled or
// Stop is called.
func (h *Hub) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", h.host, h.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("hub: listen %s: %w", addr, err)
	}
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()

	h.logger.Info("hub: listening", "addr", addr)
	announceDiscovery(h.host, h.port, h.logger)

	go h.acceptLoop(ctx)

	go func() {
		<-ctx.Done()
		_ = h.Stop()
	}()
	return nil
}

// Announce sends an on-demand UDP discovery broadcast with the given
// payload type, e.g. ListClientsAnnounceType for the listClients synthetic
// tool's re-announce (spec §4.4, scenario S6).
func (h *Hub) Announce(kind string) {
	h.mu.Lock()
	host, port := h.host, h.port
	h.mu.Unlock()
	announceDiscoveryOn(host, port, port+DefaultDiscoveryPortOffset, kind, h.logger)
}

// Addr returns the listener's bound address. Valid only after Start
// succeeds; used by tests and for logging the bound address.
func (h *Hub) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop closes the listener and every connected client socket, rejecting all
// pending requests via the correlator (spec §5 cancellation).
func (h *Hub) Stop() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	ln := h.listener
	conns := make([]net.Conn, 0, len(h.clients))
	for _, rec := range h.clients {
		conns = append(conns, rec.conn)
	}
	h.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

func (h *Hub) acceptLoop(ctx context.Context) {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || h.isClosed() {
				return
			}
			h.logger.Error("hub: accept failed", "error", err)
			return
		}
		go h.serveClient(ctx, conn)
	}
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub) serveClient(ctx context.Context, conn net.Conn) {
	id := ClientID(fmt.Sprintf("unity-%s", conn.RemoteAddr().String()))
	rec := &clientRecord{conn: conn, framer: wire.NewFramer(), connectAt: time.Now()}

	h.mu.Lock()
	h.clients[id] = rec
	h.order = append(h.order, id)
	becameActive := false
	if !h.hasActive {
		h.activeID = id
		h.hasActive = true
		becameActive = true
		rec.active = true
	}
	h.mu.Unlock()

	h.logger.Info("hub: client connected", "client_id", id)
	h.emit(Event{Kind: EventClientConnected, ClientID: id})
	if becameActive {
		h.emit(Event{Kind: EventActiveClientChanged, ClientID: id})
	}

	defer h.onDisconnect(id, conn)

	reader := bufio.NewReaderSize(conn, 64*1024)
	buf := make([]byte, 64*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			h.feed(ctx, id, buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (h *Hub) feed(ctx context.Context, id ClientID, data []byte) {
	h.mu.Lock()
	rec, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return
	}

	msgs, errs := rec.framer.Feed(data)
	for _, err := range errs {
		h.logger.Warn("hub: framing error", "client_id", id, "error", err)
		h.emit(Event{Kind: EventClientError, ClientID: id, Err: err})
	}
	if rec.framer.Pending() > MaxReadBufferBytes {
		h.logger.Error("hub: client exceeded read buffer cap, dropping connection", "client_id", id)
		_ = rec.conn.Close()
		return
	}

	for _, raw := range msgs {
		h.dispatch(ctx, id, raw)
	}
}

func (h *Hub) dispatch(_ context.Context, id ClientID, raw json.RawMessage) {
	env, err := wire.Decode(raw)
	if err != nil {
		h.logger.Warn("hub: malformed envelope", "client_id", id, "error", err)
		return
	}

	switch {
	case env.IsRegistration():
		h.register(id, env)
	case env.ID != "":
		if h.correlator == nil || !h.correlator.Resolve(id, env) {
			// Unknown id: per spec §4.3 step 6, dropped silently, not an error.
			h.logger.Debug("hub: unmatched response id dropped", "client_id", id, "id", env.ID)
		}
	default:
		h.emit(Event{Kind: EventMessage, ClientID: id, Message: env})
	}
}

// register handles a type=="registration" message: replace the
// address-derived id with the client-supplied one, moving record, buffer,
// and active flag atomically (spec §4.2).
func (h *Hub) register(oldID ClientID, env *wire.Envelope) {
	if env.ClientID == "" {
		h.logger.Warn("hub: registration missing clientId", "client_id", oldID)
		return
	}
	newID := ClientID(env.ClientID)

	h.mu.Lock()
	rec, ok := h.clients[oldID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, oldID)
	h.clients[newID] = rec
	for i, cid := range h.order {
		if cid == oldID {
			h.order[i] = newID
			break
		}
	}
	if h.activeID == oldID {
		h.activeID = newID
	}
	if env.ClientInfo != nil {
		rec.info = env.ClientInfo
	}
	h.mu.Unlock()

	h.logger.Info("hub: client registered", "old_id", oldID, "new_id", newID)
	h.emit(Event{Kind: EventClientRegistered, ClientID: newID})
}

func (h *Hub) onDisconnect(id ClientID, conn net.Conn) {
	_ = conn.Close()

	h.mu.Lock()
	_, existed := h.clients[id]
	delete(h.clients, id)
	for i, cid := range h.order {
		if cid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	wasActive := h.activeID == id && h.hasActive
	var promoted ClientID
	promotedOK := false
	if wasActive {
		if len(h.order) > 0 {
			promoted = h.order[0]
			h.activeID = promoted
			promotedOK = true
			if rec, ok := h.clients[promoted]; ok {
				rec.active = true
			}
		} else {
			h.hasActive = false
			h.activeID = ""
		}
	}
	h.mu.Unlock()

	if !existed {
		return
	}

	h.logger.Info("hub: client disconnected", "client_id", id)
	h.emit(Event{Kind: EventClientDisconnected, ClientID: id})
	if h.correlator != nil {
		h.correlator.ClientDisconnected(id)
	}
	if wasActive {
		if promotedOK {
			h.emit(Event{Kind: EventActiveClientChanged, ClientID: promoted})
		} else {
			h.emit(Event{Kind: EventActiveClientChanged, ClientID: ""})
		}
	}
}

// GetConnectedClients returns a snapshot array of connected clients.
// Callers may freely retain the result.
func (h *Hub) GetConnectedClients() []ClientSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ClientSnapshot, 0, len(h.clients))
	for _, id := range h.order {
		rec, ok := h.clients[id]
		if !ok {
			continue
		}
		out = append(out, ClientSnapshot{ID: id, IsActive: rec.active, Info: rec.info})
	}
	return out
}

// ActiveClient returns the current active client id, or ok==false if none
// is connected.
func (h *Hub) ActiveClient() (ClientID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.hasActive {
		return "", false
	}
	return h.activeID, true
}

// ErrUnknownClient is returned by SetActiveClient when the id does not
// correspond to a connected client.
var ErrUnknownClient = errors.New("hub: unknown client id")

// SetActiveClient makes id the active client. Requires that id already be
// connected; returns ErrUnknownClient otherwise.
func (h *Hub) SetActiveClient(id ClientID) error {
	h.mu.Lock()
	rec, ok := h.clients[id]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownClient
	}
	if h.hasActive {
		if old, ok := h.clients[h.activeID]; ok {
			old.active = false
		}
	}
	rec.active = true
	h.activeID = id
	h.hasActive = true
	h.mu.Unlock()

	h.emit(Event{Kind: EventActiveClientChanged, ClientID: id})
	return nil
}

// HasAnyClient reports whether at least one client is connected.
func (h *Hub) HasAnyClient() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// ErrWriteTargetGone is returned by WriteTo when the target client is no
// longer connected.
var ErrWriteTargetGone = errors.New("hub: write target not connected")

// WriteTo writes payload followed by "\n" to the given client's socket.
// The hub's mutex is held only long enough to copy out the socket handle,
// never across the write itself (spec §5).
func (h *Hub) WriteTo(id ClientID, payload []byte) error {
	h.mu.Lock()
	rec, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return ErrWriteTargetGone
	}

	if _, err := rec.conn.Write(append(append([]byte(nil), payload...), '\n')); err != nil {
		return fmt.Errorf("hub: write to %s: %w", id, err)
	}
	return nil
}

// loggerFromContext mirrors the teacher's context-enrichment pattern: use
// the request-scoped logger when present, falling back to the hub default.
func loggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}
