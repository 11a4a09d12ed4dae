// Package router implements RequestRouter (spec §4.3, component C3): it
// correlates outbound requests sent to editor clients with their inbound
// responses, enforces a per-request timeout, and cancels pending requests
// when their target client disconnects or the bridge shuts down.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcpbridge/bridge/internal/ctxkey"
	"github.com/mcpbridge/bridge/internal/hub"
	"github.com/mcpbridge/bridge/internal/wire"
)

// DefaultTimeout is used when Send's caller does not set a deadline on ctx
// (spec §4.3: "30 second default").
const DefaultTimeout = 30 * time.Second

// ClientTarget is the subset of *hub.Hub the router depends on. Defining it
// as an interface keeps router_test.go free of a real TCP listener.
type ClientTarget interface {
	WriteTo(id hub.ClientID, payload []byte) error
	ActiveClient() (hub.ClientID, bool)
	HasAnyClient() bool
}

// RequestRouter correlates requests sent to editor clients with their
// responses. The zero value is not usable; construct with New.
type RequestRouter struct {
	target ClientTarget
	logger *slog.Logger

	defaultTimeout time.Duration
	counter        uint64

	mu      sync.Mutex
	pending map[string]*pendingRequest
	closed  bool
}

// New returns a RequestRouter that writes requests through target.
func New(target ClientTarget, logger *slog.Logger) *RequestRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestRouter{
		target:         target,
		logger:         logger,
		defaultTimeout: DefaultTimeout,
		pending:        make(map[string]*pendingRequest),
	}
}

// nextID returns a monotonically increasing, process-unique request id
// (spec §4.3's "unique ids" universal property).
func (r *RequestRouter) nextID() string {
	n := atomic.AddUint64(&r.counter, 1)
	return fmt.Sprintf("%d", n)
}

// Send routes command (or a resource fetch, when kind is wire.KindResource)
// to the active editor client and blocks until a correlated response
// arrives, ctx is canceled, or the timeout elapses. If ctx carries no
// deadline, DefaultTimeout is applied.
func (r *RequestRouter) Send(ctx context.Context, command string, kind wire.Kind, params json.RawMessage) (json.RawMessage, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	r.mu.Unlock()

	if !r.target.HasAnyClient() {
		return nil, ErrNoClientsConnected
	}
	clientID, ok := r.target.ActiveClient()
	if !ok {
		return nil, ErrNoClientsConnected
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.defaultTimeout)
		defer cancel()
	}

	id := r.nextID()
	preq := newPendingRequest(id, clientID)

	requestID := uuid.New().String()
	logger := r.logger.With("request_id", requestID, "client_id", string(clientID), "command", command)
	ctx = context.WithValue(ctx, ctxkey.RequestIDKey{}, requestID)
	ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, logger)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	r.pending[id] = preq
	r.mu.Unlock()
	defer r.forget(id)

	env := wire.Envelope{Command: command, Type: kind, Params: params, ID: id}
	payload, err := env.Encode()
	if err != nil {
		return nil, fmt.Errorf("router: encode request: %w", err)
	}

	logger.Debug("router: sending request")
	if err := r.target.WriteTo(clientID, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}

	select {
	case <-preq.done:
		return preq.result, preq.err
	case <-ctx.Done():
		if preq.complete(nil, timeoutOrCanceled(ctx)) {
			logger.Debug("router: request canceled", "error", timeoutOrCanceled(ctx))
			return nil, timeoutOrCanceled(ctx)
		}
		// Lost the race: a response (or disconnect) arrived concurrently
		// with the deadline firing; honor whichever completed it.
		<-preq.done
		return preq.result, preq.err
	}
}

func timeoutOrCanceled(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}
	return ErrConnectionClosed
}

func (r *RequestRouter) forget(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Resolve implements hub.Correlator. It completes the pending request
// matching env.ID, if any: with an error carrying env.Message when env's
// status is "error", otherwise with env's result.
func (r *RequestRouter) Resolve(clientID hub.ClientID, env *wire.Envelope) bool {
	r.mu.Lock()
	preq, ok := r.pending[env.ID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if preq.clientID != clientID {
		// A response arrived from a different client than the one the
		// request was sent to; not a match for this pending entry.
		return false
	}

	if env.Status == wire.StatusError {
		return preq.complete(nil, fmt.Errorf("router: handler error: %s", env.Message))
	}
	return preq.complete(env.Result, nil)
}

// ClientDisconnected implements hub.Correlator. It rejects every request
// targeted at clientID with ErrConnectionClosed (spec §5, scoped
// cancellation on disconnect).
func (r *RequestRouter) ClientDisconnected(clientID hub.ClientID) {
	r.mu.Lock()
	affected := make([]*pendingRequest, 0)
	for _, preq := range r.pending {
		if preq.clientID == clientID {
			affected = append(affected, preq)
		}
	}
	r.mu.Unlock()

	for _, preq := range affected {
		preq.complete(nil, ErrConnectionClosed)
	}
}

// Shutdown rejects every pending request with ErrShuttingDown and prevents
// new requests from being accepted (spec §5, global cancellation).
func (r *RequestRouter) Shutdown() {
	r.mu.Lock()
	r.closed = true
	affected := make([]*pendingRequest, 0, len(r.pending))
	for _, preq := range r.pending {
		affected = append(affected, preq)
	}
	r.mu.Unlock()

	for _, preq := range affected {
		preq.complete(nil, ErrShuttingDown)
	}
}

// PendingCount returns the number of requests currently awaiting a
// response. Exposed for tests and telemetry.
func (r *RequestRouter) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

var _ hub.Correlator = (*RequestRouter)(nil)
