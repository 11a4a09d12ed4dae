package editor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/mcpbridge/bridge/internal/wire"
)

// MaxReadBufferBytes mirrors internal/hub's cap: a peer that never
// completes a message within this many bytes is misbehaving (spec §5).
const MaxReadBufferBytes = 1 << 20

// Dispatcher is the editor-side half of the wire protocol: it reads framed
// envelopes from a connection, parses "prefix.action" (or resource-kind)
// commands, runs them on a MainThreadQueue, and writes back a correlated
// response (spec §4.4). It operates over any io.ReadWriter, independent of
// how that connection was established (see ControlServer for the
// reversed-transport case).
type Dispatcher struct {
	registry *Registry
	queue    *MainThreadQueue
	logger   *slog.Logger

	writeMu sync.Mutex
	w       io.Writer
}

// NewDispatcher returns a Dispatcher that serves requests using registry
// and executes them through queue.
func NewDispatcher(registry *Registry, queue *MainThreadQueue, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, queue: queue, logger: logger}
}

// Register sends a registration envelope identifying this client to the
// peer (spec §4.2's identity-rewrite handshake).
func (d *Dispatcher) Register(w io.Writer, clientID string, info *wire.ClientInfo) error {
	env := wire.Envelope{Type: wire.KindRegistration, ClientID: clientID, ClientInfo: info}
	return d.write(w, env)
}

// Serve reads framed envelopes from r and writes responses to w until r is
// exhausted or ctx is canceled. Serve blocks; callers typically run it in
// its own goroutine.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	d.w = w
	framer := wire.NewFramer()
	reader := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 64*1024)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := reader.Read(buf)
		if n > 0 {
			msgs, ferrs := framer.Feed(buf[:n])
			for _, ferr := range ferrs {
				d.logger.Warn("editor: framing error", "error", ferr)
			}
			if framer.Pending() > MaxReadBufferBytes {
				return fmt.Errorf("editor: peer exceeded read buffer cap")
			}
			for _, raw := range msgs {
				d.handle(ctx, raw, w)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, raw json.RawMessage, w io.Writer) {
	env, err := wire.Decode(raw)
	if err != nil {
		d.logger.Warn("editor: malformed envelope", "error", err)
		return
	}
	if env.ID == "" {
		// Async notification or a response to a request we issued;
		// neither is this dispatcher's to answer.
		return
	}

	result, execErr := d.execute(ctx, env)
	resp := wire.Envelope{ID: env.ID}
	if execErr != nil {
		resp.Status = wire.StatusError
		resp.Message = execErr.Error()
	} else {
		resp.Status = wire.StatusSuccess
		body, err := json.Marshal(result)
		if err != nil {
			resp.Status = wire.StatusError
			resp.Message = fmt.Sprintf("editor: marshal result: %v", err)
		} else {
			resp.Result = body
		}
	}

	if err := d.write(w, resp); err != nil {
		d.logger.Warn("editor: write response failed", "error", err)
	}
}

func (d *Dispatcher) execute(ctx context.Context, env *wire.Envelope) (any, error) {
	switch env.Type {
	case wire.KindResource:
		fn, err := d.registry.lookupResource(env.Command)
		if err != nil {
			return nil, err
		}
		return d.queue.Submit(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx, env.Command)
		})
	case wire.KindCommand, "":
		if !isValidCommandName(env.Command) {
			return nil, fmt.Errorf("editor: malformed command name %q", env.Command)
		}
		fn, err := d.registry.lookupCommand(env.Command)
		if err != nil {
			return nil, err
		}
		return d.queue.Submit(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx, env.Params)
		})
	default:
		return nil, fmt.Errorf("editor: unrecognized message type %q", env.Type)
	}
}

// isValidCommandName enforces the "prefix.action" shape (spec §4.4).
func isValidCommandName(name string) bool {
	if name == "" {
		return false
	}
	idx := strings.IndexByte(name, '.')
	return idx > 0 && idx < len(name)-1
}

func (d *Dispatcher) write(w io.Writer, env wire.Envelope) error {
	body, err := env.Encode()
	if err != nil {
		return fmt.Errorf("editor: encode envelope: %w", err)
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_, err = w.Write(append(body, '\n'))
	return err
}
