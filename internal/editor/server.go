package editor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// ControlServer exposes the editor-side Dispatcher over a real TCP
// listener, for standalone testing or a reversed-transport deployment
// where the bridge dials out to the editor instead of the default "editor
// dials the bridge" arrangement (spec §10). It accepts at most one
// connection at a time; a new connection replaces whatever was previously
// being served.
type ControlServer struct {
	listener   net.Listener
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	current net.Conn
}

// NewControlServer binds a listener at addr serving dispatcher.
func NewControlServer(addr string, dispatcher *Dispatcher, logger *slog.Logger) (*ControlServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("editor: listen %s: %w", addr, err)
	}
	return &ControlServer{listener: ln, dispatcher: dispatcher, logger: logger}, nil
}

// Addr returns the bound listener address.
func (s *ControlServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is canceled, replacing any
// previously active connection as each new one arrives.
func (s *ControlServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("editor: accept: %w", err)
		}

		s.mu.Lock()
		if s.current != nil {
			_ = s.current.Close()
		}
		s.current = conn
		s.mu.Unlock()

		go func(c net.Conn) {
			defer c.Close()
			if err := s.dispatcher.Serve(ctx, c, c); err != nil {
				s.logger.Debug("editor: connection closed", "error", err)
			}
		}(conn)
	}
}

// Close stops accepting connections and closes the active one, if any.
func (s *ControlServer) Close() error {
	s.mu.Lock()
	if s.current != nil {
		_ = s.current.Close()
	}
	s.mu.Unlock()
	return s.listener.Close()
}
