// Package server accepts TCP connections on a raw socket and hands each one
// to a fixed worker pool. A worker reads one request, dispatches it through
// the router, writes one response and closes the connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Brownie44l1/rawhttp/internal/pool"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/router"
	"github.com/Brownie44l1/rawhttp/internal/socket"
)

var (
	ErrServerClosed   = errors.New("server: closed")
	ErrAlreadyServing = errors.New("server: already serving")
	ErrNotListening   = errors.New("server: not listening")
)

type Server struct {
	config  Config
	router  *router.Router
	parser  *request.Parser
	logger  Logger
	metrics *Metrics

	mu       sync.Mutex
	listener *socket.Listener
	pool     *pool.Pool[*socket.Conn]
	serving  bool
	closed   atomic.Bool
	done     chan struct{}
}

// New validates config and freezes r. Routes registered on r afterwards
// are rejected.
func New(config Config, r *router.Router) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.New("server: nil router")
	}
	if config.Logger == nil {
		config.Logger = NewLogger(nil)
	}
	r.Freeze()

	return &Server{
		config:  config,
		router:  r,
		parser:  config.parser(),
		logger:  config.Logger,
		metrics: NewMetrics(),
		done:    make(chan struct{}),
	}, nil
}

// Listen binds the listening socket without accepting yet. Serve calls it
// when needed; calling it first lets the caller learn the bound port.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}

	ln, err := socket.Listen(s.config.Port,
		socket.WithBacklog(s.config.Backlog),
		socket.WithLogger(listenerLogger{s.logger}),
	)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.config.Port, err)
	}
	s.listener = ln
	return nil
}

// Serve runs the accept loop until ctx is cancelled or Shutdown is called,
// then waits for the workers to drain every accepted connection. It returns
// nil after a clean stop.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.serving {
		s.mu.Unlock()
		return ErrAlreadyServing
	}
	p, err := pool.New(s.serveConn, s.config.Workers, pool.WithErrorHandler(s.reportConnError))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.serving = true
	s.pool = p
	ln := s.listener
	s.mu.Unlock()

	defer close(s.done)

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	s.logger.Info("server listening",
		Field{"addr", ln.Addr()},
		Field{"workers", s.config.Workers},
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, socket.ErrClosed) || s.closed.Load() || ctx.Err() != nil {
				break
			}
			s.logger.Warn("accept failed", Field{"error", err.Error()})
			continue
		}

		if ctx.Err() != nil || s.closed.Load() {
			conn.Close()
			break
		}

		s.metrics.ConnectionsTotal.Add(1)
		if err := p.Submit(conn); err != nil {
			conn.Close()
			break
		}
	}

	ln.Close()
	p.Close()
	stats := ln.Stats()
	s.logger.Info("server stopped",
		Field{"addr", ln.Addr()},
		Field{"accepted", stats.TotalAccepted},
		Field{"accept_errors", stats.TotalErrors},
	)
	return nil
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown stops accepting connections and waits, bounded by ctx, for
// in-flight and queued connections to be handled.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrServerClosed
	}

	s.mu.Lock()
	ln, serving := s.listener, s.serving
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil {
			s.logger.Warn("closing listener", Field{"error", err.Error()})
		}
	}
	if !serving {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the listening address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		return ln.Addr()
	}
	return fmt.Sprintf("[::]:%d", s.config.Port)
}

// Port returns the bound port, or 0 before Listen.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return s.listener.Port()
}

// Metrics returns the live counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Stats returns a snapshot of the server metrics.
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// PoolStats reports the worker pool, or ErrNotListening before Serve.
func (s *Server) PoolStats() (pool.Stats, error) {
	s.mu.Lock()
	p := s.pool
	s.mu.Unlock()
	if p == nil {
		return pool.Stats{}, ErrNotListening
	}
	return p.Stats(), nil
}
