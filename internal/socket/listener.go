package socket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	swnet "github.com/Brownie44l1/socket-wrapper"
	"golang.org/x/sys/unix"
)

// DefaultBacklog is used when Listen is given a non-positive backlog.
const DefaultBacklog = unix.SOMAXCONN

// Logger receives the listener's key/value log lines.
type Logger = swnet.Logger

// ListenerStats counts what the listener accepted.
type ListenerStats = swnet.ListenerStats

// ListenOption tunes the wrapper configuration behind Listen.
type ListenOption func(*swnet.Config)

// WithBacklog sets the kernel accept queue length.
func WithBacklog(n int) ListenOption {
	return func(cfg *swnet.Config) {
		if n > 0 {
			cfg.WithBacklog(n)
		}
	}
}

// WithLogger routes the listener's own log lines to l.
func WithLogger(l Logger) ListenOption {
	return func(cfg *swnet.Config) {
		cfg.WithLogger(l)
	}
}

// Listener is a bound, listening TCP socket on every interface, IPv4 and
// IPv6 alike.
type Listener struct {
	ln   swnet.Listener
	port int

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	idle   *sync.Cond
	active int // Accept calls in flight
	closed bool
}

// Listen starts listening on port. Port 0 picks a free port.
func Listen(port int, opts ...ListenOption) (*Listener, error) {
	if port < 0 || port > 65535 {
		return nil, &Error{Kind: BindFailure, Op: "listen", Err: fmt.Errorf("invalid port %d", port)}
	}
	if port == 0 {
		p, err := freePort()
		if err != nil {
			return nil, err
		}
		port = p
	}

	// Deferred accept would hide clients that connect and send nothing.
	cfg := swnet.DefaultConfig().WithPort(port).WithBacklog(DefaultBacklog).WithDeferAccept(0)
	for _, opt := range opts {
		opt(cfg)
	}

	ln, err := swnet.Listen(cfg)
	if err != nil {
		return nil, listenError(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{ln: ln, port: port, ctx: ctx, cancel: cancel}
	l.idle = sync.NewCond(&l.mu)
	return l, nil
}

// freePort asks the kernel for an unused port. The wrapper reports only the
// configured port, so an ephemeral one has to be known before binding.
func freePort() (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, &Error{Kind: SocketCreateFailure, Op: "socket", Err: err}
	}
	defer unix.Close(fd)

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
		return 0, &Error{Kind: SocketCreateFailure, Op: "setsockopt", Err: err}
	}
	if err := unix.Bind(fd, &unix.SockaddrInet6{}); err != nil {
		return 0, &Error{Kind: BindFailure, Op: "bind", Err: err}
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, &Error{Kind: BindFailure, Op: "getsockname", Err: err}
	}
	in6, ok := sa.(*unix.SockaddrInet6)
	if !ok {
		return 0, &Error{Kind: BindFailure, Op: "getsockname", Err: errors.New("unexpected address family")}
	}
	return in6.Port, nil
}

// Port returns the port the listener is bound to.
func (l *Listener) Port() int {
	return l.port
}

// Addr returns the bound address, "[::]:port".
func (l *Listener) Addr() string {
	return l.ln.Addr()
}

// Stats reports accepted, active and rejected connections.
func (l *Listener) Stats() ListenerStats {
	return l.ln.Stats()
}

// Accept blocks until a client connects and returns its connection. After
// Close it returns ErrClosed.
func (l *Listener) Accept() (*Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.active++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.active--
		if l.active == 0 {
			l.idle.Broadcast()
		}
		l.mu.Unlock()
	}()

	nc, err := l.ln.AcceptContext(l.ctx)
	if err != nil {
		if l.ctx.Err() != nil || errors.Is(err, swnet.ErrListenerClosed) {
			return nil, ErrClosed
		}
		return nil, &Error{Kind: AcceptFailure, Op: "accept", Err: err}
	}
	return newConn(nc, unmapAddr(nc.RemoteAddr())), nil
}

// Close stops the listener. Pending Accept calls return ErrClosed, and the
// descriptor is released only after all of them have let go of it.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.cancel()
	for l.active > 0 {
		l.idle.Wait()
	}
	l.mu.Unlock()

	if err := l.ln.Close(); err != nil {
		return &Error{Kind: CloseFailure, Op: "close", Err: err}
	}
	return nil
}
