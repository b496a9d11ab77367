// Package socket layers a blocking byte and line protocol over TCP streams
// from github.com/Brownie44l1/socket-wrapper, plus local socket pairs.
//
// A descriptor has exactly one owner at a time. Socket, Listener and Conn are
// always handled by pointer and expose no way to duplicate the descriptor;
// Close is idempotent and releases the descriptor exactly once.
package socket

import (
	"io"
	"net/netip"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// closedFd marks a Socket whose descriptor has been released.
const closedFd = -1

// stream is the byte transport under a Conn. Accepted and dialed TCP
// connections use the wrapper's Conn; Pair uses a Socket.
type stream interface {
	io.ReadWriteCloser
	CloseRead() error
	CloseWrite() error
}

// Socket is the single owner of one OS socket descriptor that the wrapper
// did not create, such as either end of a socketpair.
type Socket struct {
	fd atomic.Int64
}

func newSocket(fd int) *Socket {
	s := &Socket{}
	s.fd.Store(int64(fd))
	return s
}

// Fd returns the descriptor, or -1 once the socket is closed.
func (s *Socket) Fd() int {
	return int(s.fd.Load())
}

// Valid reports whether the socket still owns a descriptor.
func (s *Socket) Valid() bool {
	return s.fd.Load() != closedFd
}

// Close releases the descriptor. Only the first call closes it.
func (s *Socket) Close() error {
	fd := s.fd.Swap(closedFd)
	if fd == closedFd {
		return nil
	}
	if err := unix.Close(int(fd)); err != nil {
		return &Error{Kind: CloseFailure, Op: "close", Err: err}
	}
	return nil
}

func (s *Socket) CloseRead() error  { return s.shutdown(unix.SHUT_RD) }
func (s *Socket) CloseWrite() error { return s.shutdown(unix.SHUT_WR) }

func (s *Socket) shutdown(how int) error {
	fd := s.fd.Load()
	if fd == closedFd {
		return ErrClosed
	}
	return unix.Shutdown(int(fd), how)
}

// Read performs one read. End of stream is (0, nil).
func (s *Socket) Read(p []byte) (int, error) {
	for {
		fd := s.fd.Load()
		if fd == closedFd {
			return 0, ErrClosed
		}
		n, err := unix.Read(int(fd), p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Write sends all of p. MSG_NOSIGNAL turns a dead peer into EPIPE instead
// of SIGPIPE.
func (s *Socket) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		fd := s.fd.Load()
		if fd == closedFd {
			return written, ErrClosed
		}
		n, err := unix.SendmsgN(int(fd), p[written:], nil, nil, unix.MSG_NOSIGNAL)
		if n > 0 {
			written += n
		}
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// unmapAddr rewrites the IPv4-mapped peers of a dual-stack listener
// ("[::ffff:127.0.0.1]:5000") in plain IPv4 form.
func unmapAddr(addr string) string {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return addr
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()).String()
}
