package socket

import (
	"errors"
	"fmt"
	"io"

	swnet "github.com/Brownie44l1/socket-wrapper"
	"golang.org/x/sys/unix"
)

// Kind classifies socket failures.
type Kind int

const (
	SocketCreateFailure Kind = iota
	BindFailure
	ListenFailure
	AcceptFailure
	ReadFailure
	WriteFailure
	ConnectionClosed
	CloseFailure
)

func (k Kind) String() string {
	switch k {
	case SocketCreateFailure:
		return "socket creation failed"
	case BindFailure:
		return "bind failed"
	case ListenFailure:
		return "listen failed"
	case AcceptFailure:
		return "accept failed"
	case ReadFailure:
		return "read failed"
	case WriteFailure:
		return "write failed"
	case ConnectionClosed:
		return "connection closed"
	case CloseFailure:
		return "close failed"
	default:
		return fmt.Sprintf("unknown socket error %d", int(k))
	}
}

var (
	// ErrClosed is returned by operations on a socket that has been released.
	ErrClosed = errors.New("socket: use of closed socket")
	// ErrLineTooLong is returned by ReadLine when a line exceeds the limit.
	ErrLineTooLong = errors.New("socket: line too long")
)

// Error is the IO error surfaced by sockets, listeners and connections.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so callers can
// write errors.Is(err, &socket.Error{Kind: socket.ConnectionClosed}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsClosed reports whether err means the peer went away.
func IsClosed(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == ConnectionClosed
	}
	return errors.Is(err, ErrClosed)
}

// readError classifies a failed read. The wrapper reports a reset as a
// plain io.EOF, so a reset in the middle of ReadFull arrives here as
// io.ErrUnexpectedEOF and is still a closed connection.
func readError(err error) error {
	if errors.Is(err, unix.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, swnet.ErrConnClosed) {
		return &Error{Kind: ConnectionClosed, Op: "read", Err: err}
	}
	return &Error{Kind: ReadFailure, Op: "read", Err: err}
}

func writeError(err error) error {
	if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, swnet.ErrConnClosed) {
		return &Error{Kind: ConnectionClosed, Op: "write", Err: err}
	}
	return &Error{Kind: WriteFailure, Op: "write", Err: err}
}

// listenError classifies a wrapper Listen failure by its errno.
func listenError(err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.EACCES:
			return &Error{Kind: BindFailure, Op: "listen", Err: err}
		case unix.EMFILE, unix.ENFILE, unix.EAFNOSUPPORT:
			return &Error{Kind: SocketCreateFailure, Op: "listen", Err: err}
		}
	}
	return &Error{Kind: ListenFailure, Op: "listen", Err: err}
}
