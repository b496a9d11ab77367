package socket

import (
	"bytes"
	"errors"
	"io"
	"time"

	swnet "github.com/Brownie44l1/socket-wrapper"
	"golang.org/x/sys/unix"

	"github.com/Brownie44l1/rawhttp/internal/bufpool"
)

// DefaultMaxLine bounds a single ReadLine.
const DefaultMaxLine = 64 << 10

// Conn is the byte stream of one client. It is not safe for concurrent use;
// exactly one goroutine owns it until Close.
type Conn struct {
	nc      stream
	remote  string
	buf     []byte
	r, w    int
	maxLine int

	// eof is set once the peer finished sending.
	eof bool
	// released is set when the wrapper already closed the descriptor
	// itself, after end of stream or a broken pipe. The number may be
	// reused by then, so Close must not shut it down.
	released bool
}

func newConn(nc stream, remote string) *Conn {
	return &Conn{
		nc:      nc,
		remote:  remote,
		buf:     bufpool.Get(bufpool.Small),
		maxLine: DefaultMaxLine,
	}
}

// Dial connects to an IPv4 TCP address. It is mostly useful for tests and
// tooling; the server only ever accepts.
func Dial(host string, port int) (*Conn, error) {
	nc, err := swnet.Dial("tcp", host, port)
	if err != nil {
		var errno unix.Errno
		if errors.As(err, &errno) && errno != unix.EMFILE && errno != unix.ENFILE {
			return nil, &Error{Kind: ConnectionClosed, Op: "dial", Err: err}
		}
		return nil, &Error{Kind: SocketCreateFailure, Op: "dial", Err: err}
	}
	return newConn(nc, nc.RemoteAddr()), nil
}

// Pair returns two connected local stream connections.
func Pair() (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, &Error{Kind: SocketCreateFailure, Op: "socketpair", Err: err}
	}
	return newConn(newSocket(fds[0]), "@"), newConn(newSocket(fds[1]), "@"), nil
}

// RemoteAddr returns the peer address captured at accept time.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// SetMaxLineLength changes the ReadLine limit. n <= 0 removes it.
func (c *Conn) SetMaxLineLength(n int) {
	c.maxLine = n
}

// fill refills the empty read buffer with one read from the stream.
func (c *Conn) fill() error {
	if c.buf == nil {
		return ErrClosed
	}
	if c.eof {
		return io.EOF
	}
	c.r, c.w = 0, 0
	n, err := c.nc.Read(c.buf)
	switch {
	case err == nil && n > 0:
		c.w = n
		return nil
	case err == nil, errors.Is(err, io.EOF):
		// The wrapper closes its descriptor before reporting end of
		// stream or a reset.
		c.eof = true
		_, c.released = c.nc.(swnet.Conn)
		return io.EOF
	case errors.Is(err, swnet.ErrConnClosed):
		c.eof, c.released = true, true
		return readError(err)
	case err == ErrClosed:
		return err
	default:
		return readError(err)
	}
}

// Read implements io.Reader, serving buffered bytes first.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.r == c.w {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.buf[c.r:c.w])
	c.r += n
	return n, nil
}

// ReadByte returns the next byte or io.EOF at end of stream.
func (c *Conn) ReadByte() (byte, error) {
	if c.r == c.w {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}
	b := c.buf[c.r]
	c.r++
	return b, nil
}

// ReadLine accumulates bytes until delim and returns them without it. When
// the stream ends first, the bytes gathered so far are returned together with
// io.EOF; that is the normal "no further data" outcome, not a failure.
func (c *Conn) ReadLine(delim byte) ([]byte, error) {
	var line []byte
	for {
		if c.r == c.w {
			if err := c.fill(); err != nil {
				return line, err
			}
		}

		chunk := c.buf[c.r:c.w]
		if i := bytes.IndexByte(chunk, delim); i >= 0 {
			line = append(line, chunk[:i]...)
			c.r += i + 1
			if c.maxLine > 0 && len(line) > c.maxLine {
				return nil, ErrLineTooLong
			}
			if line == nil {
				line = []byte{}
			}
			return line, nil
		}

		line = append(line, chunk...)
		c.r = c.w
		if c.maxLine > 0 && len(line) > c.maxLine {
			return nil, ErrLineTooLong
		}
	}
}

// ReadFull blocks until exactly n bytes have been read. A peer that closes
// early yields a ConnectionClosed error.
func (c *Conn) ReadFull(n int) ([]byte, error) {
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}
	if _, err := io.ReadFull(c, out); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if _, ok := err.(*Error); ok || err == ErrClosed {
			return nil, err
		}
		return nil, readError(err)
	}
	return out, nil
}

// Write sends all of p and fails only on an unrecoverable error.
func (c *Conn) Write(p []byte) (int, error) {
	if c.buf == nil {
		return 0, ErrClosed
	}
	n, err := c.nc.Write(p)
	if err != nil {
		if err == ErrClosed {
			return n, err
		}
		if _, ok := c.nc.(swnet.Conn); ok &&
			(errors.Is(err, io.ErrClosedPipe) || errors.Is(err, swnet.ErrConnClosed)) {
			c.released = true
		}
		return n, writeError(err)
	}
	return n, nil
}

// SetReadDeadline bounds every following read. It is a no-op on a Pair.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if d, ok := c.nc.(interface{ SetReadDeadline(time.Time) error }); ok {
		return d.SetReadDeadline(t)
	}
	return nil
}

// CloseWrite half-closes the connection; the peer sees end of stream.
func (c *Conn) CloseWrite() error {
	if c.buf == nil {
		return ErrClosed
	}
	if c.released {
		return nil
	}
	return c.nc.CloseWrite()
}

// Linger sends FIN and then discards whatever the peer still sends, up to
// limit bytes or for at most d, before the caller closes. Closing a socket
// with unread input makes the kernel answer with a reset, which can destroy
// a response the peer has not read yet.
func (c *Conn) Linger(limit int, d time.Duration) {
	if c.buf == nil || c.released {
		return
	}
	_ = c.nc.CloseWrite()
	if c.eof {
		return
	}
	if err := c.SetReadDeadline(time.Now().Add(d)); err != nil {
		return
	}

	discarded := c.w - c.r
	c.r = c.w
	for discarded < limit {
		if err := c.fill(); err != nil {
			break
		}
		discarded += c.w
		c.r = c.w
	}
}

// Close shuts down both directions and releases the descriptor. Calling it
// again is a no-op.
func (c *Conn) Close() error {
	if c.buf == nil {
		return nil
	}
	if !c.released {
		// ENOTCONN when the peer already left is expected here.
		_ = c.nc.CloseRead()
		_ = c.nc.CloseWrite()
	}
	bufpool.Put(c.buf)
	c.buf = nil
	c.r, c.w = 0, 0
	if err := c.nc.Close(); err != nil {
		if _, ok := err.(*Error); ok {
			return err
		}
		return &Error{Kind: CloseFailure, Op: "close", Err: err}
	}
	return nil
}
