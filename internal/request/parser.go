package request

import (
	"bytes"
	"errors"
	"io"

	"github.com/Brownie44l1/rawhttp/internal/headers"
	"github.com/Brownie44l1/rawhttp/internal/socket"
)

// Default size limits
const (
	DefaultMaxHeaders   = 64
	DefaultMaxHeadBytes = 1 << 20
	DefaultMaxBodyBytes = 10 << 20
)

// LineReader is the blocking line protocol a connection offers.
type LineReader interface {
	ReadLine(delim byte) ([]byte, error)
	ReadFull(n int) ([]byte, error)
}

// Parser turns raw bytes into Requests under fixed size limits. The zero
// value uses the defaults.
type Parser struct {
	MaxHeaders   int
	MaxHeadBytes int
	MaxBodyBytes int64
}

var defaultParser = &Parser{}

// Parse parses one request from data using the default limits.
func Parse(data []byte) (*Request, error) {
	return defaultParser.Parse(data)
}

// ReadFrom reads and parses one request from r using the default limits.
func ReadFrom(r LineReader) (*Request, error) {
	return defaultParser.ReadFrom(r)
}

func (p *Parser) maxHeaders() int {
	if p.MaxHeaders > 0 {
		return p.MaxHeaders
	}
	return DefaultMaxHeaders
}

func (p *Parser) maxHeadBytes() int {
	if p.MaxHeadBytes > 0 {
		return p.MaxHeadBytes
	}
	return DefaultMaxHeadBytes
}

func (p *Parser) maxBodyBytes() int64 {
	if p.MaxBodyBytes > 0 {
		return p.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

func trimCR(line []byte) []byte {
	return bytes.TrimSuffix(line, []byte("\r"))
}

// Parse parses a buffered request: request line, header lines up to the
// blank line, then the body. The body runs to Content-Length when declared,
// else to the end of data. The returned Request retains data.
func (p *Parser) Parse(data []byte) (*Request, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		return nil, newParseError(ErrMalformedHead, data, errors.New("unterminated request line"))
	}

	method, path, version, err := parseRequestLine(trimCR(data[:idx]))
	if err != nil {
		return nil, err
	}
	off := idx + 1

	h := headers.New()
	count := 0
	for {
		idx := bytes.IndexByte(data[off:], '\n')
		if idx == -1 {
			return nil, newParseError(ErrMalformedHead, data[off:], errors.New("unterminated headers"))
		}
		line := trimCR(data[off : off+idx])
		off += idx + 1

		if len(line) == 0 {
			break
		}

		count++
		if count > p.maxHeaders() {
			return nil, newParseError(ErrTooManyHeaders, line, nil)
		}

		name, value, err := headers.ParseLine(line)
		if err != nil {
			return nil, newParseError(ErrMalformedHead, line, err)
		}
		h.Set(name, value)
	}

	if off > p.maxHeadBytes() {
		return nil, newParseError(ErrHeadTooLarge, nil, nil)
	}

	body := data[off:]
	n, declared, err := contentLength(h)
	if err != nil {
		return nil, newParseError(ErrMalformedHead, nil, err)
	}
	if declared {
		if n > p.maxBodyBytes() {
			return nil, newParseError(ErrBodyTooLarge, nil, nil)
		}
		if int64(len(body)) > n {
			body = body[:n]
		}
	}

	return &Request{
		Method:  method,
		Version: version,
		raw:     data,
		path:    path[:len(path):len(path)],
		headers: h,
		body:    body[:len(body):len(body)],
	}, nil
}

// ReadFrom reads the request head off r line by line until the blank line,
// reads exactly Content-Length body bytes when declared, and parses the
// result. A stream that ends before any byte arrives yields io.EOF; one that
// ends inside the head yields ErrMalformedHead.
func (p *Parser) ReadFrom(r LineReader) (*Request, error) {
	buf := make([]byte, 0, 512)
	sawRequestLine := false
	skipped := 0

	for {
		line, err := r.ReadLine('\n')
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				if len(buf) == 0 && len(line) == 0 {
					return nil, io.EOF
				}
				return nil, newParseError(ErrMalformedHead, append(buf, line...), errors.New("unexpected end of stream"))
			case errors.Is(err, socket.ErrLineTooLong):
				return nil, newParseError(ErrHeadTooLarge, buf, err)
			default:
				return nil, err
			}
		}

		blank := len(trimCR(line)) == 0
		if blank && !sawRequestLine {
			// Stray CRLF before the request line. It still counts toward
			// the head limit, or a client could send them forever.
			skipped += len(line) + 1
			if skipped > p.maxHeadBytes() {
				return nil, newParseError(ErrHeadTooLarge, nil, nil)
			}
			continue
		}

		buf = append(buf, line...)
		buf = append(buf, '\n')
		if skipped+len(buf) > p.maxHeadBytes() {
			return nil, newParseError(ErrHeadTooLarge, nil, nil)
		}

		if blank {
			break
		}
		sawRequestLine = true
	}

	// Parse the head once to learn how much body to read.
	head, err := p.Parse(buf)
	if err != nil {
		return nil, err
	}
	n := head.ContentLength()
	if n <= 0 {
		return head, nil
	}

	body, err := r.ReadFull(int(n))
	if err != nil {
		return nil, err
	}
	return p.Parse(append(buf, body...))
}
