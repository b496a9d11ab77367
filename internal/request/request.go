package request

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Brownie44l1/rawhttp/internal/headers"
)

var (
	ErrUnknownMethod  = errors.New("unknown method")
	ErrUnknownVersion = errors.New("unknown version")
	ErrMalformedHead  = errors.New("malformed request head")
	ErrTooManyHeaders = errors.New("too many headers")
	ErrHeadTooLarge   = errors.New("request head too large")
	ErrBodyTooLarge   = errors.New("request body too large")
)

// maxDiagnostic caps how much of the offending input a ParseError keeps.
const maxDiagnostic = 256

// ParseError reports why a request could not be parsed. Kind is one of the
// Err* sentinels above; errors.Is matches against it.
type ParseError struct {
	Kind error
	Data []byte
	Err  error
}

func newParseError(kind error, data []byte, cause error) *ParseError {
	if len(data) > maxDiagnostic {
		data = data[:maxDiagnostic]
	}
	return &ParseError{
		Kind: kind,
		Data: append([]byte(nil), data...),
		Err:  cause,
	}
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Data) > 0 {
		msg = fmt.Sprintf("%s (near %q)", msg, e.Data)
	}
	return msg
}

func (e *ParseError) Is(target error) bool {
	return target == e.Kind
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Request is one parsed HTTP request. It is immutable once built. Path and
// body are views into the buffer the request was parsed from, which the
// Request keeps; callers must not modify the slices they are handed.
type Request struct {
	Method  Method
	Version Version

	raw     []byte
	path    []byte
	headers *headers.Headers
	body    []byte
}

// Path returns the request target exactly as sent, query string included.
func (r *Request) Path() string {
	return string(r.path)
}

// Query returns the part of the target after '?', or "".
func (r *Request) Query() string {
	_, q, _ := strings.Cut(string(r.path), "?")
	return q
}

// Header returns the value for name. Names are matched exactly as parsed.
func (r *Request) Header(name string) (string, bool) {
	return r.headers.Get(name)
}

// Headers returns a copy of the header mapping.
func (r *Request) Headers() map[string]string {
	return r.headers.Map()
}

// Body returns the request body, possibly empty.
func (r *Request) Body() []byte {
	return r.body
}

// Raw returns the complete buffer the request was parsed from.
func (r *Request) Raw() []byte {
	return r.raw
}

// ContentLength returns the declared Content-Length, or -1 when absent.
func (r *Request) ContentLength() int64 {
	n, ok, err := contentLength(r.headers)
	if !ok || err != nil {
		return -1
	}
	return n
}

func contentLength(h *headers.Headers) (int64, bool, error) {
	v, ok := h.Lookup("Content-Length")
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, true, err
	}
	if n < 0 {
		return 0, true, fmt.Errorf("negative content length %d", n)
	}
	return n, true, nil
}
