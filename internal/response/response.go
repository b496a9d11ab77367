package response

import (
	"strconv"

	"github.com/Brownie44l1/rawhttp/internal/headers"
)

// Version is the only protocol version the server speaks.
const Version = "HTTP/1.1"

// Response is built by a handler and serialized once by a Writer.
type Response struct {
	Version string
	Code    StatusCode
	// Reason overrides the standard phrase for Code when non-empty.
	Reason string
	Body   []byte

	headers *headers.Headers
	written bool
}

// New returns an empty 200 OK response.
func New() *Response {
	return &Response{
		Version: Version,
		Code:    StatusOK,
		headers: headers.New(),
	}
}

// Status sets the status code and resets any custom reason phrase.
func (r *Response) Status(code StatusCode) *Response {
	r.Code = code
	r.Reason = ""
	return r
}

// ReasonPhrase returns Reason, or the standard phrase for Code.
func (r *Response) ReasonPhrase() string {
	if r.Reason != "" {
		return r.Reason
	}
	return StatusText(r.Code)
}

func (r *Response) Headers() *headers.Headers {
	return r.headers
}

func (r *Response) SetHeader(name, value string) *Response {
	r.headers.Set(name, value)
	return r
}

func (r *Response) SetBody(body []byte) *Response {
	r.Body = body
	return r
}

// StripBody drops the body but keeps the Content-Length it would have had,
// which is what a HEAD response carries.
func (r *Response) StripBody() *Response {
	if _, ok := r.headers.Lookup("Content-Length"); !ok && len(r.Body) > 0 {
		r.headers.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	r.Body = nil
	return r
}

// Written reports whether the response has been serialized.
func (r *Response) Written() bool {
	return r.written
}

// AppendTo appends the wire form of r to dst:
//
//	VERSION SP CODE SP REASON CRLF
//	Name: Value CRLF ...
//	CRLF
//	body
//
// Headers keep insertion order. When the body is non-empty and no
// Content-Length was set, one is added from len(Body); an empty body with no
// declared length is sent without the header.
func (r *Response) AppendTo(dst []byte) []byte {
	version := r.Version
	if version == "" {
		version = Version
	}

	dst = append(dst, version...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(r.Code), 10)
	dst = append(dst, ' ')
	dst = append(dst, r.ReasonPhrase()...)
	dst = append(dst, "\r\n"...)

	r.headers.Each(func(name, value string) {
		dst = append(dst, name...)
		dst = append(dst, ": "...)
		dst = append(dst, value...)
		dst = append(dst, "\r\n"...)
	})
	if _, ok := r.headers.Lookup("Content-Length"); !ok && len(r.Body) > 0 {
		dst = append(dst, "Content-Length: "...)
		dst = strconv.AppendInt(dst, int64(len(r.Body)), 10)
		dst = append(dst, "\r\n"...)
	}

	dst = append(dst, "\r\n"...)
	return append(dst, r.Body...)
}

// Bytes returns the wire form of r.
func (r *Response) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 128+len(r.Body)))
}
