package response

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Brownie44l1/rawhttp/internal/headers"
)

var (
	ErrMalformedStatusLine = errors.New("malformed status line")
	ErrIncompleteResponse  = errors.New("incomplete response")
)

// Parse reads a serialized response back: status line, headers up to the
// blank line, then Content-Length bytes of body (or the rest of data when no
// length is declared).
func Parse(data []byte) (*Response, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		return nil, ErrIncompleteResponse
	}
	line := string(bytes.TrimSuffix(data[:idx], []byte("\r")))

	version, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedStatusLine, line)
	}
	codeText, reason, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeText)
	if err != nil || len(codeText) != 3 {
		return nil, fmt.Errorf("%w: bad status code %q", ErrMalformedStatusLine, codeText)
	}

	h := headers.New()
	n, done, err := h.Parse(data[idx+1:])
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, ErrIncompleteResponse
	}

	body := data[idx+1+n:]
	if cl, ok := h.Lookup("Content-Length"); ok {
		length, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || length < 0 {
			return nil, fmt.Errorf("invalid content length %q", cl)
		}
		if len(body) < length {
			return nil, fmt.Errorf("%w: body has %d of %d bytes", ErrIncompleteResponse, len(body), length)
		}
		body = body[:length]
	}

	r := &Response{
		Version: version,
		Code:    StatusCode(code),
		Body:    body,
		headers: h,
	}
	if reason != StatusText(r.Code) {
		r.Reason = reason
	}
	return r, nil
}
