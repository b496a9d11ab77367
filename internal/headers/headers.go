package headers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedHeader   = errors.New("malformed header")
	ErrLineFolding       = errors.New("obsolete line folding not supported")
	ErrInvalidHeaderChar = errors.New("invalid character in header name")
)

// Headers maps header names to a single value. Names keep the case they were
// written with; setting a name again overwrites the value but keeps its
// original position, so serialization follows first-insertion order.
type Headers struct {
	values map[string]string
	order  []string
}

func New() *Headers {
	return &Headers{
		values: make(map[string]string),
	}
}

// Get returns the value stored under exactly this name.
func (h *Headers) Get(name string) (string, bool) {
	v, ok := h.values[name]
	return v, ok
}

// Lookup is Get with a case-insensitive fallback, for the few names the
// protocol itself needs (Content-Length and friends).
func (h *Headers) Lookup(name string) (string, bool) {
	if v, ok := h.values[name]; ok {
		return v, true
	}
	for _, k := range h.order {
		if strings.EqualFold(k, name) {
			return h.values[k], true
		}
	}
	return "", false
}

// Set stores value under name, replacing any earlier value.
func (h *Headers) Set(name, value string) {
	if _, ok := h.values[name]; !ok {
		h.order = append(h.order, name)
	}
	h.values[name] = value
}

func (h *Headers) Del(name string) {
	if _, ok := h.values[name]; !ok {
		return
	}
	delete(h.values, name)
	for i, k := range h.order {
		if k == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *Headers) Len() int {
	return len(h.order)
}

// Keys returns the names in insertion order.
func (h *Headers) Keys() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Each calls fn for every header in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, k := range h.order {
		fn(k, h.values[k])
	}
}

// Map returns a copy of the headers as a plain map.
func (h *Headers) Map() map[string]string {
	out := make(map[string]string, len(h.values))
	for k, v := range h.values {
		out[k] = v
	}
	return out
}

func (h *Headers) Clone() *Headers {
	c := &Headers{
		values: make(map[string]string, len(h.values)),
		order:  make([]string, len(h.order)),
	}
	copy(c.order, h.order)
	for k, v := range h.values {
		c.values[k] = v
	}
	return c
}

// Parse consumes complete header lines from data until the blank line.
// It returns the bytes consumed and whether the blank line was reached.
// Lines may end in CRLF or a bare LF.
func (h *Headers) Parse(data []byte) (int, bool, error) {
	read := 0

	for {
		idx := bytes.IndexByte(data[read:], '\n')
		if idx == -1 {
			// Need more data
			return read, false, nil
		}

		line := bytes.TrimSuffix(data[read:read+idx], []byte("\r"))
		read += idx + 1

		if len(line) == 0 {
			return read, true, nil
		}

		name, value, err := ParseLine(line)
		if err != nil {
			return read, false, err
		}
		h.Set(name, value)
	}
}

// ParseLine splits one "Name: Value" line, without its terminator.
func ParseLine(line []byte) (string, string, error) {
	if len(line) == 0 {
		return "", "", fmt.Errorf("%w: empty line", ErrMalformedHeader)
	}
	if line[0] == ' ' || line[0] == '\t' {
		return "", "", ErrLineFolding
	}

	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return "", "", fmt.Errorf("%w: no colon", ErrMalformedHeader)
	}

	name := line[:colonIdx]
	value := line[colonIdx+1:]

	if len(name) == 0 {
		return "", "", fmt.Errorf("%w: empty name", ErrMalformedHeader)
	}
	if bytes.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("%w: whitespace in name", ErrMalformedHeader)
	}
	for _, b := range name {
		if !isValidHeaderChar(b) {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidHeaderChar, b)
		}
	}

	return string(name), string(bytes.TrimSpace(value)), nil
}

func isValidHeaderChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '!' || b == '#' || b == '$' || b == '%' || b == '&' ||
		b == '\'' || b == '*' || b == '+' || b == '-' || b == '.' ||
		b == '^' || b == '_' || b == '`' || b == '|' || b == '~'
}
