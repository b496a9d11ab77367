package request

import (
	"bytes"
)

// Method is a supported HTTP request method.
type Method string

const (
	GET     Method = "GET"
	POST    Method = "POST"
	PUT     Method = "PUT"
	DELETE  Method = "DELETE"
	PATCH   Method = "PATCH"
	HEAD    Method = "HEAD"
	OPTIONS Method = "OPTIONS"
)

// ParseMethod maps a request-line token to a Method. Tokens are
// case-sensitive.
func ParseMethod(token string) (Method, bool) {
	switch m := Method(token); m {
	case GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS:
		return m, true
	default:
		return "", false
	}
}

// Version is a supported protocol version.
type Version string

const HTTP11 Version = "HTTP/1.1"

func ParseVersion(token string) (Version, bool) {
	if Version(token) == HTTP11 {
		return HTTP11, true
	}
	return "", false
}

// parseRequestLine parses: METHOD SP PATH SP VERSION (terminator already
// stripped). The returned path aliases line.
func parseRequestLine(line []byte) (Method, []byte, Version, error) {
	parts := bytes.Split(line, []byte(" "))
	if len(parts) != 3 || len(parts[0]) == 0 || len(parts[1]) == 0 || len(parts[2]) == 0 {
		return "", nil, "", newParseError(ErrMalformedHead, line, nil)
	}

	method, ok := ParseMethod(string(parts[0]))
	if !ok {
		return "", nil, "", newParseError(ErrUnknownMethod, parts[0], nil)
	}

	version, ok := ParseVersion(string(parts[2]))
	if !ok {
		return "", nil, "", newParseError(ErrUnknownVersion, parts[2], nil)
	}

	return method, parts[1], version, nil
}
