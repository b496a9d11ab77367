package response

import (
	"encoding/json"
	"fmt"
)

// Text sets a plain text body
func (r *Response) Text(code StatusCode, body string) *Response {
	return r.Data(code, "text/plain; charset=utf-8", []byte(body))
}

// HTML sets an HTML body
func (r *Response) HTML(code StatusCode, body string) *Response {
	return r.Data(code, "text/html; charset=utf-8", []byte(body))
}

// JSON marshals v as the body.
func (r *Response) JSON(code StatusCode, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	r.Data(code, "application/json", data)
	return nil
}

// Error sets a standard text error body: "Error <code>: <message>".
func (r *Response) Error(code StatusCode, message string) *Response {
	if message == "" {
		message = StatusText(code)
	}
	return r.Text(code, fmt.Sprintf("Error %d: %s\n", code, message))
}

// Redirect points the client at location.
func (r *Response) Redirect(code StatusCode, location string) error {
	if !code.IsRedirect() {
		return fmt.Errorf("invalid redirect status code: %d", code)
	}
	r.Status(code)
	r.SetHeader("Location", location)
	r.SetHeader("Content-Length", "0")
	r.Body = nil
	return nil
}

// NoContent turns r into a 204 with no body.
func (r *Response) NoContent() *Response {
	r.Status(StatusNoContent)
	r.Body = nil
	return r
}

// Data sets an arbitrary body with its content type and length.
func (r *Response) Data(code StatusCode, contentType string, data []byte) *Response {
	r.Status(code)
	if contentType != "" {
		r.SetHeader("Content-Type", contentType)
	}
	r.SetHeader("Content-Length", fmt.Sprintf("%d", len(data)))
	r.Body = data
	return r
}
