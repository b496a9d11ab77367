package response

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Brownie44l1/rawhttp/internal/bufpool"
	"github.com/Brownie44l1/rawhttp/internal/headers"
)

var ErrAlreadyWritten = errors.New("response already written")

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer serializes responses onto an io.Writer, normally a connection.
type Writer struct {
	w          io.Writer
	state      writerState
	statusCode StatusCode
	written    int64
	hadError   bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
	}
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.written += int64(n)
	if err != nil {
		w.hadError = true
	}
	return err
}

// WriteResponse serializes r into one pooled buffer and writes it in a
// single call. r is marked written and cannot be sent again.
func (w *Writer) WriteResponse(r *Response) error {
	if r.written {
		return ErrAlreadyWritten
	}
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}
	r.written = true

	buf := bufpool.Get(bufpool.Small)[:0]
	buf = r.AppendTo(buf)
	err := w.write(buf)
	bufpool.Put(buf)

	w.statusCode = r.Code
	w.state = stateBodyWritten
	return err
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}

	line := make([]byte, 0, 64)
	line = append(line, Version...)
	line = append(line, ' ')
	line = strconv.AppendInt(line, int64(code), 10)
	line = append(line, ' ')
	line = append(line, StatusText(code)...)
	line = append(line, "\r\n"...)
	if err := w.write(line); err != nil {
		return err
	}

	w.statusCode = code
	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes every header followed by the blank line.
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("must write status line before headers")
	}

	var block []byte
	h.Each(func(name, value string) {
		block = append(block, name...)
		block = append(block, ": "...)
		block = append(block, value...)
		block = append(block, "\r\n"...)
	})
	block = append(block, "\r\n"...)
	if err := w.write(block); err != nil {
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes the complete response body
func (w *Writer) WriteBody(data []byte) error {
	if w.state != stateHeadersWritten {
		return fmt.Errorf("must write headers before body")
	}

	if len(data) > 0 {
		if err := w.write(data); err != nil {
			return err
		}
	}

	w.state = stateBodyWritten
	return nil
}

// Started reports whether any part of a response has been written.
func (w *Writer) Started() bool {
	return w.state != stateStart
}

func (w *Writer) HadError() bool {
	return w.hadError
}

func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

// BytesWritten counts bytes accepted by the underlying writer.
func (w *Writer) BytesWritten() int64 {
	return w.written
}
