package server

import (
	"errors"
	"io"
	"time"

	"github.com/Brownie44l1/rawhttp/internal/pool"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/socket"
)

// serveConn handles exactly one request on conn and closes it. It runs on a
// pool worker, which owns conn from here on.
func (s *Server) serveConn(conn *socket.Conn) error {
	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)
	defer conn.Close()

	start := time.Now()

	req, err := s.parser.ReadFrom(conn)
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected and went away without sending anything.
			return nil
		}
		var perr *request.ParseError
		if !errors.As(err, &perr) {
			return err
		}
		return s.handleBadRequest(conn, perr, start)
	}

	res := response.New()
	matched, herr := s.router.Dispatch(req, res)
	switch {
	case herr != nil:
		s.metrics.HandlerErrors.Add(1)
		s.logger.Error("handler failed",
			Field{"method", string(req.Method)},
			Field{"path", req.Path()},
			Field{"error", herr.Error()},
		)
		res = response.New().Error(response.StatusInternalServerError, "")
	case !matched:
		s.metrics.DispatchMisses.Add(1)
		res = response.New().Status(response.StatusNotFound)
	}

	if req.Method == request.HEAD {
		res.StripBody()
	}
	return s.writeResponse(conn, res, start)
}

// handleBadRequest answers a request that could not be parsed.
func (s *Server) handleBadRequest(conn *socket.Conn, perr *request.ParseError, start time.Time) error {
	s.metrics.ParseErrors.Add(1)
	s.logger.Debug("bad request",
		Field{"remote", conn.RemoteAddr()},
		Field{"error", perr.Error()},
	)

	code := statusForParseError(perr)
	err := s.writeResponse(conn, response.New().Error(code, perr.Kind.Error()), start)
	if err == nil {
		// The rest of the request is still unread.
		conn.Linger(s.config.LingerBytes, s.config.LingerTimeout)
	}
	return err
}

func statusForParseError(err error) response.StatusCode {
	switch {
	case errors.Is(err, request.ErrBodyTooLarge):
		return response.StatusRequestEntityTooLarge
	case errors.Is(err, request.ErrHeadTooLarge), errors.Is(err, request.ErrTooManyHeaders):
		return response.StatusRequestHeaderFieldsTooLarge
	default:
		return response.StatusBadRequest
	}
}

func (s *Server) writeResponse(conn *socket.Conn, res *response.Response, start time.Time) error {
	w := response.NewWriter(conn)
	err := w.WriteResponse(res)
	s.metrics.RecordRequest(res.Code, time.Since(start))
	return err
}

// reportConnError receives whatever serveConn returned, or a recovered
// panic, from the pool.
func (s *Server) reportConnError(err error) {
	var pe *pool.PanicError
	if errors.As(err, &pe) {
		s.metrics.HandlerErrors.Add(1)
		s.logger.Error("worker recovered from panic",
			Field{"error", err.Error()},
			Field{"stack", string(pe.Stack)},
		)
		return
	}

	if socket.IsClosed(err) {
		s.logger.Debug("connection closed by peer", Field{"error", err.Error()})
		return
	}
	s.logger.Warn("connection error", Field{"error", err.Error()})
}
