package server

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/router"
)

// LoggingMiddleware logs every dispatched request
func LoggingMiddleware(logger Logger) router.Middleware {
	return func(next router.Handler) router.Handler {
		return func(captures []string, req *request.Request, res *response.Response) error {
			start := time.Now()

			err := next(captures, req, res)

			fields := []Field{
				{"method", string(req.Method)},
				{"path", req.Path()},
				{"status", int(res.Code)},
				{"duration_ms", time.Since(start).Milliseconds()},
			}
			if id, ok := res.Headers().Get(RequestIDHeader); ok {
				fields = append(fields, Field{"request_id", id})
			}
			if err != nil {
				logger.Warn("request failed", append(fields, Field{"error", err.Error()})...)
				return err
			}
			logger.Info("request handled", fields...)
			return nil
		}
	}
}

// RecoveryMiddleware turns a handler panic into an error, so the server
// answers 500 instead of dropping the connection.
func RecoveryMiddleware(logger Logger) router.Middleware {
	return func(next router.Handler) router.Handler {
		return func(captures []string, req *request.Request, res *response.Response) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic recovered",
						Field{"error", fmt.Sprint(r)},
						Field{"stack", string(debug.Stack())},
						Field{"path", req.Path()},
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()

			return next(captures, req, res)
		}
	}
}

// RequestIDHeader carries the id set by RequestIDMiddleware.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each response with a process-unique id.
func RequestIDMiddleware() router.Middleware {
	prefix := strconv.FormatInt(time.Now().Unix(), 36)
	var seq atomic.Uint64

	return func(next router.Handler) router.Handler {
		return func(captures []string, req *request.Request, res *response.Response) error {
			id := prefix + "-" + strconv.FormatUint(seq.Add(1), 10)
			res.SetHeader(RequestIDHeader, id)
			return next(captures, req, res)
		}
	}
}

// CORSConfig configures CORS middleware
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns a permissive CORS config (for development)
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
}

// CORSMiddleware adds CORS headers for allowed origins. An OPTIONS request
// that reaches it is answered with 204 without calling the handler.
func CORSMiddleware(config CORSConfig) router.Middleware {
	return func(next router.Handler) router.Handler {
		return func(captures []string, req *request.Request, res *response.Response) error {
			origin, _ := req.Header("Origin")

			if origin != "" && isAllowedOrigin(origin, config.AllowedOrigins) {
				res.SetHeader("Access-Control-Allow-Origin", origin)
				res.SetHeader("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				res.SetHeader("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))

				if config.AllowCredentials {
					res.SetHeader("Access-Control-Allow-Credentials", "true")
				}
				if config.MaxAge > 0 {
					res.SetHeader("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
				}
			}

			if req.Method == request.OPTIONS {
				res.NoContent()
				return nil
			}

			return next(captures, req, res)
		}
	}
}

func isAllowedOrigin(origin string, allowed []string) bool {
	for _, allowedOrigin := range allowed {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}
