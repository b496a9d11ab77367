package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/rawhttp/internal/pool"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/socket"
)

const (
	DefaultLingerBytes   = 256 << 10
	DefaultLingerTimeout = 250 * time.Millisecond
)

// Config holds server configuration
type Config struct {
	// Port to listen on, on every interface. 0 picks a free port; see
	// Server.Port.
	Port int
	// Workers is the fixed number of request-handling goroutines.
	Workers int
	Backlog int

	// Request limits
	MaxHeaders   int
	MaxHeadBytes int
	MaxBodyBytes int64

	// LingerBytes and LingerTimeout bound how much unread input is
	// discarded after an error response before the connection closes.
	LingerBytes   int
	LingerTimeout time.Duration

	Logger Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		Workers:      pool.DefaultWorkers,
		Backlog:      socket.DefaultBacklog,
		MaxHeaders:   request.DefaultMaxHeaders,
		MaxHeadBytes: request.DefaultMaxHeadBytes,
		MaxBodyBytes: request.DefaultMaxBodyBytes,

		LingerBytes:   DefaultLingerBytes,
		LingerTimeout: DefaultLingerTimeout,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.Workers <= 0:
		return fmt.Errorf("invalid worker count %d: %w", c.Workers, pool.ErrInvalidWorkerCount)
	case c.Backlog < 0:
		return fmt.Errorf("invalid backlog %d", c.Backlog)
	case c.MaxHeaders <= 0:
		return errors.New("max headers must be positive")
	case c.MaxHeadBytes <= 0:
		return errors.New("max head bytes must be positive")
	case c.MaxBodyBytes < 0:
		return errors.New("max body bytes must not be negative")
	case c.LingerBytes < 0 || c.LingerTimeout < 0:
		return errors.New("linger limits must not be negative")
	}
	return nil
}

func (c Config) parser() *request.Parser {
	return &request.Parser{
		MaxHeaders:   c.MaxHeaders,
		MaxHeadBytes: c.MaxHeadBytes,
		MaxBodyBytes: c.MaxBodyBytes,
	}
}
