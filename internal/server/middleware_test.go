package server

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/router"
)

type entry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

// recordingLogger keeps every log call for inspection.
type recordingLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (l *recordingLogger) add(level, msg string, fields []Field) {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry{level, msg, m})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, fields ...Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...Field)  { l.add("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...Field)  { l.add("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...Field) { l.add("error", msg, fields) }

func dispatch(t *testing.T, r *router.Router, raw string) (*response.Response, error) {
	t.Helper()
	req, err := request.Parse([]byte(raw))
	require.NoError(t, err)
	res := response.New()
	ok, err := r.Dispatch(req, res)
	require.True(t, ok)
	return res, err
}

func TestLoggingMiddleware(t *testing.T) {
	logger := &recordingLogger{}
	r := router.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware(logger))
	r.GET("/ok", func(_ []string, _ *request.Request, res *response.Response) error {
		res.Text(response.StatusAccepted, "ok")
		return nil
	})
	r.GET("/fail", func([]string, *request.Request, *response.Response) error {
		return errors.New("nope")
	})

	_, err := dispatch(t, r, "GET /ok HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	_, err = dispatch(t, r, "GET /fail HTTP/1.1\r\n\r\n")
	require.Error(t, err)

	require.Len(t, logger.entries, 2)
	ok := logger.entries[0]
	assert.Equal(t, "info", ok.level)
	assert.Equal(t, "request handled", ok.msg)
	assert.Equal(t, "GET", ok.fields["method"])
	assert.Equal(t, "/ok", ok.fields["path"])
	assert.Equal(t, 202, ok.fields["status"])
	assert.NotEmpty(t, ok.fields["request_id"])

	fail := logger.entries[1]
	assert.Equal(t, "warn", fail.level)
	assert.Equal(t, "nope", fail.fields["error"])
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := &recordingLogger{}
	r := router.New()
	r.Use(RecoveryMiddleware(logger))
	r.GET("/panic", func([]string, *request.Request, *response.Response) error {
		panic("kaboom")
	})

	_, err := dispatch(t, r, "GET /panic HTTP/1.1\r\n\r\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	require.Len(t, logger.entries, 1)
	assert.Equal(t, "error", logger.entries[0].level)
	assert.Contains(t, logger.entries[0].fields["stack"], "goroutine")
}

func TestRequestIDMiddleware(t *testing.T) {
	r := router.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func([]string, *request.Request, *response.Response) error { return nil })

	first, err := dispatch(t, r, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	second, err := dispatch(t, r, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)

	id1, ok := first.Headers().Get(RequestIDHeader)
	require.True(t, ok)
	id2, _ := second.Headers().Get(RequestIDHeader)
	assert.NotEqual(t, id1, id2)
}

func TestCORSMiddleware(t *testing.T) {
	called := 0
	r := router.New()
	r.Use(CORSMiddleware(CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           time.Minute,
	}))
	handler := func([]string, *request.Request, *response.Response) error {
		called++
		return nil
	}
	r.GET("/api", handler)
	require.NoError(t, r.Handle(request.OPTIONS, "/api", handler))

	res, err := dispatch(t, r, "GET /api HTTP/1.1\r\nOrigin: http://localhost:3000\r\n\r\n")
	require.NoError(t, err)
	origin, _ := res.Headers().Get("Access-Control-Allow-Origin")
	assert.Equal(t, "http://localhost:3000", origin)
	methods, _ := res.Headers().Get("Access-Control-Allow-Methods")
	assert.Equal(t, "GET, POST", methods)
	maxAge, _ := res.Headers().Get("Access-Control-Max-Age")
	assert.Equal(t, "60", maxAge)
	assert.Equal(t, 1, called)

	res, err = dispatch(t, r, "GET /api HTTP/1.1\r\nOrigin: http://evil.example\r\n\r\n")
	require.NoError(t, err)
	_, ok := res.Headers().Get("Access-Control-Allow-Origin")
	assert.False(t, ok)

	res, err = dispatch(t, r, "OPTIONS /api HTTP/1.1\r\nOrigin: http://localhost:3000\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, response.StatusNoContent, res.Code)
	assert.Equal(t, 1, called)
}

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	logger := NewLogger(base)

	logger.Info("listening", Field{"port", 8080})
	logger.Debug("long value", Field{"header", strings.Repeat("x", 150)})

	require.Len(t, hook.Entries, 2)
	first := hook.Entries[0]
	assert.Equal(t, logrus.InfoLevel, first.Level)
	assert.Equal(t, "listening", first.Message)
	assert.Equal(t, 8080, first.Data["port"])
	assert.Equal(t, "server", first.Data["component"])

	long := hook.LastEntry().Data["header"].(string)
	assert.True(t, strings.HasSuffix(long, "...[truncated]"))
	assert.Len(t, long, 100+len("...[truncated]"))
}

func TestListenerLoggerFields(t *testing.T) {
	logger := &recordingLogger{}
	l := listenerLogger{logger}

	l.Info("listener started", "addr", "[::]:8080", "backlog", 4096, "dangling")
	l.Error("accept failed", 7, "x")

	require.Len(t, logger.entries, 2)
	assert.Equal(t, "info", logger.entries[0].level)
	assert.Equal(t, map[string]interface{}{"addr": "[::]:8080", "backlog": 4096}, logger.entries[0].fields)
	assert.Equal(t, "x", logger.entries[1].fields["7"])
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"port":        func(c *Config) { c.Port = 70000 },
		"workers":     func(c *Config) { c.Workers = 0 },
		"backlog":     func(c *Config) { c.Backlog = -1 },
		"max headers": func(c *Config) { c.MaxHeaders = 0 },
		"max head":    func(c *Config) { c.MaxHeadBytes = 0 },
		"max body":    func(c *Config) { c.MaxBodyBytes = -1 },
		"linger":      func(c *Config) { c.LingerTimeout = -time.Second },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest(response.StatusOK, 10*time.Millisecond)
	m.RecordRequest(response.StatusNotFound, 20*time.Millisecond)
	m.RecordRequest(response.StatusBadGateway, 30*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.RequestsTotal)
	assert.Equal(t, int64(1), snap.Errors4xx)
	assert.Equal(t, int64(1), snap.Errors5xx)
	assert.Equal(t, int64(1), snap.ErrorsTotal)
	assert.Equal(t, 20*time.Millisecond, snap.AverageLatency)
}
