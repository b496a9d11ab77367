package server

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// logrusLogger writes through a logrus entry.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogger returns a Logger backed by l. A nil l uses the logrus standard
// logger.
func NewLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l).WithField("component", "server")}
}

// NewEntryLogger wraps an existing entry, keeping its fields.
func NewEntryLogger(entry *logrus.Entry) Logger {
	return &logrusLogger{entry: entry}
}

func (l *logrusLogger) Debug(msg string, fields ...Field) {
	l.with(fields).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields ...Field) {
	l.with(fields).Info(msg)
}

func (l *logrusLogger) Error(msg string, fields ...Field) {
	l.with(fields).Error(msg)
}

func (l *logrusLogger) Warn(msg string, fields ...Field) {
	l.with(fields).Warn(msg)
}

func (l *logrusLogger) with(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = sanitizeValue(f.Value)
	}
	return l.entry.WithFields(lf)
}

// sanitizeValue truncates long strings, which are usually header values or
// bodies echoed into a log line.
func sanitizeValue(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		if len(s) > 100 {
			return s[:100] + "...[truncated]"
		}
	}
	return v
}

// NullLogger discards all logs (for testing)
type NullLogger struct{}

func (n *NullLogger) Debug(msg string, fields ...Field) {}
func (n *NullLogger) Info(msg string, fields ...Field)  {}
func (n *NullLogger) Error(msg string, fields ...Field) {}
func (n *NullLogger) Warn(msg string, fields ...Field)  {}

// listenerLogger feeds the socket listener's key/value log lines into a
// Logger.
type listenerLogger struct {
	log Logger
}

func (l listenerLogger) Debug(msg string, kv ...any) { l.log.Debug(msg, kvFields(kv)...) }
func (l listenerLogger) Info(msg string, kv ...any)  { l.log.Info(msg, kvFields(kv)...) }
func (l listenerLogger) Error(msg string, kv ...any) { l.log.Error(msg, kvFields(kv)...) }

func kvFields(kv []any) []Field {
	fields := make([]Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, Field{key, kv[i+1]})
	}
	return fields
}
