package server

import (
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/rawhttp/internal/response"
)

// Metrics holds server runtime metrics
type Metrics struct {
	RequestsTotal     atomic.Int64
	ConnectionsTotal  atomic.Int64
	ActiveConnections atomic.Int64
	ErrorsTotal       atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64
	ParseErrors       atomic.Int64
	DispatchMisses    atomic.Int64
	HandlerErrors     atomic.Int64

	// Sum of request latencies, for the average only.
	TotalLatencyNs atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a response that was sent.
func (m *Metrics) RecordRequest(code response.StatusCode, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	switch {
	case code.IsClientError():
		m.Errors4xx.Add(1)
	case code.IsServerError():
		m.Errors5xx.Add(1)
		m.ErrorsTotal.Add(1)
	}
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}
	return time.Duration(m.TotalLatencyNs.Load() / totalReqs)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	RequestsTotal     int64         `json:"requests_total"`
	ConnectionsTotal  int64         `json:"connections_total"`
	ActiveConnections int64         `json:"active_connections"`
	ErrorsTotal       int64         `json:"errors_total"`
	Errors4xx         int64         `json:"errors_4xx"`
	Errors5xx         int64         `json:"errors_5xx"`
	ParseErrors       int64         `json:"parse_errors"`
	DispatchMisses    int64         `json:"dispatch_misses"`
	HandlerErrors     int64         `json:"handler_errors"`
	AverageLatency    time.Duration `json:"average_latency_ns"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:     m.RequestsTotal.Load(),
		ConnectionsTotal:  m.ConnectionsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		ErrorsTotal:       m.ErrorsTotal.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		ParseErrors:       m.ParseErrors.Load(),
		DispatchMisses:    m.DispatchMisses.Load(),
		HandlerErrors:     m.HandlerErrors.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
