package session

import (
	"sync"
	"time"
)

// Metrics receives counters from the manager as the session progresses.
// Implementations must be safe for concurrent use.
type Metrics interface {
	IncrementAttempt()
	IncrementSuccess()
	IncrementFailure()
	IncrementHeartbeat()
	IncrementReconnectScheduled()
	RecordLatency(rtt time.Duration)
	GetStats() map[string]interface{}
}

type metrics struct {
	ConnectAttempts      int64
	ConnectSuccesses     int64
	ConnectFailures      int64
	HeartbeatsSent       int64
	ReconnectsScheduled  int64
	LastLatency          time.Duration
	LastSuccessTime      time.Time
	mutex                sync.RWMutex
}

// NewMetrics returns the standard mutex-guarded metrics implementation.
func NewMetrics() Metrics {
	return &metrics{}
}

func (m *metrics) IncrementAttempt() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ConnectAttempts++
}

func (m *metrics) IncrementSuccess() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ConnectSuccesses++
	m.LastSuccessTime = time.Now()
}

func (m *metrics) IncrementFailure() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ConnectFailures++
}

func (m *metrics) IncrementHeartbeat() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.HeartbeatsSent++
}

func (m *metrics) IncrementReconnectScheduled() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ReconnectsScheduled++
}

func (m *metrics) RecordLatency(rtt time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.LastLatency = rtt
}

func (m *metrics) GetStats() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return map[string]interface{}{
		"connect_attempts":     m.ConnectAttempts,
		"connect_successes":    m.ConnectSuccesses,
		"connect_failures":     m.ConnectFailures,
		"heartbeats_sent":      m.HeartbeatsSent,
		"reconnects_scheduled": m.ReconnectsScheduled,
		"last_latency_ms":      m.LastLatency.Milliseconds(),
		"last_success_time":    m.LastSuccessTime,
	}
}

type noopMetrics struct{}

func (noopMetrics) IncrementAttempt()              {}
func (noopMetrics) IncrementSuccess()              {}
func (noopMetrics) IncrementFailure()              {}
func (noopMetrics) IncrementHeartbeat()            {}
func (noopMetrics) IncrementReconnectScheduled()   {}
func (noopMetrics) RecordLatency(time.Duration)    {}
func (noopMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{}
}
