package signal

import (
	"context"
	"net"
	"sync"
	"time"
)

// Monitor derives a Signal from a periodic probe. The stock use is network
// reachability: probe a known endpoint on an interval and publish up/down
// transitions.
type Monitor struct {
	probe    func(ctx context.Context) bool
	interval time.Duration
	v        *Var

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a stopped monitor around the given probe. The signal
// starts optimistic (true) until the first probe result lands.
func NewMonitor(probe func(ctx context.Context) bool, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		v:        NewVar(true),
	}
}

// Signal exposes the monitored condition.
func (m *Monitor) Signal() Signal {
	return m.v
}

// Start launches the probe loop. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
}

// Stop halts the probe loop and waits for it to exit. The signal keeps its
// last value.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Probe once immediately so the signal settles before the first tick.
	m.v.Set(m.probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.v.Set(m.probe(ctx))
		}
	}
}

// TCPProbe returns a probe that reports reachability of addr ("host:port")
// within the given timeout.
func TCPProbe(addr string, timeout time.Duration) func(ctx context.Context) bool {
	dialer := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context) bool {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}
