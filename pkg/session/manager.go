package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AimalShah/BarterDash-sub003/pkg/signal"
)

// Ops are the injected operations that actually touch the wire. The manager
// owns when they run; the collaborator owns how. Connect must be safely
// callable again after a prior failure, Disconnect must be safe to call even
// if never connected. Ping is optional; when nil, quality monitoring is
// disabled entirely.
type Ops struct {
	Connect    func(ctx context.Context) error
	Disconnect func(ctx context.Context) error
	Ping       func(ctx context.Context) (time.Duration, error)
}

// Signals are the two host-supplied boolean streams the manager subscribes to
// at construction. Nil fields default to an always-true signal.
type Signals struct {
	Network    signal.Signal
	Foreground signal.Signal
}

// Stats is an immutable snapshot of the session, computed on demand.
type Stats struct {
	SessionID        uuid.UUID
	State            ConnectionState
	Quality          ConnectionQuality
	ReconnectAttempt int
	ConnectedAt      time.Time
	LastError        error
	NetworkAvailable bool
	LastLatency      time.Duration
}

// MarshalJSON renders the snapshot with readable state and quality names, the
// error flattened to its message, and the latency in milliseconds.
func (s Stats) MarshalJSON() ([]byte, error) {
	var lastError *string
	if s.LastError != nil {
		msg := s.LastError.Error()
		lastError = &msg
	}

	var connectedAt *time.Time
	if !s.ConnectedAt.IsZero() {
		connectedAt = &s.ConnectedAt
	}

	return json.Marshal(struct {
		SessionID        uuid.UUID  `json:"session_id"`
		State            string     `json:"state"`
		Quality          string     `json:"quality"`
		ReconnectAttempt int        `json:"reconnect_attempt"`
		ConnectedAt      *time.Time `json:"connected_at,omitempty"`
		LastError        *string    `json:"last_error,omitempty"`
		NetworkAvailable bool       `json:"network_available"`
		LastLatencyMS    int64      `json:"last_latency_ms"`
	}{
		SessionID:        s.SessionID,
		State:            s.State.String(),
		Quality:          s.Quality.String(),
		ReconnectAttempt: s.ReconnectAttempt,
		ConnectedAt:      connectedAt,
		LastError:        lastError,
		NetworkAvailable: s.NetworkAvailable,
		LastLatencyMS:    s.LastLatency.Milliseconds(),
	})
}

// Manager supervises a single long-lived session connection: it owns the
// state machine, the reconnect/heartbeat/timeout timers, and the event
// delivery to the configured callbacks. One Manager per logical session;
// tear it down with Destroy and do not reuse it.
type Manager struct {
	config  Config
	ops     Ops
	metrics Metrics
	logger  *zap.Logger
	backoff *exponentialBackoff

	sessionID uuid.UUID

	stateMutex  sync.RWMutex
	state       ConnectionState
	quality     ConnectionQuality
	attempt     int
	lastError   error
	lastLatency time.Duration
	connectedAt time.Time

	networkUp    bool
	foregroundUp bool
	unsubscribe  []func()

	// generation invalidates results of aborted attempts and dead heartbeats.
	generation    uint64
	attemptCancel context.CancelFunc

	timerToken     uint64
	reconnectTimer *time.Timer
	resumePending  bool

	heartbeatStop chan struct{}

	budgetSpent bool
	closed      bool

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// Callback delivery: events are queued in transition order under the
	// state mutex and drained by a single dispatcher goroutine, so listeners
	// observe events in order and may call back into the Manager.
	queue          []func()
	notify         chan struct{}
	quit           chan struct{}
	dispatcherDone chan struct{}
}

// NewManager creates a session manager and subscribes it to both signals.
// The logger and metrics may be nil.
func NewManager(config Config, ops Ops, signals Signals, metrics Metrics, logger *zap.Logger) (*Manager, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if ops.Connect == nil {
		return nil, fmt.Errorf("connect operation is required")
	}
	if ops.Disconnect == nil {
		return nil, fmt.Errorf("disconnect operation is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if signals.Network == nil {
		signals.Network = signal.AlwaysOn()
	}
	if signals.Foreground == nil {
		signals.Foreground = signal.AlwaysOn()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	m := &Manager{
		config:         config,
		ops:            ops,
		metrics:        metrics,
		logger:         logger,
		backoff:        newExponentialBackoff(config.BaseReconnectDelay, config.MaxReconnectDelay),
		sessionID:      uuid.New(),
		state:          StateDisconnected,
		quality:        QualityUnknown,
		networkUp:      signals.Network.Current(),
		foregroundUp:   signals.Foreground.Current(),
		baseCtx:        baseCtx,
		baseCancel:     baseCancel,
		notify:         make(chan struct{}, 1),
		quit:           make(chan struct{}),
		dispatcherDone: make(chan struct{}),
	}

	m.unsubscribe = append(m.unsubscribe,
		signals.Network.Subscribe(m.handleNetworkChange),
		signals.Foreground.Subscribe(m.handleForegroundChange),
	)

	go m.dispatchLoop()

	return m, nil
}

// SessionID identifies this manager instance.
func (m *Manager) SessionID() uuid.UUID {
	return m.sessionID
}

// Connect establishes the session. It is a no-op returning nil while already
// connected or connecting. When the network signal is down it transitions to
// offline and returns ErrNetworkUnavailable without starting the underlying
// operation. Otherwise it blocks until its own attempt settles: nil on
// success, ErrConnectTimeout if the attempt outlives Config.ConnectTimeout,
// or the wrapped operation error. The caller's ctx only bounds the wait;
// an abandoned attempt keeps running until it settles or is aborted by
// Disconnect/Destroy.
func (m *Manager) Connect(ctx context.Context) error {
	m.stateMutex.Lock()
	if m.closed {
		m.stateMutex.Unlock()
		return ErrManagerClosed
	}
	if m.state == StateConnected || m.state == StateConnecting {
		m.stateMutex.Unlock()
		return nil
	}
	if !m.networkUp {
		m.lastError = ErrNetworkUnavailable
		m.setStateLocked(StateOffline)
		m.stateMutex.Unlock()
		return ErrNetworkUnavailable
	}

	// A manual connect supersedes any pending automatic attempt.
	m.cancelReconnectTimerLocked()
	done := m.startAttemptLocked()
	m.stateMutex.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect cancels any pending reconnect timer, heartbeat, and in-flight
// attempt, then tears the session down. It is a no-op while already
// disconnected. Errors from the injected disconnect are logged, never
// returned; the manager always ends in the disconnected state.
func (m *Manager) Disconnect() {
	m.stateMutex.Lock()
	if m.closed {
		m.stateMutex.Unlock()
		return
	}
	m.cancelReconnectTimerLocked()
	m.stopHeartbeatLocked()
	m.abortAttemptLocked()

	if m.state == StateDisconnected {
		m.stateMutex.Unlock()
		return
	}
	m.setStateLocked(StateDisconnected)
	m.stateMutex.Unlock()

	m.runDisconnectOp()
}

// Reconnect is manual, caller-triggered recovery: a full disconnect, a fresh
// retry cycle, then a connect. It does not consume the automatic retry
// budget.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.stateMutex.RLock()
	closed := m.closed
	m.stateMutex.RUnlock()
	if closed {
		return ErrManagerClosed
	}

	m.Disconnect()

	m.stateMutex.Lock()
	if m.closed {
		m.stateMutex.Unlock()
		return ErrManagerClosed
	}
	m.attempt = 0
	m.budgetSpent = false
	m.stateMutex.Unlock()

	return m.Connect(ctx)
}

// IsConnected reports whether the state is exactly StateConnected.
func (m *Manager) IsConnected() bool {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state == StateConnected
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state
}

// Stats returns a snapshot of the session.
func (m *Manager) Stats() Stats {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()

	return Stats{
		SessionID:        m.sessionID,
		State:            m.state,
		Quality:          m.quality,
		ReconnectAttempt: m.attempt,
		ConnectedAt:      m.connectedAt,
		LastError:        m.lastError,
		NetworkAvailable: m.networkUp,
		LastLatency:      m.lastLatency,
	}
}

// Destroy is idempotent teardown: it disconnects, cancels every timer,
// unsubscribes from both signals, and stops event delivery. Subsequent
// operations return ErrManagerClosed. Destroy must not be called from inside
// a callback.
func (m *Manager) Destroy() {
	m.stateMutex.Lock()
	if m.closed {
		m.stateMutex.Unlock()
		return
	}
	m.closed = true
	m.cancelReconnectTimerLocked()
	m.stopHeartbeatLocked()
	m.abortAttemptLocked()
	for _, cancel := range m.unsubscribe {
		cancel()
	}
	m.unsubscribe = nil
	wasDown := m.state == StateDisconnected
	m.setStateLocked(StateDisconnected)
	m.stateMutex.Unlock()

	if !wasDown {
		m.runDisconnectOp()
	}

	m.baseCancel()
	close(m.quit)
	<-m.dispatcherDone
	m.logger.Debug("session manager destroyed", zap.String("session_id", m.sessionID.String()))
}

// startAttemptLocked transitions to connecting and launches the attempt
// goroutine. The returned channel settles exactly once with the attempt
// outcome. Caller holds stateMutex.
func (m *Manager) startAttemptLocked() <-chan error {
	m.setStateLocked(StateConnecting)
	m.generation++
	gen := m.generation

	attemptCtx, cancel := context.WithTimeout(m.baseCtx, m.config.ConnectTimeout)
	m.attemptCancel = cancel
	m.metrics.IncrementAttempt()

	done := make(chan error, 1)
	go m.runAttempt(gen, attemptCtx, done)
	return done
}

func (m *Manager) runAttempt(gen uint64, ctx context.Context, done chan<- error) {
	opDone := make(chan error, 1)
	go func() {
		opDone <- m.guardOp(ctx, m.ops.Connect)
	}()

	var opErr error
	select {
	case opErr = <-opDone:
	case <-ctx.Done():
		// Timeout or abort wins over a late settlement; the operation's
		// eventual result is discarded.
		opErr = ctx.Err()
	}
	switch {
	case errors.Is(opErr, context.DeadlineExceeded):
		opErr = ErrConnectTimeout
	case errors.Is(opErr, context.Canceled):
		opErr = ErrAttemptAborted
	}

	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	if m.closed || gen != m.generation {
		done <- ErrAttemptAborted
		return
	}
	if m.attemptCancel != nil {
		m.attemptCancel()
		m.attemptCancel = nil
	}

	if opErr == nil {
		m.connectedAt = time.Now()
		m.attempt = 0
		m.budgetSpent = false
		m.lastError = nil
		m.metrics.IncrementSuccess()
		m.setStateLocked(StateConnected)
		m.startHeartbeatLocked(gen)
		m.logger.Info("session connected",
			zap.String("session_id", m.sessionID.String()))
		done <- nil
		return
	}

	m.failAttemptLocked(opErr)
	done <- opErr
}

// failAttemptLocked records a failed attempt and routes it through the
// automatic retry policy. Caller holds stateMutex.
func (m *Manager) failAttemptLocked(err error) {
	m.lastError = err
	m.metrics.IncrementFailure()
	m.setStateLocked(StateError)
	m.emitErrorLocked(err)
	m.logger.Warn("connection attempt failed", zap.Error(err))

	if m.config.EnableAutoReconnect {
		m.scheduleReconnectLocked()
	}
}

// scheduleReconnectLocked runs the automatic reconnection procedure: defer
// when disabled, backgrounded, or offline; park in the error state once the
// budget is spent; otherwise arm the single backoff timer. Caller holds
// stateMutex.
func (m *Manager) scheduleReconnectLocked() {
	if m.closed || !m.config.EnableAutoReconnect {
		return
	}
	if !m.foregroundUp || !m.networkUp {
		// Deferred; a favorable signal change re-enters this procedure.
		m.logger.Debug("reconnect deferred",
			zap.Bool("network", m.networkUp),
			zap.Bool("foreground", m.foregroundUp))
		return
	}
	if m.attempt >= m.config.MaxReconnectAttempts {
		if !m.budgetSpent {
			m.budgetSpent = true
			m.lastError = ErrMaxAttemptsReached
			m.setStateLocked(StateError)
			m.emitErrorLocked(ErrMaxAttemptsReached)
			m.logger.Error("reconnect budget exhausted",
				zap.Int("attempts", m.attempt))
		}
		return
	}

	m.attempt++
	n := m.attempt
	m.setStateLocked(StateReconnecting)
	if cb := m.config.Callbacks.OnReconnect; cb != nil {
		m.emitLocked(func() { cb(n) })
	}
	m.metrics.IncrementReconnectScheduled()

	delay := m.backoff.NextDelay(n)
	m.logger.Info("reconnect scheduled",
		zap.Int("attempt", n),
		zap.Duration("delay", delay))

	m.timerToken++
	token := m.timerToken
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.reconnectTimerFired(token)
	})
}

func (m *Manager) reconnectTimerFired(token uint64) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	if m.closed || token != m.timerToken {
		return
	}
	m.reconnectTimer = nil

	if !m.networkUp {
		// The network-loss handler owns this transition.
		return
	}
	if !m.foregroundUp {
		// Suppressed while backgrounded; resumes on foreground return.
		m.resumePending = true
		return
	}

	m.startAttemptLocked()
}

// cancelReconnectTimerLocked stops any pending reconnect timer and
// invalidates a concurrently firing one. Caller holds stateMutex.
func (m *Manager) cancelReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.timerToken++
	m.resumePending = false
}

// abortAttemptLocked cancels the in-flight attempt, if any, and bumps the
// generation so late results are discarded. Caller holds stateMutex.
func (m *Manager) abortAttemptLocked() {
	if m.attemptCancel != nil {
		m.attemptCancel()
		m.attemptCancel = nil
	}
	m.generation++
}

// startHeartbeatLocked launches the heartbeat loop for the current
// connection generation. No-op without a ping operation. Caller holds
// stateMutex.
func (m *Manager) startHeartbeatLocked(gen uint64) {
	if m.ops.Ping == nil {
		return
	}
	m.stopHeartbeatLocked()
	stop := make(chan struct{})
	m.heartbeatStop = stop
	go m.heartbeatLoop(gen, stop)
}

func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

func (m *Manager) heartbeatLoop(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
		}

		m.metrics.IncrementHeartbeat()
		rtt, err := m.runPing()

		m.stateMutex.Lock()
		if m.closed || gen != m.generation || m.state != StateConnected {
			// A result arriving after disconnection never resurrects state.
			m.stateMutex.Unlock()
			return
		}

		if err != nil {
			// A connection that stops answering heartbeats takes the same
			// path as one that failed to connect.
			m.stopHeartbeatLocked()
			m.abortAttemptLocked()
			go m.runDisconnectOp()
			m.failAttemptLocked(fmt.Errorf("heartbeat failed: %w", err))
			m.stateMutex.Unlock()
			return
		}

		m.lastLatency = rtt
		m.metrics.RecordLatency(rtt)
		if q := ClassifyLatency(rtt); q != m.quality {
			m.quality = q
			if cb := m.config.Callbacks.OnQualityChange; cb != nil {
				m.emitLocked(func() { cb(q) })
			}
			m.logger.Info("connection quality changed",
				zap.String("quality", q.String()),
				zap.Duration("latency", rtt))
		}
		m.stateMutex.Unlock()
	}
}

func (m *Manager) runPing() (time.Duration, error) {
	ctx, cancel := context.WithTimeout(m.baseCtx, m.config.HeartbeatInterval)
	defer cancel()
	return m.guardPing(ctx)
}

func (m *Manager) handleNetworkChange(up bool) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	if m.closed || m.networkUp == up {
		return
	}
	m.networkUp = up
	m.logger.Info("network availability changed", zap.Bool("available", up))

	if !up {
		switch m.state {
		case StateConnected, StateConnecting, StateReconnecting:
			m.cancelReconnectTimerLocked()
			m.stopHeartbeatLocked()
			m.abortAttemptLocked()
			m.setStateLocked(StateOffline)
		}
		return
	}

	if m.state == StateOffline || m.state == StateError {
		// A restored network resets the retry cycle.
		m.attempt = 0
		m.budgetSpent = false
		m.scheduleReconnectLocked()
	}
}

func (m *Manager) handleForegroundChange(fg bool) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	if m.closed || m.foregroundUp == fg {
		return
	}
	m.foregroundUp = fg
	m.logger.Info("application foreground changed", zap.Bool("foreground", fg))

	if !fg {
		return
	}

	if m.resumePending && m.state == StateReconnecting && m.networkUp {
		m.resumePending = false
		m.startAttemptLocked()
		return
	}
	if m.state == StateOffline || m.state == StateError {
		// Re-enter the retry procedure for a reconnect that was deferred
		// while backgrounded. It re-checks the signals and the budget.
		m.scheduleReconnectLocked()
	}
}

// runDisconnectOp invokes the injected disconnect, best effort.
func (m *Manager) runDisconnectOp() {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()

	if err := m.guardOp(ctx, m.ops.Disconnect); err != nil {
		m.logger.Warn("disconnect operation failed", zap.Error(err))
	}
}

// guardOp invokes an injected operation, converting panics to errors so a
// collaborator failure never escapes a manager goroutine.
func (m *Manager) guardOp(ctx context.Context, op func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panic: %v", r)
		}
	}()
	return op(ctx)
}

func (m *Manager) guardPing(ctx context.Context) (rtt time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ping panic: %v", r)
		}
	}()
	return m.ops.Ping(ctx)
}

// setStateLocked applies a state transition and queues the listener event.
// Caller holds stateMutex.
func (m *Manager) setStateLocked(next ConnectionState) {
	if m.state == next {
		return
	}
	m.state = next
	m.logger.Debug("connection state changed", zap.String("state", next.String()))
	if cb := m.config.Callbacks.OnStateChange; cb != nil {
		m.emitLocked(func() { cb(next) })
	}
}

func (m *Manager) emitErrorLocked(err error) {
	if cb := m.config.Callbacks.OnError; cb != nil {
		m.emitLocked(func() { cb(err) })
	}
}

// emitLocked appends a callback invocation to the ordered queue. Caller
// holds stateMutex.
func (m *Manager) emitLocked(fn func()) {
	m.queue = append(m.queue, fn)
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Manager) dispatchLoop() {
	defer close(m.dispatcherDone)
	for {
		select {
		case <-m.notify:
			m.drainQueue()
		case <-m.quit:
			m.drainQueue()
			return
		}
	}
}

func (m *Manager) drainQueue() {
	for {
		m.stateMutex.Lock()
		if len(m.queue) == 0 {
			m.stateMutex.Unlock()
			return
		}
		batch := m.queue
		m.queue = nil
		m.stateMutex.Unlock()

		for _, fn := range batch {
			m.invokeListener(fn)
		}
	}
}

func (m *Manager) invokeListener(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("listener panic recovered", zap.Any("panic", r))
		}
	}()
	fn()
}
