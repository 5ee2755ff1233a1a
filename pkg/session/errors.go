package session

import "errors"

var (
	// ErrNetworkUnavailable is returned by Connect when the network signal
	// reports no connectivity; the underlying operation is never started.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrConnectTimeout is returned when a connection attempt does not settle
	// within Config.ConnectTimeout. A late result from the underlying
	// operation is discarded.
	ErrConnectTimeout = errors.New("connection attempt timed out")

	// ErrMaxAttemptsReached is reported through the OnError callback once the
	// automatic retry budget is spent. Recovery then requires Reconnect or a
	// network-restored signal.
	ErrMaxAttemptsReached = errors.New("max reconnection attempts reached")

	// ErrAttemptAborted is returned to a Connect caller whose in-flight
	// attempt was cancelled by Disconnect or Destroy.
	ErrAttemptAborted = errors.New("connection attempt aborted")

	// ErrManagerClosed is returned by every operation after Destroy.
	ErrManagerClosed = errors.New("session manager destroyed")
)
