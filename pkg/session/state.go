package session

import "time"

// ConnectionState represents the lifecycle state of the managed session.
// Exactly one state is active at a time.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
	StateOffline
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ConnectionQuality is a coarse classification of connection health derived
// from heartbeat round-trip latency. It stays QualityUnknown until the first
// successful latency sample.
type ConnectionQuality int

const (
	QualityUnknown ConnectionQuality = iota
	QualityExcellent
	QualityGood
	QualityFair
	QualityPoor
)

func (cq ConnectionQuality) String() string {
	switch cq {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	case QualityPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// ClassifyLatency maps a heartbeat round-trip time to a quality tier.
func ClassifyLatency(rtt time.Duration) ConnectionQuality {
	switch ms := rtt.Milliseconds(); {
	case ms < 100:
		return QualityExcellent
	case ms < 300:
		return QualityGood
	case ms < 600:
		return QualityFair
	default:
		return QualityPoor
	}
}
