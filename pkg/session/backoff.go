package session

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// jitterWindow is the span of the uniform random offset added to every delay
// so that many clients recovering from a shared outage do not retry in
// lockstep.
const jitterWindow = time.Second

type exponentialBackoff struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	randSource *rand.Rand
	mutex      sync.Mutex
}

func newExponentialBackoff(baseDelay, maxDelay time.Duration) *exponentialBackoff {
	return &exponentialBackoff{
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		randSource: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextDelay computes the delay before reconnect attempt n (1-based):
// min(base * 2^(n-1) + jitter, max) with jitter uniform in [0, jitterWindow).
func (eb *exponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	delay := float64(eb.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(eb.maxDelay) {
		delay = float64(eb.maxDelay)
	}

	eb.mutex.Lock()
	jitter := time.Duration(eb.randSource.Int63n(int64(jitterWindow)))
	eb.mutex.Unlock()

	total := time.Duration(delay) + jitter
	if total > eb.maxDelay {
		total = eb.maxDelay
	}

	return total
}
