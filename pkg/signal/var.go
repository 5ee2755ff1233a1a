package signal

import "sync"

// Var is a settable Signal fed by the host: flip it from platform hooks
// (reachability callbacks, app lifecycle events) or from an API surface.
// Subscribers are notified only when the value actually changes.
type Var struct {
	mu     sync.Mutex
	value  bool
	subs   map[int]func(bool)
	nextID int
}

// NewVar creates a settable signal with the given initial value.
func NewVar(initial bool) *Var {
	return &Var{
		value: initial,
		subs:  make(map[int]func(bool)),
	}
}

// Current returns the present value.
func (v *Var) Current() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set updates the value and notifies subscribers on change. Notification
// runs on the caller's goroutine, outside the Var's lock.
func (v *Var) Set(value bool) {
	v.mu.Lock()
	if v.value == value {
		v.mu.Unlock()
		return
	}
	v.value = value
	fns := make([]func(bool), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Subscribe registers fn for change notifications.
func (v *Var) Subscribe(fn func(bool)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
