// Package signal models the boolean condition streams a session manager
// consumes: network reachability and application foreground state. A Signal
// has a current value and notifies subscribers on change only.
package signal

// Signal is a readable, subscribable boolean condition.
type Signal interface {
	// Current returns the present value.
	Current() bool
	// Subscribe registers fn to be called on every value change. The
	// returned cancel function removes the subscription; it is safe to call
	// more than once.
	Subscribe(fn func(value bool)) (cancel func())
}

type constSignal bool

func (c constSignal) Current() bool               { return bool(c) }
func (c constSignal) Subscribe(func(bool)) func() { return func() {} }

// AlwaysOn returns a constant-true signal, used when a host has no real
// source for a condition (e.g. a server process that is never backgrounded).
func AlwaysOn() Signal {
	return constSignal(true)
}
