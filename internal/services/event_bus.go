package services

import (
	"sync"
)

// EventType represents the type of event
type EventType string

const (
	EventStateChanged     EventType = "state_changed"
	EventQualityChanged   EventType = "quality_changed"
	EventConnectionError  EventType = "connection_error"
	EventReconnectAttempt EventType = "reconnect_attempt"
	EventNetworkChanged   EventType = "network_changed"
	EventBidReceived      EventType = "bid_received"
	EventAuctionClosed    EventType = "auction_closed"
	EventTradeProposed    EventType = "trade_proposed"
)

// Event represents a system event
type Event struct {
	Type EventType              `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers map[EventType][]chan Event
	mu          sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
	}
}

// Subscribe creates a subscription to events of a specific type
func (eb *EventBus) Subscribe(eventType EventType, bufferSize int) <-chan Event {
	ch := make(chan Event, bufferSize)

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all event types
func (eb *EventBus) SubscribeAll(bufferSize int) <-chan Event {
	ch := make(chan Event, bufferSize)

	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Subscribe to all known event types
	allEventTypes := []EventType{
		EventStateChanged,
		EventQualityChanged,
		EventConnectionError,
		EventReconnectAttempt,
		EventNetworkChanged,
		EventBidReceived,
		EventAuctionClosed,
		EventTradeProposed,
	}

	for _, eventType := range allEventTypes {
		eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	}

	return ch
}

// Publish publishes an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mu.RUnlock()

	// Send event to all subscribers (non-blocking)
	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. A channel from
// SubscribeAll is detached from every type it was registered under before
// the close.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	target := eb.detachLocked(eventType, ch)
	if target == nil {
		return
	}
	for t := range eb.subscribers {
		if t != eventType {
			eb.detachLocked(t, ch)
		}
	}
	close(target)
}

// detachLocked removes ch from one type's subscriber list and returns the
// stored channel, or nil when it was not registered. Caller holds mu.
func (eb *EventBus) detachLocked(eventType EventType, ch <-chan Event) chan Event {
	subscribers := eb.subscribers[eventType]
	for i, subscriber := range subscribers {
		if subscriber == ch {
			// Remove from slice
			eb.subscribers[eventType] = append(subscribers[:i], subscribers[i+1:]...)
			return subscriber
		}
	}
	return nil
}

// Close closes all subscriber channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// A SubscribeAll channel sits in several lists; close each channel once.
	closed := make(map[chan Event]struct{})
	for eventType, subscribers := range eb.subscribers {
		for _, ch := range subscribers {
			if _, done := closed[ch]; !done {
				closed[ch] = struct{}{}
				close(ch)
			}
		}
		delete(eb.subscribers, eventType)
	}
}
