package database

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionEvent represents one journal entry in a session's lifecycle
type SessionEvent struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	SessionID  uuid.UUID    `db:"session_id" json:"session_id"`
	EventType  string       `db:"event_type" json:"event_type"`
	Details    EventDetails `db:"details" json:"details"`
	RecordedAt time.Time    `db:"recorded_at" json:"recorded_at"`
}

// EventDetails is a JSON map of event attributes
type EventDetails map[string]interface{}

// Value implements driver.Valuer for database storage
func (d EventDetails) Value() (driver.Value, error) {
	if d == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for database retrieval
func (d *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(EventDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// AuctionBid represents a bid observed on the live auction feed
type AuctionBid struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	SessionID  uuid.UUID       `db:"session_id" json:"session_id"`
	AuctionID  uuid.UUID       `db:"auction_id" json:"auction_id"`
	BidID      uuid.UUID       `db:"bid_id" json:"bid_id"`
	Bidder     string          `db:"bidder" json:"bidder"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Currency   string          `db:"currency" json:"currency"`
	PlacedAt   time.Time       `db:"placed_at" json:"placed_at"`
	RecordedAt time.Time       `db:"recorded_at" json:"recorded_at"`
}

// EventType constants
const (
	EventStateChanged     = "state_changed"
	EventQualityChanged   = "quality_changed"
	EventConnectionError  = "connection_error"
	EventReconnectAttempt = "reconnect_attempt"
)
