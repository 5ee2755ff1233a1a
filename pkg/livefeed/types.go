package livefeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageType identifies a feed frame.
type MessageType string

const (
	MessageBidPlaced     MessageType = "bid_placed"
	MessageAuctionClosed MessageType = "auction_closed"
	MessageTradeProposed MessageType = "trade_proposed"
)

// Message is the envelope every feed frame arrives in.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BidPlaced announces a new bid on a live auction.
type BidPlaced struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	BidID     uuid.UUID       `json:"bid_id"`
	Bidder    string          `json:"bidder"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PlacedAt  time.Time       `json:"placed_at"`
}

// AuctionClosed announces the end of a live auction.
type AuctionClosed struct {
	AuctionID   uuid.UUID       `json:"auction_id"`
	WinningBid  *uuid.UUID      `json:"winning_bid,omitempty"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	ClosedAt    time.Time       `json:"closed_at"`
}

// TradeProposed announces a barter offer against a listing.
type TradeProposed struct {
	TradeID    uuid.UUID `json:"trade_id"`
	ListingID  uuid.UUID `json:"listing_id"`
	Proposer   string    `json:"proposer"`
	OfferItems []string  `json:"offer_items"`
	ProposedAt time.Time `json:"proposed_at"`
}

// DecodeBid unpacks a bid_placed payload.
func (m Message) DecodeBid() (*BidPlaced, error) {
	if m.Type != MessageBidPlaced {
		return nil, fmt.Errorf("message type is %q, not %q", m.Type, MessageBidPlaced)
	}
	var bid BidPlaced
	if err := json.Unmarshal(m.Data, &bid); err != nil {
		return nil, fmt.Errorf("failed to decode bid payload: %w", err)
	}
	return &bid, nil
}

// DecodeAuctionClosed unpacks an auction_closed payload.
func (m Message) DecodeAuctionClosed() (*AuctionClosed, error) {
	if m.Type != MessageAuctionClosed {
		return nil, fmt.Errorf("message type is %q, not %q", m.Type, MessageAuctionClosed)
	}
	var closed AuctionClosed
	if err := json.Unmarshal(m.Data, &closed); err != nil {
		return nil, fmt.Errorf("failed to decode auction payload: %w", err)
	}
	return &closed, nil
}

// DecodeTrade unpacks a trade_proposed payload.
func (m Message) DecodeTrade() (*TradeProposed, error) {
	if m.Type != MessageTradeProposed {
		return nil, fmt.Errorf("message type is %q, not %q", m.Type, MessageTradeProposed)
	}
	var trade TradeProposed
	if err := json.Unmarshal(m.Data, &trade); err != nil {
		return nil, fmt.Errorf("failed to decode trade payload: %w", err)
	}
	return &trade, nil
}
