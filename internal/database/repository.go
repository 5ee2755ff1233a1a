package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Repository provides database operations for the session journal
type Repository struct {
	db *sqlx.DB
}

// PoolConfig tunes the underlying connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns the stock pool settings
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// NewRepository creates a new database repository
func NewRepository(connectionString string, pool PoolConfig) (*Repository, error) {
	// Ensure simple protocol to avoid server-side prepared statements
	dsn := connectionString
	if dsn != "" && !strings.Contains(dsn, "prefer_simple_protocol=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = dsn + sep + "prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(10 * time.Minute)

	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context, migrationSQL string) error {
	_, err := r.db.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// === Session Event Operations ===

// InsertEvent journals a session lifecycle event
func (r *Repository) InsertEvent(ctx context.Context, event *SessionEvent) error {
	query := `
		INSERT INTO session_events (
			id, session_id, event_type, details
		) VALUES (
			:id, :session_id, :event_type, :details
		)
		RETURNING recorded_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&event.RecordedAt); err != nil {
			return fmt.Errorf("failed to scan inserted event: %w", err)
		}
	}
	return nil
}

// ListEvents retrieves journal entries for a session, newest first
func (r *Repository) ListEvents(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]SessionEvent, error) {
	var events []SessionEvent
	query := `
		SELECT id, session_id, event_type, details, recorded_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &events, query, sessionID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

// LatestEvent retrieves the most recent journal entry for a session
func (r *Repository) LatestEvent(ctx context.Context, sessionID uuid.UUID) (*SessionEvent, error) {
	var event SessionEvent
	query := `
		SELECT id, session_id, event_type, details, recorded_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &event, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil // An empty journal is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest event: %w", err)
	}

	return &event, nil
}

// CountsByType aggregates journal entries per event type for a session
func (r *Repository) CountsByType(ctx context.Context, sessionID uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		EventType string `db:"event_type"`
		Count     int64  `db:"count"`
	}

	query := `
		SELECT event_type, COUNT(*) as count
		FROM session_events
		WHERE session_id = $1
		GROUP BY event_type
	`

	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.EventType] = row.Count
	}
	return counts, nil
}

// DeleteEventsBefore removes journal entries older than the cutoff
func (r *Repository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM session_events WHERE recorded_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// === Auction Bid Operations ===

// InsertBid records a bid observed on the live feed. Redelivered bids are
// ignored via the bid_id uniqueness constraint.
func (r *Repository) InsertBid(ctx context.Context, bid *AuctionBid) error {
	query := `
		INSERT INTO auction_bids (
			id, session_id, auction_id, bid_id, bidder, amount, currency, placed_at, recorded_at
		) VALUES (
			:id, :session_id, :auction_id, :bid_id, :bidder, :amount, :currency, :placed_at, :recorded_at
		)
		ON CONFLICT (bid_id) DO NOTHING
	`

	_, err := r.db.NamedExecContext(ctx, query, bid)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	return nil
}

// ListBidsByAuction retrieves observed bids for an auction, newest first
func (r *Repository) ListBidsByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]AuctionBid, error) {
	var bids []AuctionBid
	query := `
		SELECT id, session_id, auction_id, bid_id, bidder, amount, currency, placed_at, recorded_at
		FROM auction_bids
		WHERE auction_id = $1
		ORDER BY placed_at DESC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &bids, query, auctionID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	return bids, nil
}

// HighestBid retrieves the largest observed bid for an auction
func (r *Repository) HighestBid(ctx context.Context, auctionID uuid.UUID) (*AuctionBid, error) {
	var bid AuctionBid
	query := `
		SELECT id, session_id, auction_id, bid_id, bidder, amount, currency, placed_at, recorded_at
		FROM auction_bids
		WHERE auction_id = $1
		ORDER BY amount DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &bid, query, auctionID)
	if err == sql.ErrNoRows {
		return nil, nil // No bids yet is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	return &bid, nil
}
