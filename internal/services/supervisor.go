package services

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AimalShah/BarterDash-sub003/internal/config"
	"github.com/AimalShah/BarterDash-sub003/internal/database"
	"github.com/AimalShah/BarterDash-sub003/pkg/livefeed"
	"github.com/AimalShah/BarterDash-sub003/pkg/session"
	"github.com/AimalShah/BarterDash-sub003/pkg/signal"
)

const journalBuffer = 256

// Supervisor owns the live session: it wires the session manager to the
// auction feed, the network monitor, the event bus and the journal, and
// exposes the control surface the API serves.
type Supervisor struct {
	manager    *session.Manager
	feed       *livefeed.Client
	metrics    session.Metrics
	repo       *database.Repository
	bus        *EventBus
	logger     *zap.Logger
	monitor    *signal.Monitor
	foreground *signal.Var

	unsubscribeNet func()

	journal chan database.SessionEvent
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewSupervisor assembles the session stack from configuration.
func NewSupervisor(
	cfg *config.Config,
	repo *database.Repository,
	bus *EventBus,
	logger *zap.Logger,
) (*Supervisor, error) {
	feedConfig := livefeed.Config{
		URL:              cfg.Feed.URL,
		AuthToken:        cfg.Feed.AuthToken,
		HandshakeTimeout: time.Duration(cfg.Feed.HandshakeTimeout) * time.Second,
		WriteTimeout:     time.Duration(cfg.Feed.WriteTimeout) * time.Second,
		PongTimeout:      time.Duration(cfg.Feed.PongTimeout) * time.Second,
		ReadTimeout:      time.Duration(cfg.Feed.ReadTimeout) * time.Second,
		MessageBuffer:    cfg.Feed.MessageBuffer,
	}

	feed, err := livefeed.NewClient(feedConfig, logger)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		feed:       feed,
		metrics:    session.NewMetrics(),
		repo:       repo,
		bus:        bus,
		logger:     logger,
		foreground: signal.NewVar(true),
		journal:    make(chan database.SessionEvent, journalBuffer),
		quit:       make(chan struct{}),
	}

	if addr := probeAddr(cfg.Feed.URL); addr != "" {
		probe := signal.TCPProbe(addr, 3*time.Second)
		interval := time.Duration(cfg.Session.NetworkProbeIntervalMS) * time.Millisecond
		s.monitor = signal.NewMonitor(probe, interval)

		s.unsubscribeNet = s.monitor.Signal().Subscribe(func(up bool) {
			s.logger.Info("Network probe state changed", zap.Bool("up", up))
			s.bus.Publish(Event{Type: EventNetworkChanged, Data: map[string]interface{}{"up": up}})
		})
	}

	sessionConfig := sessionConfigFrom(cfg.Session)
	sessionConfig.Callbacks = session.Callbacks{
		OnStateChange:   s.onStateChange,
		OnQualityChange: s.onQualityChange,
		OnError:         s.onError,
		OnReconnect:     s.onReconnect,
	}

	signals := session.Signals{Foreground: s.foreground}
	if s.monitor != nil {
		signals.Network = s.monitor.Signal()
	}

	manager, err := session.NewManager(sessionConfig, feed.Ops(), signals, s.metrics, logger)
	if err != nil {
		return nil, err
	}
	s.manager = manager

	return s, nil
}

// Start launches the background loops and makes the initial connection.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.monitor != nil {
		s.monitor.Start()
	}

	s.wg.Add(2)
	go s.journalLoop()
	go s.consumeFeed()

	if err := s.manager.Connect(ctx); err != nil {
		// Automatic reconnection owns recovery from here.
		s.logger.Warn("Initial connect failed", zap.Error(err))
	}
	return nil
}

// Stop tears the session down and drains the journal.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.manager.Destroy()
	if s.monitor != nil {
		s.monitor.Stop()
	}
	if s.unsubscribeNet != nil {
		s.unsubscribeNet()
	}

	close(s.quit)
	s.wg.Wait()

	s.logger.Info("Session supervisor stopped")
	return nil
}

// Connect establishes the session on demand.
func (s *Supervisor) Connect(ctx context.Context) error {
	return s.manager.Connect(ctx)
}

// Disconnect tears the session down without scheduling recovery.
func (s *Supervisor) Disconnect() {
	s.manager.Disconnect()
}

// Reconnect forces a fresh session cycle.
func (s *Supervisor) Reconnect(ctx context.Context) error {
	return s.manager.Reconnect(ctx)
}

// Stats returns the current session snapshot.
func (s *Supervisor) Stats() session.Stats {
	return s.manager.Stats()
}

// SessionID identifies the supervised session.
func (s *Supervisor) SessionID() uuid.UUID {
	return s.manager.SessionID()
}

// MetricStats returns the accumulated session counters.
func (s *Supervisor) MetricStats() map[string]interface{} {
	return s.metrics.GetStats()
}

// SetForeground feeds the host application lifecycle into the session.
func (s *Supervisor) SetForeground(fg bool) {
	s.foreground.Set(fg)
}

// Foreground reports the current application lifecycle state.
func (s *Supervisor) Foreground() bool {
	return s.foreground.Current()
}

// Events returns a page of this session's journal, newest first.
func (s *Supervisor) Events(ctx context.Context, limit, offset int) ([]database.SessionEvent, error) {
	return s.repo.ListEvents(ctx, s.manager.SessionID(), limit, offset)
}

// EventSummary returns per-type journal counts and the most recent entry.
func (s *Supervisor) EventSummary(ctx context.Context) (map[string]int64, *database.SessionEvent, error) {
	counts, err := s.repo.CountsByType(ctx, s.manager.SessionID())
	if err != nil {
		return nil, nil, err
	}

	latest, err := s.repo.LatestEvent(ctx, s.manager.SessionID())
	if err != nil {
		return nil, nil, err
	}

	return counts, latest, nil
}

// PruneEvents removes journal entries recorded before the cutoff.
func (s *Supervisor) PruneEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteEventsBefore(ctx, cutoff)
}

// BidsByAuction returns the bids observed for one auction.
func (s *Supervisor) BidsByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]database.AuctionBid, error) {
	return s.repo.ListBidsByAuction(ctx, auctionID, limit, offset)
}

// HighestBid returns the top observed bid for one auction, or nil when the
// auction has none.
func (s *Supervisor) HighestBid(ctx context.Context, auctionID uuid.UUID) (*database.AuctionBid, error) {
	return s.repo.HighestBid(ctx, auctionID)
}

func (s *Supervisor) onStateChange(state session.ConnectionState) {
	s.logger.Info("Session state changed", zap.String("state", state.String()))
	s.bus.Publish(Event{Type: EventStateChanged, Data: map[string]interface{}{
		"state": state.String(),
	}})
	s.journalEvent(database.EventStateChanged, database.EventDetails{
		"state": state.String(),
	})
}

func (s *Supervisor) onQualityChange(quality session.ConnectionQuality) {
	s.logger.Info("Session quality changed", zap.String("quality", quality.String()))
	s.bus.Publish(Event{Type: EventQualityChanged, Data: map[string]interface{}{
		"quality": quality.String(),
	}})
	s.journalEvent(database.EventQualityChanged, database.EventDetails{
		"quality": quality.String(),
	})
}

func (s *Supervisor) onError(err error) {
	s.logger.Warn("Session error", zap.Error(err))
	s.bus.Publish(Event{Type: EventConnectionError, Data: map[string]interface{}{
		"error": err.Error(),
	}})
	s.journalEvent(database.EventConnectionError, database.EventDetails{
		"error": err.Error(),
	})
}

func (s *Supervisor) onReconnect(attempt int) {
	s.logger.Info("Session reconnect scheduled", zap.Int("attempt", attempt))
	s.bus.Publish(Event{Type: EventReconnectAttempt, Data: map[string]interface{}{
		"attempt": attempt,
	}})
	s.journalEvent(database.EventReconnectAttempt, database.EventDetails{
		"attempt": attempt,
	})
}

// journalEvent enqueues a journal entry without blocking a callback.
func (s *Supervisor) journalEvent(eventType string, details database.EventDetails) {
	event := database.SessionEvent{
		ID:        uuid.New(),
		SessionID: s.manager.SessionID(),
		EventType: eventType,
		Details:   details,
	}

	select {
	case s.journal <- event:
	default:
		s.logger.Warn("Journal buffer full, dropping event", zap.String("type", eventType))
	}
}

func (s *Supervisor) journalLoop() {
	defer s.wg.Done()

	for {
		select {
		case event := <-s.journal:
			s.writeEvent(event)
		case <-s.quit:
			// Drain what is already queued before exiting.
			for {
				select {
				case event := <-s.journal:
					s.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Supervisor) writeEvent(event database.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.InsertEvent(ctx, &event); err != nil {
		s.logger.Warn("Failed to journal session event", zap.Error(err))
	}
}

func (s *Supervisor) consumeFeed() {
	defer s.wg.Done()

	for {
		select {
		case <-s.quit:
			return
		case msg := <-s.feed.Messages():
			s.handleFeedMessage(msg)
		}
	}
}

func (s *Supervisor) handleFeedMessage(msg livefeed.Message) {
	switch msg.Type {
	case livefeed.MessageBidPlaced:
		bid, err := msg.DecodeBid()
		if err != nil {
			s.logger.Warn("Discarding bid frame", zap.Error(err))
			return
		}
		s.bus.Publish(Event{Type: EventBidReceived, Data: map[string]interface{}{
			"auction_id": bid.AuctionID.String(),
			"bidder":     bid.Bidder,
			"amount":     bid.Amount.String(),
			"currency":   bid.Currency,
		}})
		s.recordBid(bid)

	case livefeed.MessageAuctionClosed:
		closed, err := msg.DecodeAuctionClosed()
		if err != nil {
			s.logger.Warn("Discarding auction frame", zap.Error(err))
			return
		}
		s.bus.Publish(Event{Type: EventAuctionClosed, Data: map[string]interface{}{
			"auction_id":   closed.AuctionID.String(),
			"final_amount": closed.FinalAmount.String(),
		}})

	case livefeed.MessageTradeProposed:
		trade, err := msg.DecodeTrade()
		if err != nil {
			s.logger.Warn("Discarding trade frame", zap.Error(err))
			return
		}
		s.bus.Publish(Event{Type: EventTradeProposed, Data: map[string]interface{}{
			"trade_id":   trade.TradeID.String(),
			"listing_id": trade.ListingID.String(),
			"proposer":   trade.Proposer,
		}})

	default:
		s.logger.Debug("Ignoring feed frame", zap.String("type", string(msg.Type)))
	}
}

func (s *Supervisor) recordBid(bid *livefeed.BidPlaced) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := &database.AuctionBid{
		ID:         uuid.New(),
		SessionID:  s.manager.SessionID(),
		AuctionID:  bid.AuctionID,
		BidID:      bid.BidID,
		Bidder:     bid.Bidder,
		Amount:     bid.Amount,
		Currency:   bid.Currency,
		PlacedAt:   bid.PlacedAt,
		RecordedAt: time.Now().UTC(),
	}

	if err := s.repo.InsertBid(ctx, record); err != nil {
		s.logger.Warn("Failed to record bid", zap.Error(err))
	}
}

// sessionConfigFrom maps application configuration onto the manager's.
func sessionConfigFrom(app config.SessionConfig) session.Config {
	return session.Config{
		EnableAutoReconnect:  app.EnableAutoReconnect,
		MaxReconnectAttempts: app.MaxReconnectAttempts,
		BaseReconnectDelay:   time.Duration(app.BaseReconnectDelayMS) * time.Millisecond,
		MaxReconnectDelay:    time.Duration(app.MaxReconnectDelayMS) * time.Millisecond,
		ConnectTimeout:       time.Duration(app.ConnectTimeoutMS) * time.Millisecond,
		HeartbeatInterval:    time.Duration(app.HeartbeatIntervalMS) * time.Millisecond,
	}
}

// probeAddr derives a TCP reachability target from the feed URL.
func probeAddr(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	switch u.Scheme {
	case "wss", "https":
		return u.Host + ":443"
	default:
		return u.Host + ":80"
	}
}
