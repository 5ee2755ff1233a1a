// Package livefeed implements the websocket client for the BarterDash
// live auction feed. It exposes connect, disconnect and ping operations
// suitable for driving a session manager, plus a channel of decoded
// marketplace events.
package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected is returned when an operation needs an open feed.
	ErrNotConnected = errors.New("livefeed: not connected")

	// ErrPongTimeout is returned when the server does not answer a ping
	// within the configured pong timeout.
	ErrPongTimeout = errors.New("livefeed: pong timeout")
)

// Client maintains a single websocket connection to the live feed.
type Client struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	readGen uint64
	pending map[string]chan struct{}

	messages chan Message
	dropped  uint64
}

// NewClient validates the configuration and builds a disconnected client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid livefeed config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:   config,
		logger:   logger,
		pending:  make(map[string]chan struct{}),
		messages: make(chan Message, config.MessageBuffer),
	}, nil
}

// Messages returns the stream of decoded feed frames. Frames arriving
// while the buffer is full are dropped, the feed always favors liveness
// over completeness.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Connect dials the feed endpoint. An existing connection is closed
// first so the client never holds two sockets.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
		ReadBufferSize:   c.config.ReadBufferSize,
		WriteBufferSize:  c.config.WriteBufferSize,
	}

	header := http.Header{}
	if c.config.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	conn, resp, err := dialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to dial feed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to dial feed: %w", err)
	}

	conn.SetReadLimit(c.config.MaxMessageSize)
	conn.SetPongHandler(func(appData string) error {
		c.resolvePong(appData)
		return nil
	})

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.readGen++
	gen := c.readGen
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	c.logger.Info("Live feed connected", zap.String("url", c.config.URL))
	go c.readLoop(conn, gen)

	return nil
}

// Disconnect sends a close frame and tears the connection down. It is
// a no-op when already disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.readGen++
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	if err := conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
		c.logger.Debug("Close frame write failed", zap.Error(err))
	}

	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close feed connection: %w", err)
	}

	c.logger.Info("Live feed disconnected")
	return nil
}

// Ping sends a control-frame ping carrying a nonce and measures the
// round trip to the matching pong.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return 0, ErrNotConnected
	}

	nonce := uuid.NewString()
	pong := make(chan struct{}, 1)
	c.pending[nonce] = pong
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, nonce)
		c.mu.Unlock()
	}()

	start := time.Now()
	deadline := start.Add(c.config.WriteTimeout)
	if err := conn.WriteControl(websocket.PingMessage, []byte(nonce), deadline); err != nil {
		return 0, fmt.Errorf("failed to write ping: %w", err)
	}

	timer := time.NewTimer(c.config.PongTimeout)
	defer timer.Stop()

	select {
	case <-pong:
		return time.Since(start), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, ErrPongTimeout
	}
}

func (c *Client) resolvePong(appData string) {
	c.mu.Lock()
	pong, ok := c.pending[appData]
	c.mu.Unlock()

	if ok {
		select {
		case pong <- struct{}{}:
		default:
		}
	}
}

// readLoop drains frames until the connection dies or a newer
// generation replaces it. Pong handlers only run while a read is in
// flight, so the loop doubles as the ping transport.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
			c.finishRead(conn, gen, err)
			return
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.finishRead(conn, gen, err)
			return
		}

		var message Message
		if err := json.Unmarshal(payload, &message); err != nil {
			c.logger.Warn("Discarding malformed feed frame", zap.Error(err))
			continue
		}

		select {
		case c.messages <- message:
		default:
			c.mu.Lock()
			c.dropped++
			dropped := c.dropped
			c.mu.Unlock()
			c.logger.Warn("Feed buffer full, dropping frame",
				zap.String("type", string(message.Type)),
				zap.Uint64("dropped_total", dropped))
		}
	}
}

// finishRead clears the tracked connection when this loop still owns
// it, so a later Ping fails fast instead of writing to a dead socket.
func (c *Client) finishRead(conn *websocket.Conn, gen uint64, err error) {
	c.mu.Lock()
	current := c.readGen == gen
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	conn.Close()

	if !current {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("Live feed closed by server")
		return
	}
	c.logger.Warn("Live feed read failed", zap.Error(err))
}

// Dropped reports how many frames were discarded due to a full buffer.
func (c *Client) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
