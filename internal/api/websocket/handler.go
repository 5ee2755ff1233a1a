package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AimalShah/BarterDash-sub003/internal/services"
	"github.com/AimalShah/BarterDash-sub003/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins - configure CORS properly in production
		return true
	},
}

// SnapshotProvider supplies the session snapshot pushed to new observers.
type SnapshotProvider interface {
	Stats() session.Stats
}

// Frame is the envelope streamed to observers. New connections receive one
// snapshot frame before any event frames.
type Frame struct {
	Kind string      `json:"kind"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

const (
	frameSnapshot = "snapshot"
	frameEvent    = "event"
)

// Handler fans session events out to observer WebSocket clients
type Handler struct {
	eventBus  *services.EventBus
	snapshots SnapshotProvider
	logger    *zap.Logger
	observers map[*observer]bool
	mu        sync.RWMutex
}

// observer represents one connected WebSocket client
type observer struct {
	conn    *websocket.Conn
	send    chan []byte
	handler *Handler
	logger  *zap.Logger
}

// NewHandler creates a new observer handler
func NewHandler(eventBus *services.EventBus, snapshots SnapshotProvider, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus:  eventBus,
		snapshots: snapshots,
		logger:    logger,
		observers: make(map[*observer]bool),
	}
}

// HandleConnection upgrades an observer connection and pushes the current
// session snapshot as the first frame
// GET /ws
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade observer connection", zap.Error(err))
		return
	}

	obs := &observer{
		conn:    conn,
		send:    make(chan []byte, 256),
		handler: h,
		logger:  h.logger,
	}

	snapshot, err := json.Marshal(Frame{
		Kind: frameSnapshot,
		At:   time.Now().UTC(),
		Data: h.snapshots.Stats(),
	})
	if err == nil {
		obs.send <- snapshot
	}

	h.mu.Lock()
	h.observers[obs] = true
	h.mu.Unlock()

	h.logger.Info("Observer connected",
		zap.String("remote_addr", conn.RemoteAddr().String()))

	go obs.writePump()
	go obs.readPump()
}

// Broadcast sends an event frame to every connected observer. Observers that
// cannot keep up are dropped.
func (h *Handler) Broadcast(event services.Event) {
	message, err := json.Marshal(Frame{
		Kind: frameEvent,
		At:   time.Now().UTC(),
		Data: event,
	})
	if err != nil {
		h.logger.Error("Failed to marshal event frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for obs := range h.observers {
		select {
		case obs.send <- message:
		default:
			h.logger.Warn("Observer send buffer full, dropping connection")
			go h.drop(obs)
		}
	}
}

// StartEventListener subscribes to the bus and streams every event until the
// bus closes
func (h *Handler) StartEventListener() {
	events := h.eventBus.SubscribeAll(100)

	go func() {
		for event := range events {
			h.Broadcast(event)
		}
	}()
}

// ObserverCount returns the number of connected observers
func (h *Handler) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// drop removes an observer and closes its connection
func (h *Handler) drop(obs *observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.observers[obs]; ok {
		delete(h.observers, obs)
		close(obs.send)
		obs.conn.Close()
		h.logger.Info("Observer disconnected")
	}
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// readPump discards observer input and tears the connection down on error
func (o *observer) readPump() {
	defer func() {
		o.handler.drop(o)
	}()

	o.conn.SetReadLimit(maxMessageSize)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		o.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := o.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				o.logger.Error("Observer read error", zap.Error(err))
			}
			break
		}

		// Observers are read-only; anything they send is ignored.
		o.logger.Debug("Ignoring observer message", zap.ByteString("message", message))
	}
}

// writePump drains the send queue and keeps the connection alive with pings
func (o *observer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	for {
		select {
		case message, ok := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The handler closed the channel
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := o.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued frames to the current websocket message
			n := len(o.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-o.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
