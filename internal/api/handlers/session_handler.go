package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AimalShah/BarterDash-sub003/internal/database"
	"github.com/AimalShah/BarterDash-sub003/pkg/session"
)

// SessionController is the slice of the supervisor the session endpoints
// depend on.
type SessionController interface {
	Connect(ctx context.Context) error
	Disconnect()
	Reconnect(ctx context.Context) error
	Stats() session.Stats
	SessionID() uuid.UUID
	MetricStats() map[string]interface{}
	SetForeground(fg bool)
	Foreground() bool
	Events(ctx context.Context, limit, offset int) ([]database.SessionEvent, error)
	EventSummary(ctx context.Context) (map[string]int64, *database.SessionEvent, error)
	PruneEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionHandler handles session lifecycle endpoints
type SessionHandler struct {
	controller SessionController
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(controller SessionController, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		controller: controller,
		logger:     logger,
	}
}

// GetStats retrieves the session snapshot and counters
// GET /api/v1/session/stats
func (h *SessionHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session stats retrieved successfully",
		Data: map[string]interface{}{
			"session":    h.controller.Stats(),
			"metrics":    h.controller.MetricStats(),
			"foreground": h.controller.Foreground(),
		},
	})
}

// Connect establishes the session
// POST /api/v1/session/connect
func (h *SessionHandler) Connect(c *gin.Context) {
	if err := h.controller.Connect(c.Request.Context()); err != nil {
		h.respondSessionError(c, "Failed to connect", err)
		return
	}

	h.logger.Info("Session connected via API",
		zap.String("session_id", h.controller.SessionID().String()))

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session connected successfully",
		Data:    map[string]interface{}{"session_id": h.controller.SessionID().String()},
	})
}

// Disconnect tears the session down
// POST /api/v1/session/disconnect
func (h *SessionHandler) Disconnect(c *gin.Context) {
	h.controller.Disconnect()

	h.logger.Info("Session disconnected via API",
		zap.String("session_id", h.controller.SessionID().String()))

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session disconnected successfully",
	})
}

// Reconnect forces a fresh session cycle
// POST /api/v1/session/reconnect
func (h *SessionHandler) Reconnect(c *gin.Context) {
	if err := h.controller.Reconnect(c.Request.Context()); err != nil {
		h.respondSessionError(c, "Failed to reconnect", err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session reconnected successfully",
		Data:    map[string]interface{}{"session_id": h.controller.SessionID().String()},
	})
}

// ForegroundRequest represents a host application lifecycle update
type ForegroundRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetForeground feeds the host application lifecycle into the session
// PUT /api/v1/session/foreground
func (h *SessionHandler) SetForeground(c *gin.Context) {
	var req ForegroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	h.controller.SetForeground(*req.Active)

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Foreground state updated successfully",
		Data:    map[string]interface{}{"active": *req.Active},
	})
}

// ListEvents retrieves a page of the session journal
// GET /api/v1/session/events
func (h *SessionHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	events, err := h.controller.Events(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list session events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list events",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Events retrieved successfully",
		Data: map[string]interface{}{
			"events": events,
			"count":  len(events),
			"limit":  limit,
			"offset": offset,
		},
	})
}

// GetEventSummary retrieves per-type journal counts and the latest entry
// GET /api/v1/session/events/summary
func (h *SessionHandler) GetEventSummary(c *gin.Context) {
	counts, latest, err := h.controller.EventSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to summarize session events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to summarize events",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Event summary retrieved successfully",
		Data: map[string]interface{}{
			"counts": counts,
			"latest": latest,
		},
	})
}

// PruneEvents removes journal entries past the retention window
// DELETE /api/v1/session/events
func (h *SessionHandler) PruneEvents(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("older_than_hours", "168"))
	if err != nil || hours < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid older_than_hours parameter",
			Message: "older_than_hours must be a positive integer",
		})
		return
	}

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	deleted, err := h.controller.PruneEvents(c.Request.Context(), cutoff)
	if err != nil {
		h.logger.Error("Failed to prune session events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to prune events",
			Message: err.Error(),
		})
		return
	}

	h.logger.Info("Session events pruned",
		zap.Int64("deleted", deleted),
		zap.Int("older_than_hours", hours))

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Events pruned successfully",
		Data: map[string]interface{}{
			"deleted":          deleted,
			"older_than_hours": hours,
		},
	})
}

func (h *SessionHandler) respondSessionError(c *gin.Context, title string, err error) {
	h.logger.Error(title, zap.Error(err))

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrManagerClosed):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNetworkUnavailable):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, ErrorResponse{
		Error:   title,
		Message: err.Error(),
	})
}
