package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AimalShah/BarterDash-sub003/internal/database"
)

// AuctionDirectory is the slice of the supervisor the auction endpoints
// depend on.
type AuctionDirectory interface {
	BidsByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]database.AuctionBid, error)
	HighestBid(ctx context.Context, auctionID uuid.UUID) (*database.AuctionBid, error)
}

// AuctionHandler handles observed auction activity endpoints
type AuctionHandler struct {
	directory AuctionDirectory
	logger    *zap.Logger
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(directory AuctionDirectory, logger *zap.Logger) *AuctionHandler {
	return &AuctionHandler{
		directory: directory,
		logger:    logger,
	}
}

// ListBids retrieves the bids observed for an auction
// GET /api/v1/auctions/:auctionId/bids
func (h *AuctionHandler) ListBids(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid auction ID",
			Message: "Auction ID must be a valid UUID",
		})
		return
	}

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

	bids, err := h.directory.BidsByAuction(c.Request.Context(), auctionID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list auction bids", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list bids",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Bids retrieved successfully",
		Data: map[string]interface{}{
			"auction_id": auctionID.String(),
			"bids":       bids,
			"count":      len(bids),
			"limit":      limit,
			"offset":     offset,
		},
	})
}

// GetHighestBid retrieves the top observed bid for an auction
// GET /api/v1/auctions/:auctionId/bids/highest
func (h *AuctionHandler) GetHighestBid(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid auction ID",
			Message: "Auction ID must be a valid UUID",
		})
		return
	}

	bid, err := h.directory.HighestBid(c.Request.Context(), auctionID)
	if err != nil {
		h.logger.Error("Failed to get highest bid", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get highest bid",
			Message: err.Error(),
		})
		return
	}

	if bid == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "No bids recorded",
			Message: "No bids have been observed for this auction",
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Highest bid retrieved successfully",
		Data:    bid,
	})
}
