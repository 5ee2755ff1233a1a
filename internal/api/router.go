package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AimalShah/BarterDash-sub003/internal/api/handlers"
	"github.com/AimalShah/BarterDash-sub003/internal/api/websocket"
	"github.com/AimalShah/BarterDash-sub003/internal/config"
)

// SetupRouter sets up the API router
func SetupRouter(
	sessionHandler *handlers.SessionHandler,
	auctionHandler *handlers.AuctionHandler,
	wsHandler *websocket.Handler,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     []string{cfg.Server.CORSAllowOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "barterdash-sessiond",
			"version": "1.0.0",
		})
	})

	// Observer WebSocket endpoint
	router.GET("/ws", wsHandler.HandleConnection)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Session lifecycle
		session := v1.Group("/session")
		{
			session.GET("/stats", sessionHandler.GetStats)
			session.POST("/connect", sessionHandler.Connect)
			session.POST("/disconnect", sessionHandler.Disconnect)
			session.POST("/reconnect", sessionHandler.Reconnect)
			session.PUT("/foreground", sessionHandler.SetForeground)
			session.GET("/events", sessionHandler.ListEvents)
			session.GET("/events/summary", sessionHandler.GetEventSummary)
			session.DELETE("/events", sessionHandler.PruneEvents)
		}

		// Observed auction activity
		auctions := v1.Group("/auctions")
		{
			auctions.GET("/:auctionId/bids", auctionHandler.ListBids)
			auctions.GET("/:auctionId/bids/highest", auctionHandler.GetHighestBid)
		}
	}

	return router
}

// LoggerMiddleware creates a Gin middleware for logging
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		if len(c.Errors) > 0 {
			// Log errors if any
			for _, e := range c.Errors.Errors() {
				logger.Error("Request error", zap.String("error", e))
			}
		} else {
			logger.Info("Request",
				zap.Int("status", c.Writer.Status()),
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.String("query", query),
				zap.String("ip", c.ClientIP()),
				zap.Duration("latency", latency),
			)
		}
	}
}
