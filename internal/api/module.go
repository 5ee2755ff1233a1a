package api

import (
	"go.uber.org/fx"

	"github.com/AimalShah/BarterDash-sub003/internal/api/handlers"
	"github.com/AimalShah/BarterDash-sub003/internal/api/websocket"
	"github.com/AimalShah/BarterDash-sub003/internal/services"
)

// Module provides HTTP API components (handlers, routes, server)
var Module = fx.Module("api",
	fx.Provide(
		// The supervisor behind the narrow surfaces the handlers use
		func(s *services.Supervisor) handlers.SessionController { return s },
		func(s *services.Supervisor) handlers.AuctionDirectory { return s },
		func(s *services.Supervisor) websocket.SnapshotProvider { return s },

		// HTTP Handlers
		handlers.NewSessionHandler,
		handlers.NewAuctionHandler,
		websocket.NewHandler,

		// Router and HTTP Server
		SetupRouter,
		NewHTTPServer,
	),
	fx.Invoke(
		// Start websocket listener
		func(wsHandler *websocket.Handler) {
			wsHandler.StartEventListener()
		},
	),
)
