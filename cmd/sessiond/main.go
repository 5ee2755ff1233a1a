package main

import (
	"go.uber.org/fx"

	"github.com/AimalShah/BarterDash-sub003/internal/api"
	"github.com/AimalShah/BarterDash-sub003/internal/cli"
	"github.com/AimalShah/BarterDash-sub003/internal/config"
	"github.com/AimalShah/BarterDash-sub003/internal/database"
	"github.com/AimalShah/BarterDash-sub003/internal/infrastructure"
	"github.com/AimalShah/BarterDash-sub003/internal/services"
)

func main() {
	fx.New(
		// CLI commands (flag overrides must land before configuration loads)
		cli.Module,

		// Configuration
		fx.Provide(config.LoadConfig),

		// Logger and lifecycle management
		infrastructure.Module,

		// Session journal storage
		database.Module,

		// Event bus and session supervisor
		services.Module,

		// HTTP API and observer WebSocket
		api.Module,
	).Run()
}
