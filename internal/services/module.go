package services

import (
	"go.uber.org/fx"
)

// Module provides application services
var Module = fx.Module("services",
	fx.Provide(
		NewEventBus,
		NewSupervisor,
	),
	fx.Invoke(registerSupervisor),
)

func registerSupervisor(lc fx.Lifecycle, supervisor *Supervisor) {
	lc.Append(fx.Hook{
		OnStart: supervisor.Start,
		OnStop:  supervisor.Stop,
	})
}
