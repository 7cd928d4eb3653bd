package billingrun

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("billingrun",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Provide(NewScheduler),
	fx.Invoke(registerScheduler),
)

func registerScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}
