package scheduler

import (
	"context"

	"go.uber.org/fx"

	"netwatch/internal/config"
	"netwatch/internal/history"
)

// Module exports the scheduler module
var Module = fx.Options(
	fx.Provide(NewScheduler),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, s *Scheduler, cfg *config.Config, store *history.Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Configured targets join whatever the restored history already
			// knows about.
			for _, target := range cfg.Targets {
				store.EnsureTarget(target)
			}
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop()
		},
	})
}
