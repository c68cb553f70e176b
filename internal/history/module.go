package history

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
)

// Module exports the history module
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, settings *config.Settings, metrics domain.MetricsCollector, clk clock.Clock, logger *zap.Logger) *Store {
		return NewStore(cfg.StoragePath, settings, metrics, clk, logger)
	}),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, store *Store, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			store.Restore()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := store.Persist(); err != nil {
				logger.Error("final history snapshot failed", zap.Error(err))
			}
			return nil
		},
	})
}
