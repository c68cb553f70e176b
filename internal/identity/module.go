package identity

import (
	"context"

	"go.uber.org/fx"

	"netwatch/internal/config"
	"netwatch/internal/domain"
)

// Module exports the identity module
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config) domain.Resolver {
		return NewHTTPResolver(cfg.VPN.ResolverURL, resolveTimeout)
	}),
	fx.Provide(NewMonitor),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, monitor *Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return monitor.Start()
		},
		OnStop: func(ctx context.Context) error {
			monitor.Stop()
			return nil
		},
	})
}
