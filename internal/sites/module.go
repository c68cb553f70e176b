package sites

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
)

// Module exports the sites module
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, sink domain.EventSink, metrics domain.MetricsCollector, clk clock.Clock, logger *zap.Logger) (*Prober, error) {
		prober := NewProber(
			time.Duration(cfg.SiteChecks.CheckIntervalSeconds)*time.Second,
			time.Duration(cfg.SiteChecks.TimeoutSeconds)*time.Second,
			sink,
			metrics,
			clk,
			logger,
		)
		for _, site := range cfg.Sites {
			if err := prober.Add(domain.SiteMonitor{
				URL:         site.URL,
				DisplayName: site.DisplayName,
				Enabled:     site.Enabled,
			}); err != nil {
				return nil, err
			}
		}
		return prober, nil
	}),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, prober *Prober) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return prober.Start()
		},
		OnStop: func(ctx context.Context) error {
			prober.Stop()
			return nil
		},
	})
}
