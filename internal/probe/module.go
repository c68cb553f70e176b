package probe

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
)

// Module exports the probe module
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, logger *zap.Logger) domain.Prober {
		return NewChain(time.Duration(cfg.Probe.TimeoutSeconds)*time.Second, logger)
	}),
)
