package app

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"netwatch/internal/common"
	"netwatch/internal/config"
	"netwatch/internal/engine"
	"netwatch/internal/history"
	"netwatch/internal/identity"
	"netwatch/internal/metrics"
	"netwatch/internal/probe"
	"netwatch/internal/scheduler"
	"netwatch/internal/server"
	"netwatch/internal/sink"
	"netwatch/internal/sites"
	"netwatch/internal/stats"
)

type Application struct {
	app    *fx.App
	logger *zap.Logger
}

func NewApplication(opts ...common.Option) *Application {
	options := &common.ServiceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Ensure required options are set
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	app := &Application{
		logger: options.Logger,
	}

	// Build fx application
	app.app = fx.New(
		// Core modules
		config.Module,
		metrics.Module,
		sink.Module,
		history.Module,
		probe.Module,
		stats.Module,
		scheduler.Module,
		identity.Module,
		sites.Module,
		engine.Module,
		server.Module,

		// Provide base dependencies
		fx.Provide(
			func() *zap.Logger { return options.Logger },
			func() string { return options.Env },
			func() clock.Clock { return clock.New() },
		),

		// Configure fx
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),

		// Set timeouts
		fx.StopTimeout(30*time.Second),
		fx.StartTimeout(30*time.Second),

		// Register lifecycle hooks
		fx.Invoke(app.registerHooks),
	)

	return app
}

func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

func (a *Application) registerHooks(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			a.logger.Info("starting application")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			a.logger.Info("stopping application")
			return nil
		},
	})
}
