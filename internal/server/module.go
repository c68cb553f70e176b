package server

import (
	"context"

	"go.uber.org/fx"
)

// Module exports the server module
var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
