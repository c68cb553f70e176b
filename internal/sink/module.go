package sink

import (
	"context"

	"go.uber.org/fx"

	"netwatch/internal/domain"
)

// Module exports the sink module
var Module = fx.Options(
	fx.Provide(NewHub),
	fx.Provide(NewSink),
	fx.Provide(NewLogNotifier),
	fx.Provide(func(s *Sink) domain.EventSink { return s }),
	fx.Provide(func(n *LogNotifier) domain.Notifier { return n }),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, hub *Hub) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return nil
		},
	})
}
