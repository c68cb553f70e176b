package stats

import (
	"go.uber.org/fx"
)

// Module exports the stats module
var Module = fx.Options(
	fx.Provide(NewService),
)
