package engine

import (
	"go.uber.org/fx"
)

// Module exports the engine module
var Module = fx.Options(
	fx.Provide(NewEngine),
)
