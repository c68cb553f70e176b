package config

import (
	"go.uber.org/fx"
)

// Module exports the config module
var Module = fx.Options(
	fx.Provide(NewConfig),
	fx.Provide(NewSettings),
)
