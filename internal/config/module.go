// Package config loads and validates the recorder's YAML configuration.
package config

import (
	"go.uber.org/fx"
)

// Module loads the config from the supplied file path.
var Module = fx.Module("config",
	fx.Provide(LoadConfig),
)
