// Package bot routes slash command interactions to commands and owns
// their registration with Discord.
package bot

import (
	"go.uber.org/fx"
)

// Module provides bot service dependencies.
var Module = fx.Module("bot",
	fx.Provide(NewBot),
)
