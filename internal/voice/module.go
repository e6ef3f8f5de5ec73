package voice

import (
	"go.uber.org/fx"

	"github.com/Raikerian/go-discord-recorder/internal/session"
)

var Module = fx.Module("voice",
	fx.Provide(
		fx.Annotate(
			NewTransport,
			fx.As(new(session.Transport)),
		),
	),
)
