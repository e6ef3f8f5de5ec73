// Package discord opens the gateway session and the cached state the
// recorder uses for voice states and channel lookups.
package discord

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/state/store/defaultstore"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/config"
)

var (
	// ErrMissingToken is returned when no bot token is configured.
	ErrMissingToken = errors.New("discord: bot token is not set")

	// ErrMissingApplicationID is returned when application_id is unset or zero.
	ErrMissingApplicationID = errors.New("discord: application ID is not set")
)

// Intents are the gateway intents the recorder needs. Guilds fills the
// channel cache; voice states locate the invoking user's channel and drive
// the voice handshake.
const Intents = gateway.IntentGuilds | gateway.IntentGuildVoiceStates

// Module provides Discord-related dependencies.
var Module = fx.Module("discord",
	fx.Provide(
		NewSession,
		NewState,
		ProvideApplicationID,
	),
)

// SessionParams holds dependencies for NewSession.
type SessionParams struct {
	fx.In
	Cfg    *config.Config
	LC     fx.Lifecycle
	Logger *zap.Logger
}

// NewSession creates the gateway session and ties it to the app lifecycle.
// The session closes after every recording has been stopped, because
// recorder hooks are appended later and fx stops in reverse order.
func NewSession(params SessionParams) (*session.Session, error) {
	if params.Cfg.Discord.BotToken == "" {
		return nil, ErrMissingToken
	}
	if params.Cfg.Discord.ApplicationID == nil {
		return nil, ErrMissingApplicationID
	}

	logger := params.Logger.Named("discord")

	s := session.New("Bot " + params.Cfg.Discord.BotToken)
	s.AddIntents(Intents)
	s.AddHandler(func(e *gateway.ReadyEvent) {
		logger.Info("Discord gateway ready",
			zap.String("user", e.User.Username),
			zap.Stringer("user_id", e.User.ID),
			zap.Int("guilds", len(e.Guilds)))
	})

	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Opening Discord session")

			return s.Open(ctx)
		},
		OnStop: func(context.Context) error {
			logger.Info("Closing Discord session")

			return s.Close()
		},
	})

	return s, nil
}

// StateParams holds dependencies for NewState.
type StateParams struct {
	fx.In
	Session *session.Session
	Logger  *zap.Logger
}

// NewState wraps the session in a cached state. The voice transport needs
// it for the voice-server handshake and commands read voice states from it.
func NewState(params StateParams) *state.State {
	st := state.NewFromSession(params.Session, defaultstore.New())
	params.Logger.Debug("Created Discord state from session")

	return st
}

// ProvideApplicationID extracts the ApplicationID from config.
func ProvideApplicationID(cfg *config.Config, logger *zap.Logger) (discord.AppID, error) {
	if cfg.Discord.ApplicationID == nil || *cfg.Discord.ApplicationID == 0 {
		return 0, ErrMissingApplicationID
	}

	appID := discord.AppID(*cfg.Discord.ApplicationID)
	logger.Debug("Using Discord application", zap.Stringer("app_id", appID))

	return appID, nil
}
