package bot

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/commands"
	"github.com/Raikerian/go-discord-recorder/internal/config"
)

// Bot represents the Discord bot.
type Bot struct {
	Session    *session.Session
	Config     *config.Config
	CmdManager *commands.CommandManager
	Logger     *zap.Logger

	guildIDs []discord.GuildID
}

// NewBotParameters holds dependencies for NewBot.
type NewBotParameters struct {
	fx.In

	Cfg        *config.Config
	S          *session.Session
	CmdManager *commands.CommandManager
	Logger     *zap.Logger
}

// NewBot creates the Bot and subscribes it to interaction events.
func NewBot(params NewBotParameters) (*Bot, error) {
	if params.S == nil {
		return nil, errors.New("session provided to NewBot is nil")
	}
	if params.Cfg == nil {
		return nil, errors.New("config provided to NewBot is nil")
	}
	if params.Logger == nil {
		return nil, errors.New("logger provided to NewBot is nil")
	}

	b := &Bot{
		Session:    params.S,
		Config:     params.Cfg,
		CmdManager: params.CmdManager,
		Logger:     params.Logger,
		guildIDs:   parseGuildIDs(params.Logger, params.Cfg.Discord.GuildIDs),
	}

	params.S.AddHandler(func(e *gateway.InteractionCreateEvent) {
		handleInteraction(context.Background(), params.S, b.CmdManager, e, params.Logger)
	})

	params.Logger.Info("NewBot created successfully", zap.Int("guilds", len(b.guildIDs)))

	return b, nil
}

// Start registers slash commands for the configured guilds.
func (b *Bot) Start(_ context.Context) error {
	if len(b.guildIDs) == 0 {
		b.Logger.Warn("No guild IDs configured, slash commands will not be registered")
		return nil
	}

	b.CmdManager.RegisterCommands(b.guildIDs)

	return nil
}

// Stop removes the guild commands so stale ones do not linger while the bot
// is offline.
func (b *Bot) Stop(_ context.Context) error {
	b.CmdManager.UnregisterAllCommands(b.guildIDs)

	return nil
}

func parseGuildIDs(logger *zap.Logger, raw []string) []discord.GuildID {
	ids := make([]discord.GuildID, 0, len(raw))
	for _, idStr := range raw {
		sf, err := discord.ParseSnowflake(idStr)
		if err != nil || !sf.IsValid() {
			logger.Error("Failed to parse guild ID", zap.String("guildIDStr", idStr), zap.Error(err))
			continue
		}
		ids = append(ids, discord.GuildID(sf))
	}

	return ids
}
