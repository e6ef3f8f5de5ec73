package bot

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/commands"
)

// commandLookup is the part of CommandManager the dispatcher needs.
type commandLookup interface {
	GetCommand(name string) (commands.Command, bool)
}

func handleInteraction(ctx context.Context, s *session.Session, cm commandLookup, e *gateway.InteractionCreateEvent, logger *zap.Logger) {
	data, ok := e.Data.(*discord.CommandInteraction)
	if !ok {
		logger.Debug("Received unhandled interaction type", zap.String("type", fmt.Sprintf("%T", e.Data)))
		return
	}

	logger = logger.With(
		zap.String("commandName", data.Name),
		zap.Stringer("userID", e.SenderID()),
		zap.Stringer("guildID", e.GuildID))
	logger.Info("Received slash command")

	cmd, ok := cm.GetCommand(data.Name)
	if !ok {
		logger.Warn("Unknown command")
		err := s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
			Type: api.MessageInteractionWithSource,
			Data: &api.InteractionResponseData{
				Content: option.NewNullableString("Command not found."),
				Flags:   discord.EphemeralMessage,
			},
		})
		if err != nil {
			logger.Error("Failed to respond to interaction for unknown command", zap.Error(err))
		}
		return
	}

	if err := cmd.Execute(ctx, s, e, data); err != nil {
		// The command may already have answered; a follow-up always works.
		logger.Error("Error executing command", zap.Error(err))
		_, followErr := s.FollowUpInteraction(e.AppID, e.Token, api.InteractionResponseData{
			Content: option.NewNullableString("An error occurred while executing the command."),
			Flags:   discord.EphemeralMessage,
		})
		if followErr != nil {
			logger.Debug("Failed to send error follow-up", zap.Error(followErr))
		}
		return
	}

	logger.Info("Command executed successfully")
}
