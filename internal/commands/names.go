package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/names"
)

// NameCommand lets a member choose the name their voice is labelled with in
// exports and transcripts.
type NameCommand struct {
	logger *zap.Logger
	store  names.Store
}

// NewNameCommand creates the /transcribe-name command.
func NewNameCommand(logger *zap.Logger, store names.Store) *NameCommand {
	return &NameCommand{
		logger: logger.Named("names"),
		store:  store,
	}
}

func (c *NameCommand) Name() string {
	return "transcribe-name"
}

func (c *NameCommand) Description() string {
	return "Set or show the name used for you in recordings"
}

func (c *NameCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "action",
			Description: "Set a new name or show the current one",
			Required:    true,
			Choices: []discord.StringChoice{
				{Name: "Set", Value: "set"},
				{Name: "Get", Value: "get"},
			},
		},
		&discord.StringOption{
			OptionName:  "name",
			Description: fmt.Sprintf("Display name, up to %d characters", names.MaxNameLength),
			Required:    false,
		},
	}
}

func (c *NameCommand) Execute(_ context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if !e.GuildID.IsValid() {
		return respondError(c.logger, s, e, "Names are set per server")
	}
	userID := e.SenderID()

	switch action := stringOption(data, "action"); action {
	case "set":
		name := stringOption(data, "name")
		err := c.store.Set(e.GuildID, userID, name)
		if errors.Is(err, names.ErrInvalidName) {
			return respondError(c.logger, s, e, fmt.Sprintf("Names must be 1 to %d characters", names.MaxNameLength))
		}
		if err != nil {
			c.logger.Error("Failed to save display name", zap.Error(err), zap.Stringer("user_id", userID))

			return respondError(c.logger, s, e, "Failed to save your name")
		}

		saved, _, _ := c.store.Get(e.GuildID, userID)
		return respondEphemeral(s, e, fmt.Sprintf("✅ You will appear as **%s** in recordings", saved))

	case "get":
		name, ok, err := c.store.Get(e.GuildID, userID)
		if err != nil {
			c.logger.Error("Failed to read display name", zap.Error(err), zap.Stringer("user_id", userID))

			return respondError(c.logger, s, e, "Failed to read your name")
		}
		if !ok {
			return respondEphemeral(s, e, "You have no recording name yet; your user ID is used instead")
		}
		return respondEphemeral(s, e, fmt.Sprintf("You appear as **%s** in recordings", name))

	default:
		return respondError(c.logger, s, e, "Unknown action: "+action)
	}
}
