package commands

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
)

// Command defines the interface for slash commands.
type Command interface {
	Name() string
	Description() string
	Options() []discord.CommandOption
	Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error
}

// stringOption returns the named string option, or "" when absent.
func stringOption(data *discord.CommandInteraction, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name {
			return opt.String()
		}
	}
	return ""
}
