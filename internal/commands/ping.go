package commands

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"

	sessions "github.com/Raikerian/go-discord-recorder/internal/session"
)

// PingCommand answers with Pong and how many recordings are running.
type PingCommand struct {
	manager *sessions.Manager
}

// NewPingCommand creates a new PingCommand instance.
func NewPingCommand(manager *sessions.Manager) *PingCommand {
	return &PingCommand{manager: manager}
}

func (c *PingCommand) Name() string {
	return "ping"
}

func (c *PingCommand) Description() string {
	return "Responds with Pong!"
}

func (c *PingCommand) Options() []discord.CommandOption {
	return nil
}

func (c *PingCommand) Execute(_ context.Context, s *session.Session, e *gateway.InteractionCreateEvent, _ *discord.CommandInteraction) error {
	return respond(s, e, pingMessage(len(c.manager.ActiveScopes())))
}

func pingMessage(active int) string {
	switch active {
	case 0:
		return "Pong!"
	case 1:
		return "Pong! 1 recording running."
	default:
		return fmt.Sprintf("Pong! %d recordings running.", active)
	}
}
