package commands

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/export"
	sessions "github.com/Raikerian/go-discord-recorder/internal/session"
	"github.com/Raikerian/go-discord-recorder/internal/transcribe"
)

// TranscribeCommand transcribes a finished recording on demand.
type TranscribeCommand struct {
	logger      *zap.Logger
	manager     *sessions.Manager
	transcriber *transcribe.Service
}

// NewTranscribeCommand creates the /transcribe command.
func NewTranscribeCommand(logger *zap.Logger, manager *sessions.Manager, transcriber *transcribe.Service) *TranscribeCommand {
	return &TranscribeCommand{
		logger:      logger.Named("transcribe"),
		manager:     manager,
		transcriber: transcriber,
	}
}

func (c *TranscribeCommand) Name() string {
	return "transcribe"
}

func (c *TranscribeCommand) Description() string {
	return "Transcribe a finished recording"
}

func (c *TranscribeCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "session",
			Description: "Session ID shown when the recording stopped",
			Required:    true,
		},
	}
}

func (c *TranscribeCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if !c.transcriber.Enabled() {
		return respondError(c.logger, s, e, "Transcription is not enabled on this bot")
	}
	if !e.GuildID.IsValid() {
		return respondError(c.logger, s, e, "Transcription only works inside a server")
	}

	id := strings.TrimSpace(stringOption(data, "session"))
	dir, err := c.manager.Lookup(e.GuildID, id)
	if errors.Is(err, sessions.ErrUnknownSession) {
		return respondError(c.logger, s, e, "No finished recording with that ID in this server")
	}
	if err != nil {
		c.logger.Error("Failed to look up session", zap.Error(err), zap.String("session_id", id))

		return respondError(c.logger, s, e, "Failed to look up that recording")
	}

	if err := deferResponse(s, e); err != nil {
		return err
	}

	res, err := c.transcriber.TranscribeSession(ctx, dir)
	if errors.Is(err, os.ErrNotExist) {
		// No export on disk; rebuild it from the stored audio first.
		c.logger.Info("Session has no export, reconstructing", zap.String("session_id", id))
		if _, err = c.manager.Reexport(ctx, e.GuildID, id); err == nil {
			res, err = c.transcriber.TranscribeSession(ctx, dir)
		}
	}
	switch {
	case errors.Is(err, transcribe.ErrNoChunks), errors.Is(err, export.ErrNoAudio):
		return editResponse(c.logger, s, e, "🔇 That recording has no speech to transcribe")
	case err != nil:
		c.logger.Error("Transcription failed", zap.Error(err), zap.String("session_id", id))

		return editResponse(c.logger, s, e, "❌ Transcription failed: "+err.Error())
	}

	return editResponse(c.logger, s, e, formatTranscript(id, res))
}
