package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/config"
	"github.com/Raikerian/go-discord-recorder/internal/export"
	sessions "github.com/Raikerian/go-discord-recorder/internal/session"
	"github.com/Raikerian/go-discord-recorder/internal/transcribe"
)

// transcribeTimeout bounds a background transcription started after stop.
const transcribeTimeout = 30 * time.Minute

// RecordCommand starts, stops and reports on the guild's recording.
type RecordCommand struct {
	logger      *zap.Logger
	cfg         *config.Config
	manager     *sessions.Manager
	state       *state.State
	transcriber *transcribe.Service

	mu sync.Mutex
	// notify is the text channel each guild's recording was started from.
	notify map[discord.GuildID]discord.ChannelID
}

// RecordCommandParams holds dependencies for NewRecordCommand.
type RecordCommandParams struct {
	fx.In

	Cfg         *config.Config
	Logger      *zap.Logger
	Manager     *sessions.Manager
	State       *state.State
	Transcriber *transcribe.Service
}

// NewRecordCommand creates the /record command and subscribes it to
// auto-stops so they are announced where the recording was started.
func NewRecordCommand(p RecordCommandParams) *RecordCommand {
	c := &RecordCommand{
		logger:      p.Logger.Named("record"),
		cfg:         p.Cfg,
		manager:     p.Manager,
		state:       p.State,
		transcriber: p.Transcriber,
		notify:      make(map[discord.GuildID]discord.ChannelID),
	}
	p.Manager.OnAutoStop(c.handleAutoStop)

	return c
}

func (c *RecordCommand) Name() string {
	return "record"
}

func (c *RecordCommand) Description() string {
	return "Record everyone in your voice channel"
}

func (c *RecordCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "action",
			Description: "What to do with the recording",
			Required:    true,
			Choices: []discord.StringChoice{
				{Name: "Start", Value: "start"},
				{Name: "Stop", Value: "stop"},
				{Name: "Status", Value: "status"},
				{Name: "Reconstruct", Value: "reconstruct"},
			},
		},
		&discord.StringOption{
			OptionName:  "session",
			Description: "Session ID to reconstruct",
			Required:    false,
		},
	}
}

func (c *RecordCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if !e.GuildID.IsValid() {
		return respondError(c.logger, s, e, "Recording only works inside a server")
	}

	switch action := stringOption(data, "action"); action {
	case "start":
		return c.handleStart(ctx, s, e)
	case "stop":
		return c.handleStop(ctx, s, e)
	case "status":
		return c.handleStatus(s, e)
	case "reconstruct":
		return c.handleReconstruct(ctx, s, e, strings.TrimSpace(stringOption(data, "session")))
	default:
		return respondError(c.logger, s, e, "Unknown action: "+action)
	}
}

func (c *RecordCommand) handleStart(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent) error {
	userID := e.SenderID()

	voiceChannelID, err := userVoiceChannel(c.logger, c.state, e.GuildID, userID)
	if err != nil {
		return respondError(c.logger, s, e, "You need to be in a voice channel to start a recording")
	}

	// Joining voice can take longer than the interaction window.
	if err := deferResponse(s, e); err != nil {
		return err
	}

	rec, err := c.manager.Start(ctx, e.GuildID, sessions.StartOptions{
		ChannelID: voiceChannelID,
		StartedBy: userID,
	})
	switch {
	case errors.Is(err, sessions.ErrAlreadyActive):
		return editResponse(c.logger, s, e, "❌ A recording is already running in this server")
	case err != nil:
		c.logger.Error("Failed to start recording",
			zap.Error(err),
			zap.Stringer("guild_id", e.GuildID),
			zap.Stringer("user_id", userID))

		return editResponse(c.logger, s, e, "❌ Failed to start recording: "+err.Error())
	}

	c.mu.Lock()
	c.notify[e.GuildID] = e.ChannelID
	c.mu.Unlock()

	return editResponse(c.logger, s, e, formatStarted(rec))
}

func (c *RecordCommand) handleStop(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent) error {
	if _, ok := c.manager.Status(e.GuildID); !ok {
		return respondError(c.logger, s, e, "No recording is running in this server")
	}

	// Stopping flushes storage and exports, which takes a while.
	if err := deferResponse(s, e); err != nil {
		return err
	}

	report, err := c.manager.Stop(ctx, e.GuildID)
	switch {
	case errors.Is(err, sessions.ErrNotActive):
		return editResponse(c.logger, s, e, "❌ No recording is running in this server")
	case err != nil:
		c.logger.Error("Failed to stop recording", zap.Error(err), zap.Stringer("guild_id", e.GuildID))

		return editResponse(c.logger, s, e, "❌ Failed to stop recording: "+err.Error())
	}

	c.mu.Lock()
	delete(c.notify, e.GuildID)
	c.mu.Unlock()

	if err := editResponse(c.logger, s, e, formatStopReport("⏹️ Recording stopped", report)); err != nil {
		return err
	}

	c.maybeTranscribe(report, e.ChannelID)

	return nil
}

func (c *RecordCommand) handleStatus(s *session.Session, e *gateway.InteractionCreateEvent) error {
	status, ok := c.manager.Status(e.GuildID)
	if !ok {
		return respond(s, e, "No recording is running in this server")
	}

	return respond(s, e, formatStatus(status))
}

// handleReconstruct rebuilds the export of a finished session from its
// stored audio.
func (c *RecordCommand) handleReconstruct(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, id string) error {
	if id == "" {
		return respondError(c.logger, s, e, "Give the session ID to reconstruct")
	}
	if _, err := c.manager.Lookup(e.GuildID, id); err != nil {
		if errors.Is(err, sessions.ErrUnknownSession) {
			return respondError(c.logger, s, e, "No finished recording with that ID in this server")
		}
		c.logger.Error("Failed to look up session", zap.Error(err), zap.String("session_id", id))

		return respondError(c.logger, s, e, "Failed to look up that recording")
	}

	if err := deferResponse(s, e); err != nil {
		return err
	}

	res, err := c.manager.Reexport(ctx, e.GuildID, id)
	switch {
	case errors.Is(err, export.ErrNoAudio):
		return editResponse(c.logger, s, e, "🔇 That recording has no audio to reconstruct")
	case err != nil:
		c.logger.Error("Failed to reconstruct recording", zap.Error(err), zap.String("session_id", id))

		return editResponse(c.logger, s, e, "❌ Failed to reconstruct recording: "+err.Error())
	}

	return editResponse(c.logger, s, e, formatReexport(id, res))
}

// handleAutoStop announces a session stopped by the duration limit.
func (c *RecordCommand) handleAutoStop(scope sessions.Scope, report *sessions.StopReport, err error) {
	c.mu.Lock()
	channelID, ok := c.notify[scope]
	delete(c.notify, scope)
	c.mu.Unlock()

	if !ok {
		return
	}

	var msg string
	if err != nil {
		msg = "⚠️ Recording hit the time limit but failed to stop: " + err.Error()
	} else {
		msg = formatStopReport("⏹️ Recording reached the time limit and was stopped", report)
	}

	if _, sendErr := c.state.SendMessage(channelID, msg); sendErr != nil {
		c.logger.Error("Failed to announce auto-stop", zap.Error(sendErr), zap.Stringer("channel_id", channelID))
	}

	if err == nil {
		c.maybeTranscribe(report, channelID)
	}
}

// maybeTranscribe runs transcription in the background when configured and
// posts the outcome to channelID.
func (c *RecordCommand) maybeTranscribe(report *sessions.StopReport, channelID discord.ChannelID) {
	if !c.cfg.Transcription.AutoAfterStop || !c.transcriber.Enabled() || report.Export == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), transcribeTimeout)
		defer cancel()

		var msg string
		res, err := c.transcriber.TranscribeSession(ctx, report.Dir)
		if err != nil {
			c.logger.Error("Automatic transcription failed", zap.Error(err), zap.String("session_id", report.SessionID))
			msg = "❌ Transcription of `" + report.SessionID + "` failed: " + err.Error()
		} else {
			msg = formatTranscript(report.SessionID, res)
		}

		if _, err := c.state.SendMessage(channelID, msg); err != nil {
			c.logger.Error("Failed to post transcription result", zap.Error(err))
		}
	}()
}
