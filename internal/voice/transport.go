// Package voice joins Discord voice channels and turns the incoming Opus
// packets into the 20 ms tick batches a recording.Receiver consumes.
package voice

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/voice"
	"github.com/diamondburned/arikawa/v3/voice/voicegateway"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/internal/session"
)

// Transport connects recording sessions to Discord voice.
type Transport struct {
	logger *zap.Logger
	state  *state.State
	depth  int
}

var _ session.Transport = (*Transport)(nil)

// NewTransport creates a Transport backed by the bot's gateway state.
func NewTransport(logger *zap.Logger, st *state.State) *Transport {
	return &Transport{
		logger: logger.Named("voice"),
		state:  st,
		depth:  DefaultJitterFrames,
	}
}

// Connect joins channel in guild and starts feeding rx.
func (t *Transport) Connect(ctx context.Context, guild discord.GuildID, channel discord.ChannelID, rx *recording.Receiver) (session.Connection, error) {
	ch, err := t.state.Channel(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel info: %w", err)
	}
	if ch.Type != discord.GuildVoice && ch.Type != discord.GuildStageVoice {
		return nil, fmt.Errorf("channel %s is not a voice channel", channel)
	}
	if ch.GuildID != guild {
		return nil, fmt.Errorf("channel %s does not belong to guild %s", channel, guild)
	}

	vs, err := voice.NewSession(t.state)
	if err != nil {
		return nil, fmt.Errorf("failed to create voice session: %w", err)
	}

	if err := vs.JoinChannel(ctx, channel, false, false); err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	if err := vs.Speaking(ctx, voicegateway.Microphone); err != nil {
		_ = vs.Leave(ctx)
		return nil, fmt.Errorf("failed to set speaking mode: %w", err)
	}

	// arikawa does not finish the UDP handshake until the first write, and
	// ReadPacket blocks forever without it.
	_, _ = vs.Write([]byte{})

	conn := newConnection(t.logger, guild, channel, rx, t.depth)
	conn.vs = vs
	conn.start()

	t.logger.Info("Joined voice channel",
		zap.Stringer("guild_id", guild),
		zap.Stringer("channel_id", channel))

	return conn, nil
}
