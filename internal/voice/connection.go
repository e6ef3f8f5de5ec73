package voice

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/voice"
	"github.com/diamondburned/arikawa/v3/voice/voicegateway"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
)

// maxReadErrors bounds consecutive ReadPacket failures before the read loop
// gives up on the socket.
const maxReadErrors = 50

// Connection is one joined voice channel feeding a Receiver.
type Connection struct {
	logger  *zap.Logger
	guildID discord.GuildID
	channel discord.ChannelID
	vs      *voice.Session
	rx      *recording.Receiver
	clock   *TickClock

	// decoders is owned by the read loop.
	decoders map[recording.StreamID]*audio.OpusDecoder

	cancel        context.CancelFunc
	wg            sync.WaitGroup
	removeHandler func()
	closeOnce     sync.Once
	closeErr      error
}

func newConnection(logger *zap.Logger, guild discord.GuildID, channel discord.ChannelID, rx *recording.Receiver, depth int) *Connection {
	return &Connection{
		logger:   logger.With(zap.Stringer("guild_id", guild), zap.Stringer("channel_id", channel)),
		guildID:  guild,
		channel:  channel,
		rx:       rx,
		clock:    NewTickClock(depth),
		decoders: make(map[recording.StreamID]*audio.OpusDecoder),
	}
}

// start launches the read and tick loops.
func (c *Connection) start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.removeHandler = c.vs.AddHandler(c.onSpeaking)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.readLoop(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.clock.Run(ctx, c.rx.OnVoiceTick)
	}()
}

func (c *Connection) onSpeaking(ev *voicegateway.SpeakingEvent) {
	var speaker *recording.SpeakerID
	if ev.UserID.IsValid() {
		id := recording.SpeakerID(ev.UserID)
		speaker = &id
	}
	c.rx.OnSpeakingUpdate(recording.StreamID(ev.SSRC), speaker)
}

func (c *Connection) readLoop(ctx context.Context) {
	c.logger.Info("Started receiving audio")
	defer c.logger.Info("Stopped receiving audio")

	failures := 0
	for ctx.Err() == nil {
		packet, err := c.vs.ReadPacket()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			if failures >= maxReadErrors {
				c.logger.Error("Voice socket keeps failing, giving up", zap.Error(err))
				return
			}
			c.logger.Debug("Failed to read voice packet", zap.Error(err))
			continue
		}
		failures = 0

		c.handlePacket(recording.StreamID(packet.SSRC()), packet.Opus)
	}
}

// handlePacket decodes one Opus payload and queues it on the clock.
func (c *Connection) handlePacket(ssrc recording.StreamID, opus []byte) {
	if len(opus) == 0 {
		return
	}

	dec, ok := c.decoders[ssrc]
	if !ok {
		var err error
		dec, err = audio.NewOpusDecoder()
		if err != nil {
			c.logger.Error("Failed to create decoder", zap.Uint32("ssrc", uint32(ssrc)), zap.Error(err))
			return
		}
		c.decoders[ssrc] = dec
	}

	pcm, err := dec.Decode(opus)
	if err != nil {
		c.logger.Debug("Dropping undecodable packet", zap.Uint32("ssrc", uint32(ssrc)), zap.Error(err))
		return
	}

	if !c.clock.Push(ssrc, pcm) {
		c.logger.Debug("Jitter queue full, dropped oldest frame", zap.Uint32("ssrc", uint32(ssrc)))
	}
}

// Close stops ticking, leaves the channel and waits for the loops to exit
// or ctx to expire. It is safe to call more than once.
func (c *Connection) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.removeHandler != nil {
			c.removeHandler()
		}

		if err := c.vs.Leave(ctx); err != nil {
			c.closeErr = err
			c.logger.Warn("Failed to leave voice channel", zap.Error(err))
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			for _, dec := range c.decoders {
				dec.Close()
			}
		case <-ctx.Done():
			c.logger.Warn("Voice loops did not exit in time")
			if c.closeErr == nil {
				c.closeErr = ctx.Err()
			}
		}

		c.logger.Info("Left voice channel", zap.Int("jitter_drops", c.clock.Dropped()))
	})
	return c.closeErr
}
