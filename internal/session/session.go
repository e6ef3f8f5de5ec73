// Package session runs recording sessions: one per guild, from joining the
// voice channel through storage shutdown to the export of what was captured.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"

	"github.com/Raikerian/go-discord-recorder/internal/export"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/internal/storage"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
)

var (
	// ErrAlreadyActive is returned by Start when the scope is recording or
	// still stopping.
	ErrAlreadyActive = errors.New("a recording session is already active")
	// ErrNotActive is returned by Stop when the scope is not recording.
	ErrNotActive = errors.New("no active recording session")
	// ErrUnknownSession is returned by Lookup for an ID that names no
	// finished session of the scope.
	ErrUnknownSession = errors.New("unknown recording session")
)

// MetadataFile is the per-session metadata document.
const MetadataFile = "session.json"

// Scope identifies where a session records. A bot joins at most one voice
// channel per guild, so the guild is the scope.
type Scope = discord.GuildID

// Connection is a live voice connection feeding a receiver.
type Connection interface {
	Close(ctx context.Context) error
}

// Transport joins voice channels.
type Transport interface {
	// Connect joins channel and delivers speaking updates and voice ticks to
	// rx until the connection is closed.
	Connect(ctx context.Context, guild discord.GuildID, channel discord.ChannelID, rx *recording.Receiver) (Connection, error)
}

// StartOptions describe a new session.
type StartOptions struct {
	ChannelID discord.ChannelID
	StartedBy discord.UserID
}

// Session is one running capture.
type Session struct {
	ID        string
	Scope     Scope
	ChannelID discord.ChannelID
	StartedBy discord.UserID
	StartedAt time.Time
	Dir       string

	state    *recording.State
	handle   *storage.Handle
	conn     Connection
	autoStop *time.Timer
	stopping bool
}

// Status is a point-in-time view of a session.
type Status struct {
	SessionID string
	Scope     Scope
	ChannelID discord.ChannelID
	StartedBy discord.UserID
	StartedAt time.Time
	Elapsed   time.Duration
	Lifecycle recording.Lifecycle
	Ticks     uint64
	Streams   int
	Speakers  int
}

// StopReport summarizes a finished session. ExportErr carries an export
// failure; the session itself still stopped cleanly.
type StopReport struct {
	SessionID    string
	Scope        Scope
	Dir          string
	Duration     time.Duration
	Ticks        uint64
	SpeakerCount int
	StreamCount  int
	StorageErr   error
	Export       *export.Result
	ExportErr    error
}

// CapturedDuration is the timeline length covered by claimed ticks.
func (r *StopReport) CapturedDuration() time.Duration {
	return time.Duration(r.Ticks) * audio.TickDuration
}

// metadata is the content of session.json.
type metadata struct {
	ID        string     `json:"id"`
	GuildID   uint64     `json:"guild_id"`
	ChannelID uint64     `json:"channel_id"`
	StartedBy uint64     `json:"started_by"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Ticks     uint64     `json:"ticks,omitempty"`
}

func (s *Session) metadata() metadata {
	return metadata{
		ID:        s.ID,
		GuildID:   uint64(s.Scope),
		ChannelID: uint64(s.ChannelID),
		StartedBy: uint64(s.StartedBy),
		StartedAt: s.StartedAt,
	}
}
