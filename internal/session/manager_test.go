package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-recorder/internal/export"
	"github.com/Raikerian/go-discord-recorder/internal/names"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/internal/session"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
)

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeTransport struct {
	mu        sync.Mutex
	err       error
	receivers map[discord.GuildID]*recording.Receiver
	conns     map[discord.GuildID]*fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		receivers: make(map[discord.GuildID]*recording.Receiver),
		conns:     make(map[discord.GuildID]*fakeConn),
	}
}

func (f *fakeTransport) Connect(_ context.Context, guild discord.GuildID, _ discord.ChannelID, rx *recording.Receiver) (session.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	conn := &fakeConn{}
	f.receivers[guild] = rx
	f.conns[guild] = conn
	return conn, nil
}

func (f *fakeTransport) receiver(guild discord.GuildID) *recording.Receiver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receivers[guild]
}

func (f *fakeTransport) conn(guild discord.GuildID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[guild]
}

func newManager(t *testing.T, opts session.Options) (*session.Manager, *fakeTransport, *names.FileStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if opts.RecordingsDir == "" {
		opts.RecordingsDir = t.TempDir()
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = time.Hour
	}

	store, err := names.NewFileStore(filepath.Join(t.TempDir(), "names.yaml"), 16)
	require.NoError(t, err)

	transport := newFakeTransport()
	exporter := export.NewExporter(logger, export.DefaultOptions(), observe.NewNopMetrics())
	return session.NewManager(logger, opts, exporter, transport, store, observe.NewNopMetrics()), transport, store
}

func speak(rx *recording.Receiver, stream recording.StreamID, speaker recording.SpeakerID, ticks int) {
	rx.OnSpeakingUpdate(stream, &speaker)
	pcm := make([]int16, audio.MonoFrameSamples)
	for i := range pcm {
		pcm[i] = 6000
	}
	for range ticks {
		rx.OnVoiceTick(map[recording.StreamID][]int16{stream: pcm})
	}
}

func TestManager_StartStop(t *testing.T) {
	m, transport, store := newManager(t, session.Options{})
	ctx := context.Background()
	const guild = discord.GuildID(42)
	require.NoError(t, store.Set(guild, 100, "Alice"))

	s, err := m.Start(ctx, guild, session.StartOptions{ChannelID: 7, StartedBy: 100})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.DirExists(t, s.Dir)

	_, err = m.Start(ctx, guild, session.StartOptions{ChannelID: 7})
	assert.ErrorIs(t, err, session.ErrAlreadyActive)

	speak(transport.receiver(guild), 1, 100, 40)

	st, ok := m.Status(guild)
	require.True(t, ok)
	assert.Equal(t, s.ID, st.SessionID)
	assert.Equal(t, recording.Active, st.Lifecycle)
	assert.Equal(t, uint64(40), st.Ticks)
	assert.Equal(t, 1, st.Speakers)
	assert.Equal(t, []session.Scope{guild}, m.ActiveScopes())

	report, err := m.Stop(ctx, guild)
	require.NoError(t, err)
	assert.Equal(t, s.ID, report.SessionID)
	assert.Equal(t, uint64(40), report.Ticks)
	assert.Equal(t, 800*time.Millisecond, report.CapturedDuration())
	assert.Equal(t, 1, report.SpeakerCount)
	assert.Equal(t, 1, report.StreamCount)
	assert.NoError(t, report.StorageErr)
	require.NoError(t, report.ExportErr)
	require.NotNil(t, report.Export)
	require.Len(t, report.Export.Speakers, 1)
	assert.Equal(t, "Alice", report.Export.Speakers[0].DisplayName)
	assert.True(t, transport.conn(guild).isClosed())

	_, ok = m.Status(guild)
	assert.False(t, ok)
	assert.Empty(t, m.ActiveScopes())

	_, err = m.Stop(ctx, guild)
	assert.ErrorIs(t, err, session.ErrNotActive)

	raw, err := os.ReadFile(filepath.Join(s.Dir, session.MetadataFile))
	require.NoError(t, err)
	var md map[string]any
	require.NoError(t, json.Unmarshal(raw, &md))
	assert.Equal(t, s.ID, md["id"])
	assert.Contains(t, md, "stopped_at")

	// The scope is free again.
	s2, err := m.Start(ctx, guild, session.StartOptions{ChannelID: 7})
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, s2.ID)
	_, err = m.Stop(ctx, guild)
	require.NoError(t, err)
}

func TestManager_StopWithoutAudio(t *testing.T) {
	m, _, _ := newManager(t, session.Options{})
	ctx := context.Background()

	_, err := m.Start(ctx, 1, session.StartOptions{ChannelID: 2})
	require.NoError(t, err)

	report, err := m.Stop(ctx, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, report.ExportErr, export.ErrNoAudio)
	assert.Nil(t, report.Export)
	assert.Zero(t, report.Ticks)
}

func TestManager_ConnectFailureReleasesScope(t *testing.T) {
	dir := t.TempDir()
	m, transport, _ := newManager(t, session.Options{RecordingsDir: dir})
	transport.err = errors.New("no permission")

	_, err := m.Start(context.Background(), 5, session.StartOptions{ChannelID: 6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no permission")

	assert.Empty(t, m.ActiveScopes())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "aborted session directory must be removed")

	transport.err = nil
	_, err = m.Start(context.Background(), 5, session.StartOptions{ChannelID: 6})
	require.NoError(t, err)
	_, err = m.Stop(context.Background(), 5)
	require.NoError(t, err)
}

func TestManager_AutoStop(t *testing.T) {
	m, transport, _ := newManager(t, session.Options{MaxDuration: 300 * time.Millisecond})

	type stopped struct {
		scope  session.Scope
		report *session.StopReport
		err    error
	}
	got := make(chan stopped, 1)
	m.OnAutoStop(func(scope session.Scope, report *session.StopReport, err error) {
		got <- stopped{scope, report, err}
	})

	_, err := m.Start(context.Background(), 9, session.StartOptions{ChannelID: 1})
	require.NoError(t, err)
	speak(transport.receiver(9), 3, 300, 30)

	select {
	case s := <-got:
		require.NoError(t, s.err)
		assert.Equal(t, session.Scope(9), s.scope)
		assert.Equal(t, uint64(30), s.report.Ticks)
		assert.NoError(t, s.report.ExportErr)
	case <-time.After(5 * time.Second):
		t.Fatal("session was not stopped automatically")
	}
	assert.Empty(t, m.ActiveScopes())
}

func TestManager_StopAll(t *testing.T) {
	m, transport, _ := newManager(t, session.Options{})
	ctx := context.Background()

	for _, guild := range []discord.GuildID{1, 2, 3} {
		_, err := m.Start(ctx, guild, session.StartOptions{ChannelID: 10})
		require.NoError(t, err)
		speak(transport.receiver(guild), recording.StreamID(guild), recording.SpeakerID(guild*100), 30)
	}

	reports, err := m.StopAll(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 3)
	for guild, r := range reports {
		assert.Equal(t, guild, r.Scope)
		assert.NoError(t, r.ExportErr)
	}
	assert.Empty(t, m.ActiveScopes())

	reports, err = m.StopAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestManager_Lookup(t *testing.T) {
	m, transport, _ := newManager(t, session.Options{})
	ctx := context.Background()
	const guild = discord.GuildID(42)

	s, err := m.Start(ctx, guild, session.StartOptions{ChannelID: 7, StartedBy: 100})
	require.NoError(t, err)

	_, err = m.Lookup(guild, s.ID)
	require.ErrorIs(t, err, session.ErrUnknownSession, "a running session is not finished")

	speak(transport.receiver(guild), 1, 100, 60)
	_, err = m.Stop(ctx, guild)
	require.NoError(t, err)

	tests := map[string]struct {
		scope   session.Scope
		id      string
		wantErr bool
	}{
		"finished session": {scope: guild, id: s.ID},
		"other guild":      {scope: 43, id: s.ID, wantErr: true},
		"malformed id":     {scope: guild, id: "../etc", wantErr: true},
		"unknown id":       {scope: guild, id: "6f1c2a4e-0000-4000-8000-000000000000", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir, err := m.Lookup(tt.scope, tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, session.ErrUnknownSession)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, s.Dir, dir)
		})
	}
}

func TestManager_Reexport(t *testing.T) {
	m, transport, store := newManager(t, session.Options{})
	ctx := context.Background()
	const guild = discord.GuildID(42)

	s, err := m.Start(ctx, guild, session.StartOptions{ChannelID: 7, StartedBy: 100})
	require.NoError(t, err)
	speak(transport.receiver(guild), 1, 100, 60)
	report, err := m.Stop(ctx, guild)
	require.NoError(t, err)
	require.NoError(t, report.ExportErr)

	// Lose the export, as if it had failed at stop.
	require.NoError(t, os.RemoveAll(filepath.Join(s.Dir, export.Dir)))
	_, err = export.LoadManifest(s.Dir)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, store.Set(guild, 100, "Alice"))
	res, err := m.Reexport(ctx, guild, s.ID)
	require.NoError(t, err)
	require.Len(t, res.Speakers, 1)
	assert.Equal(t, "Alice", res.Speakers[0].DisplayName)

	manifest, err := export.LoadManifest(s.Dir)
	require.NoError(t, err)
	assert.Equal(t, res.Chunks, manifest.Chunks)

	tests := map[string]struct {
		scope session.Scope
		id    string
	}{
		"other guild":  {scope: 43, id: s.ID},
		"malformed id": {scope: guild, id: "nope"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.Reexport(ctx, tt.scope, tt.id)
			assert.ErrorIs(t, err, session.ErrUnknownSession)
		})
	}
}
