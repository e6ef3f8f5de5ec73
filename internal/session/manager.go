package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raikerian/go-discord-recorder/internal/export"
	"github.com/Raikerian/go-discord-recorder/internal/names"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/internal/storage"
)

// Options configures a Manager.
type Options struct {
	RecordingsDir string
	FlushInterval time.Duration
	ChunkTicks    uint64
	// MaxDuration stops a session automatically. Zero disables it.
	MaxDuration time.Duration
	// StopTimeout bounds how long Stop waits for storage to finish.
	StopTimeout time.Duration
}

// AutoStopFunc is told about sessions stopped by the duration limit.
type AutoStopFunc func(scope Scope, report *StopReport, err error)

// Manager owns every session. It is safe for concurrent use.
type Manager struct {
	logger    *zap.Logger
	opts      Options
	exporter  *export.Exporter
	transport Transport
	names     names.Store
	metrics   *observe.Metrics

	mu         sync.Mutex
	sessions   map[Scope]*Session
	onAutoStop AutoStopFunc
}

// NewManager creates a Manager. store may be nil.
func NewManager(logger *zap.Logger, opts Options, exporter *export.Exporter, transport Transport, store names.Store, metrics *observe.Metrics) *Manager {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = observe.NewNopMetrics()
	}
	return &Manager{
		logger:    logger,
		opts:      opts,
		exporter:  exporter,
		transport: transport,
		names:     store,
		metrics:   metrics,
		sessions:  make(map[Scope]*Session),
	}
}

// OnAutoStop registers fn to be called after a session hits MaxDuration.
func (m *Manager) OnAutoStop(fn AutoStopFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAutoStop = fn
}

// Start begins recording channel in scope.
func (m *Manager) Start(ctx context.Context, scope Scope, opts StartOptions) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		Scope:     scope,
		ChannelID: opts.ChannelID,
		StartedBy: opts.StartedBy,
		StartedAt: time.Now().UTC(),
		state:     recording.NewState(),
	}
	s.Dir = filepath.Join(m.opts.RecordingsDir, s.ID)

	m.mu.Lock()
	if _, ok := m.sessions[scope]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyActive
	}
	// Reserve the scope while storage and voice come up.
	m.sessions[scope] = s
	m.mu.Unlock()

	logger := m.logger.With(
		zap.String("session_id", s.ID),
		zap.Uint64("guild_id", uint64(scope)),
		zap.Uint64("channel_id", uint64(opts.ChannelID)))

	release := func() {
		m.mu.Lock()
		delete(m.sessions, scope)
		m.mu.Unlock()
	}

	// The writer outlives the request that started it and stops only via
	// Shutdown.
	handle, err := storage.Start(context.WithoutCancel(ctx), storage.WriterParams{
		SessionDir:    s.Dir,
		FlushInterval: m.opts.FlushInterval,
		ChunkTicks:    m.opts.ChunkTicks,
		Logger:        logger.Named("storage"),
		Metrics:       m.metrics,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("start storage: %w", err)
	}
	s.handle = handle

	abort := func(cause error) (*Session, error) {
		_, _ = s.state.BeginStop()
		handle.Shutdown()
		<-handle.Done()
		s.state.Finish()
		if err := os.RemoveAll(s.Dir); err != nil {
			logger.Warn("Failed to remove aborted session directory", zap.Error(err))
		}
		release()
		return nil, cause
	}

	if err := storage.WriteJSONAtomic(filepath.Join(s.Dir, MetadataFile), s.metadata()); err != nil {
		return abort(fmt.Errorf("write session metadata: %w", err))
	}
	if err := s.state.Begin(handle); err != nil {
		return abort(err)
	}

	rx := recording.NewReceiver(logger.Named("receiver"), s.state, m.metrics)
	conn, err := m.transport.Connect(ctx, scope, opts.ChannelID, rx)
	if err != nil {
		return abort(fmt.Errorf("join voice channel: %w", err))
	}

	m.mu.Lock()
	s.conn = conn
	if m.opts.MaxDuration > 0 {
		id := s.ID
		s.autoStop = time.AfterFunc(m.opts.MaxDuration, func() { m.autoStop(scope, id) })
	}
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(ctx, 1)
	logger.Info("Recording session started",
		zap.String("dir", s.Dir),
		zap.Uint64("started_by", uint64(opts.StartedBy)))

	return s, nil
}

// Stop ends the scope's session, waits for storage to finish and exports
// the result. An export failure is reported in the StopReport, not as an
// error.
func (m *Manager) Stop(ctx context.Context, scope Scope) (*StopReport, error) {
	return m.stop(ctx, scope, "")
}

func (m *Manager) stop(ctx context.Context, scope Scope, onlyID string) (*StopReport, error) {
	m.mu.Lock()
	s, ok := m.sessions[scope]
	// A session without a connection is still starting.
	if !ok || s.stopping || s.conn == nil || (onlyID != "" && s.ID != onlyID) {
		m.mu.Unlock()
		return nil, ErrNotActive
	}
	snap, err := s.state.BeginStop()
	if err != nil {
		m.mu.Unlock()
		return nil, ErrNotActive
	}
	s.stopping = true
	if s.autoStop != nil {
		s.autoStop.Stop()
	}
	conn := s.conn
	m.mu.Unlock()

	defer func() {
		s.state.Finish()
		m.mu.Lock()
		delete(m.sessions, scope)
		m.mu.Unlock()
	}()

	logger := m.logger.With(zap.String("session_id", s.ID), zap.Uint64("guild_id", uint64(scope)))
	m.metrics.ActiveSessions.Add(ctx, -1)

	if err := conn.Close(ctx); err != nil {
		logger.Warn("Failed to leave voice channel cleanly", zap.Error(err))
	}

	report := &StopReport{
		SessionID:    s.ID,
		Scope:        scope,
		Dir:          s.Dir,
		Duration:     time.Since(s.StartedAt),
		Ticks:        snap.Ticks,
		SpeakerCount: len(snap.Identities.Speakers()),
	}

	s.handle.Shutdown()
	waitCtx, cancel := context.WithTimeout(ctx, m.opts.StopTimeout)
	err = s.handle.Wait(waitCtx)
	cancel()
	if err != nil {
		report.StorageErr = err
		logger.Error("Storage did not finish cleanly", zap.Error(err))
	}

	stoppedAt := time.Now().UTC()
	md := s.metadata()
	md.StoppedAt = &stoppedAt
	md.Ticks = snap.Ticks
	if err := storage.WriteJSONAtomic(filepath.Join(s.Dir, MetadataFile), md); err != nil {
		logger.Warn("Failed to update session metadata", zap.Error(err))
	}

	if streams, err := storage.ListStreams(s.Dir); err == nil {
		report.StreamCount = len(streams)
	}

	select {
	case <-s.handle.Done():
		report.Export, report.ExportErr = m.exporter.Export(ctx, s.Dir, m.exportOptions(scope)...)
	default:
		report.ExportErr = fmt.Errorf("export skipped: %w", report.StorageErr)
	}

	switch {
	case report.ExportErr == nil:
	case errors.Is(report.ExportErr, export.ErrNoAudio):
		logger.Warn("Session captured no audio")
	default:
		logger.Error("Session export failed", zap.Error(report.ExportErr))
	}

	logger.Info("Recording session stopped",
		zap.Duration("duration", report.Duration),
		zap.Uint64("ticks", report.Ticks),
		zap.Int("speakers", report.SpeakerCount),
		zap.Int("streams", report.StreamCount))

	return report, nil
}

func (m *Manager) autoStop(scope Scope, id string) {
	m.logger.Info("Session reached maximum duration",
		zap.String("session_id", id),
		zap.Duration("max_duration", m.opts.MaxDuration))

	report, err := m.stop(context.Background(), scope, id)
	if errors.Is(err, ErrNotActive) {
		return
	}

	m.mu.Lock()
	fn := m.onAutoStop
	m.mu.Unlock()
	if fn != nil {
		fn(scope, report, err)
	}
}

// Status reports on the scope's session.
func (m *Manager) Status(scope Scope) (Status, bool) {
	m.mu.Lock()
	s, ok := m.sessions[scope]
	m.mu.Unlock()
	if !ok {
		return Status{}, false
	}

	ids := s.state.Identities()
	return Status{
		SessionID: s.ID,
		Scope:     s.Scope,
		ChannelID: s.ChannelID,
		StartedBy: s.StartedBy,
		StartedAt: s.StartedAt,
		Elapsed:   time.Since(s.StartedAt),
		Lifecycle: s.state.Lifecycle(),
		Ticks:     s.state.Ticks(),
		Streams:   len(ids),
		Speakers:  len(ids.Speakers()),
	}, true
}

// ActiveScopes lists scopes with a session, in ascending order.
func (m *Manager) ActiveScopes() []Scope {
	m.mu.Lock()
	defer m.mu.Unlock()

	scopes := make([]Scope, 0, len(m.sessions))
	for scope := range m.sessions {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes
}

// StopAll stops every session concurrently. Scopes that were not active by
// the time they were reached are skipped.
func (m *Manager) StopAll(ctx context.Context) (map[Scope]*StopReport, error) {
	scopes := m.ActiveScopes()

	var mu sync.Mutex
	reports := make(map[Scope]*StopReport, len(scopes))

	var g errgroup.Group
	for _, scope := range scopes {
		g.Go(func() error {
			report, err := m.Stop(ctx, scope)
			if errors.Is(err, ErrNotActive) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("stop guild %d: %w", scope, err)
			}
			mu.Lock()
			reports[scope] = report
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	if len(scopes) > 0 {
		m.logger.Info("Stopped all sessions", zap.Int("count", len(reports)))
	}
	return reports, err
}

// Lookup resolves the directory of a finished session recorded in scope.
// Malformed IDs, sessions of another scope and sessions that never stopped
// all yield ErrUnknownSession.
func (m *Manager) Lookup(scope Scope, id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	dir := filepath.Join(m.opts.RecordingsDir, parsed.String())
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, parsed)
	}
	if err != nil {
		return "", fmt.Errorf("read session metadata: %w", err)
	}

	var md metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return "", fmt.Errorf("decode session metadata: %w", err)
	}
	if Scope(md.GuildID) != scope || md.StoppedAt == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, parsed)
	}
	return dir, nil
}

// Reexport rebuilds the export of a finished session from its stored
// chunks. It recovers sessions whose export failed or was skipped at stop.
func (m *Manager) Reexport(ctx context.Context, scope Scope, id string) (*export.Result, error) {
	dir, err := m.Lookup(scope, id)
	if err != nil {
		return nil, err
	}

	logger := m.logger.With(zap.String("session_id", id), zap.Uint64("guild_id", uint64(scope)))
	res, err := m.exporter.Export(ctx, dir, m.exportOptions(scope)...)
	if err != nil {
		logger.Warn("Session re-export failed", zap.Error(err))
		return nil, err
	}

	logger.Info("Session re-exported",
		zap.Int("speakers", len(res.Speakers)),
		zap.Int("chunks", len(res.Chunks)))
	return res, nil
}

func (m *Manager) exportOptions(scope Scope) []export.ExportOption {
	if m.names == nil {
		return nil
	}
	return []export.ExportOption{export.WithNames(names.ForGuild(m.names, scope))}
}
