// Package export turns a stopped session's stream files into listenable and
// transcribable audio: one WAV per speaker, a mixed WAV, and bounded
// 16 kHz chunks described by a manifest.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/internal/segment"
	"github.com/Raikerian/go-discord-recorder/internal/storage"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

// ErrNoAudio is returned when a session holds no frames at all.
var ErrNoAudio = errors.New("export: session contains no audio")

// chunkTrimWindow is one tick at the chunk sample rate.
const chunkTrimWindow = audio.TranscriptionSampleRate / 50

var tracer = otel.Tracer("github.com/Raikerian/go-discord-recorder/internal/export")

// NameResolver maps a speaker to a human readable name.
type NameResolver interface {
	DisplayName(speaker recording.SpeakerID) (string, bool)
}

// Options controls an export.
type Options struct {
	Segmentation     segment.Config
	Concurrency      int
	SilenceThreshold float64
	WriteMixed       bool
	WriteChunks      bool
}

// DefaultOptions exports everything with default segmentation.
func DefaultOptions() Options {
	return Options{
		Segmentation:     segment.DefaultConfig(),
		Concurrency:      4,
		SilenceThreshold: audio.DefaultSilenceThreshold,
		WriteMixed:       true,
		WriteChunks:      true,
	}
}

// Result is the outcome of a successful export.
type Result struct {
	Manifest
	// Dir is the export directory.
	Dir string
	// ManifestPath is where the manifest was written.
	ManifestPath string
}

// Exporter exports stopped sessions. It is safe for concurrent use.
type Exporter struct {
	logger  *zap.Logger
	opts    Options
	metrics *observe.Metrics
}

// NewExporter creates an Exporter.
func NewExporter(logger *zap.Logger, opts Options, metrics *observe.Metrics) *Exporter {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if metrics == nil {
		metrics = observe.NewNopMetrics()
	}
	return &Exporter{
		logger:  logger,
		opts:    opts,
		metrics: metrics,
	}
}

type exportConfig struct {
	names NameResolver
}

// ExportOption customises a single export.
type ExportOption func(*exportConfig)

// WithNames resolves display names for the manifest.
func WithNames(names NameResolver) ExportOption {
	return func(c *exportConfig) { c.names = names }
}

// trackPlan is one output track: a speaker with all their streams, or one
// stream nobody could be attributed to.
type trackPlan struct {
	name    string
	speaker recording.SpeakerID
	mapped  bool
	streams []recording.StreamID
	files   map[recording.StreamID][]string
}

// track is an exported track.
type track struct {
	plan     trackPlan
	frames   int
	first    uint64
	last     uint64
	pcm      []int16
	silent   bool
	chunks   []ChunkEntry
	warnings []string
}

// Export reads the session at sessionDir and writes its export directory,
// replacing any earlier one. It returns ErrNoAudio when the session holds
// no frames.
func (e *Exporter) Export(ctx context.Context, sessionDir string, opts ...ExportOption) (_ *Result, err error) {
	var ec exportConfig
	for _, opt := range opts {
		opt(&ec)
	}

	ctx, span := tracer.Start(ctx, "export.Session",
		trace.WithAttributes(attribute.String("session_dir", sessionDir)))
	start := time.Now()
	defer func() {
		e.metrics.ExportDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil && !errors.Is(err, ErrNoAudio) {
			e.metrics.ExportFailures.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := e.logger.With(zap.String("session_dir", sessionDir))
	var warnings []string

	identities, err := storage.LoadIdentitySnapshot(sessionDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("No identity snapshot, exporting every stream unattributed")
		warnings = append(warnings, "identity snapshot missing; streams exported unattributed")
		identities = recording.IdentityMap{}
	case err != nil:
		return nil, fmt.Errorf("load identities: %w", err)
	}

	streams, err := storage.ListStreams(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}

	plans := planTracks(identities, streams)
	if len(plans) == 0 {
		return nil, ErrNoAudio
	}
	span.SetAttributes(attribute.Int("tracks", len(plans)))

	// A previous export of the session is replaced, never merged.
	outDir := filepath.Join(sessionDir, Dir)
	if err := os.RemoveAll(outDir); err != nil {
		return nil, fmt.Errorf("clear export directory: %w", err)
	}
	for _, dir := range []string{filepath.Join(outDir, SpeakersDir), filepath.Join(outDir, ChunksDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	tracks := make([]*track, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, plan := range plans {
		g.Go(func() error {
			t, err := e.exportTrack(gctx, logger, outDir, plan)
			if err != nil {
				return fmt.Errorf("track %s: %w", plan.name, err)
			}
			tracks[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest := Manifest{
		Version:    ManifestVersion,
		SessionDir: sessionDir,
		CreatedAt:  time.Now().UTC(),
		SampleRate: audio.DiscordSampleRate,
		ChunkRate:  audio.TranscriptionSampleRate,
		Speakers:   []SpeakerEntry{},
		Chunks:     []ChunkEntry{},
		Warnings:   warnings,
	}

	var exported []*track
	for _, t := range tracks {
		manifest.Warnings = append(manifest.Warnings, t.warnings...)
		if t.frames == 0 {
			continue
		}
		if len(exported) == 0 || t.first < manifest.FirstTick {
			manifest.FirstTick = t.first
		}
		manifest.LastTick = max(manifest.LastTick, t.last)
		exported = append(exported, t)
	}
	if len(exported) == 0 {
		return nil, ErrNoAudio
	}

	for _, t := range exported {
		entry := SpeakerEntry{
			Name:      t.plan.name,
			FirstTick: t.first,
			LastTick:  t.last,
			Frames:    t.frames,
			File:      filepath.Join(SpeakersDir, t.plan.name+".wav"),
			Silent:    t.silent,
		}
		for _, s := range t.plan.streams {
			entry.Streams = append(entry.Streams, uint32(s))
		}
		if t.plan.mapped {
			entry.SpeakerID = uint64(t.plan.speaker)
			if ec.names != nil {
				entry.DisplayName, _ = ec.names.DisplayName(t.plan.speaker)
			}
		}
		if t.silent {
			manifest.SilentSpeakers = append(manifest.SilentSpeakers, t.plan.name)
		}
		manifest.Speakers = append(manifest.Speakers, entry)
		manifest.Chunks = append(manifest.Chunks, t.chunks...)
	}

	if e.opts.WriteMixed {
		mixed := mixTracks(exported, manifest.FirstTick)
		if err := audio.WriteWAVFile(filepath.Join(outDir, MixedFile), mixed, audio.DiscordSampleRate); err != nil {
			return nil, fmt.Errorf("mixed track: %w", err)
		}
		manifest.Mixed = MixedFile
	}

	manifestPath := filepath.Join(outDir, ManifestFile)
	if err := storage.WriteJSONAtomic(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.Info("Session exported",
		zap.Int("speakers", len(manifest.Speakers)),
		zap.Int("chunks", len(manifest.Chunks)),
		zap.Strings("silent_speakers", manifest.SilentSpeakers),
		zap.Int("warnings", len(manifest.Warnings)),
		zap.Duration("took", time.Since(start)))

	return &Result{Manifest: manifest, Dir: outDir, ManifestPath: manifestPath}, nil
}

// planTracks groups streams by speaker. Speakers come first in ID order,
// then unattributed streams in stream order.
func planTracks(identities recording.IdentityMap, files map[recording.StreamID][]string) []trackPlan {
	var plans []trackPlan

	bySpeaker := identities.GroupBySpeaker()
	speakers := make([]recording.SpeakerID, 0, len(bySpeaker))
	for sp := range bySpeaker {
		speakers = append(speakers, sp)
	}
	slices.Sort(speakers)

	for _, sp := range speakers {
		p := trackPlan{
			name:    "user-" + strconv.FormatUint(uint64(sp), 10),
			speaker: sp,
			mapped:  true,
			files:   files,
		}
		for _, s := range bySpeaker[sp] {
			if len(files[s]) > 0 {
				p.streams = append(p.streams, s)
			}
		}
		if len(p.streams) > 0 {
			plans = append(plans, p)
		}
	}

	var unmapped []recording.StreamID
	for s := range files {
		if _, ok := identities[s]; !ok {
			unmapped = append(unmapped, s)
		}
	}
	slices.Sort(unmapped)
	for _, s := range unmapped {
		plans = append(plans, trackPlan{
			name:    "stream-" + strconv.FormatUint(uint64(s), 10),
			streams: []recording.StreamID{s},
			files:   files,
		})
	}

	return plans
}

func (e *Exporter) exportTrack(ctx context.Context, logger *zap.Logger, outDir string, plan trackPlan) (*track, error) {
	_, span := tracer.Start(ctx, "export.Track", trace.WithAttributes(
		attribute.String("track", plan.name),
		attribute.Int("streams", len(plan.streams)),
	))
	defer span.End()

	logger = logger.With(zap.String("track", plan.name))
	t := &track{plan: plan}

	mixer := audio.NewTickMixer()
	for _, s := range plan.streams {
		frames, warn, err := readStream(plan.files[s])
		if err != nil {
			return nil, fmt.Errorf("stream %d: %w", s, err)
		}
		if warn != "" {
			logger.Warn("Stream damaged", zap.Uint32("stream", uint32(s)), zap.String("problem", warn))
			t.warnings = append(t.warnings, fmt.Sprintf("%s: stream %d: %s", plan.name, s, warn))
		}
		mixer.AddFrames(frames)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames := mixer.Frames()
	if len(frames) == 0 {
		return t, nil
	}
	t.frames = len(frames)
	t.first, t.last = frames[0].Tick, frames[len(frames)-1].Tick

	pcm := sparse.RebuildContinuousPCM(frames, audio.MonoFrameSamples)
	t.silent = audio.IsSilent(pcm, e.opts.SilenceThreshold)
	if err := audio.WriteWAVFile(filepath.Join(outDir, SpeakersDir, plan.name+".wav"), pcm, audio.DiscordSampleRate); err != nil {
		return nil, err
	}
	if e.opts.WriteMixed {
		t.pcm = pcm
	}

	if !e.opts.WriteChunks {
		return t, nil
	}

	segs := segment.WithOverlap(segment.Split(e.opts.Segmentation, plan.name, frames), e.opts.Segmentation.OverlapTicks)
	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		down, err := audio.Downsample(sparse.RebuildContinuousPCM(seg.Frames, audio.MonoFrameSamples),
			audio.DiscordSampleRate, audio.TranscriptionSampleRate)
		if err != nil {
			return nil, err
		}

		// Edge silence is cut so chunks start on speech; the reported
		// window follows the cut.
		var lead int
		if trimmed, n := audio.TrimSilence(down, chunkTrimWindow, e.opts.SilenceThreshold); len(trimmed) > 0 {
			down, lead = trimmed, n
		}
		startSecs := audio.TicksToSeconds(seg.StartTick-t.first) + float64(lead)/audio.TranscriptionSampleRate

		name := fmt.Sprintf("%s_%03d.wav", plan.name, i)
		if err := audio.WriteWAVFile(filepath.Join(outDir, ChunksDir, name), down, audio.TranscriptionSampleRate); err != nil {
			return nil, err
		}

		t.chunks = append(t.chunks, ChunkEntry{
			Speaker:    plan.name,
			Index:      i,
			File:       filepath.Join(ChunksDir, name),
			StartTick:  seg.StartTick,
			EndTick:    seg.EndTick,
			StartSecs:  startSecs,
			EndSecs:    startSecs + float64(len(down))/audio.TranscriptionSampleRate,
			OffsetSecs: audio.TicksToSeconds(t.first),
		})
	}

	st := segment.Summarize(segs)
	span.SetAttributes(attribute.Int("chunks", st.Count))
	logger.Debug("Track exported",
		zap.Int("frames", t.frames),
		zap.Int("chunks", st.Count),
		zap.Duration("speech", st.TotalDuration()),
		zap.Bool("silent", t.silent))

	return t, nil
}

// readStream decodes every chunk of one stream in order. A damaged stream
// is not an error: a truncated chunk keeps what was readable, any other
// format problem skips the stream. Both are reported as a warning.
func readStream(paths []string) ([]sparse.Frame, string, error) {
	var (
		frames []sparse.Frame
		warn   string
	)
	for _, path := range paths {
		_, fs, err := sparse.ReadFile(path)
		switch {
		case err == nil:
			frames = append(frames, fs...)
		case errors.Is(err, sparse.ErrTruncated):
			frames = append(frames, fs...)
			warn = err.Error()
		case isFormatError(err):
			return nil, err.Error(), nil
		default:
			return nil, "", err
		}
	}
	return frames, warn, nil
}

func isFormatError(err error) bool {
	return errors.Is(err, sparse.ErrBadMagic) ||
		errors.Is(err, sparse.ErrUnsupportedVersion) ||
		errors.Is(err, sparse.ErrTickOrder) ||
		errors.Is(err, sparse.ErrFrameTooLarge)
}

// mixTracks places every track on the shared timeline and averages them.
func mixTracks(tracks []*track, globalFirst uint64) []int16 {
	placed := make([]audio.Track, 0, len(tracks))
	for _, t := range tracks {
		placed = append(placed, audio.Track{
			Offset:  int(t.first-globalFirst) * audio.MonoFrameSamples,
			Samples: t.pcm,
		})
	}
	return audio.MixTracks(placed...)
}
