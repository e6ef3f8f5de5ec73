// Package transcribe runs offline speech-to-text over an exported session
// and assembles a speaker-labelled transcript on the session timeline.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raikerian/go-discord-recorder/internal/export"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/storage"
	pkgopenai "github.com/Raikerian/go-discord-recorder/pkg/openai"
)

var (
	// ErrDisabled is returned when no transcriber is configured.
	ErrDisabled = errors.New("transcribe: transcription is disabled")

	// ErrNoChunks is returned when the export produced nothing to transcribe.
	ErrNoChunks = errors.New("transcribe: export has no chunks")

	// ErrAllFailed is returned when every chunk failed.
	ErrAllFailed = errors.New("transcribe: every chunk failed")
)

var tracer = otel.Tracer("github.com/Raikerian/go-discord-recorder/internal/transcribe")

// Options configure a Service.
type Options struct {
	Model       string
	Language    string
	Concurrency int
}

// Result is a finished transcript and where it was written.
type Result struct {
	Transcript
	JSONPath string
	SRTPath  string
	TextPath string
}

// Service transcribes exported sessions.
type Service struct {
	logger      *zap.Logger
	transcriber Transcriber
	pricing     pkgopenai.PricingService
	opts        Options
	metrics     *observe.Metrics
}

// NewService creates a Service. A nil transcriber yields a Service whose
// calls fail with ErrDisabled. pricing may be nil.
func NewService(logger *zap.Logger, transcriber Transcriber, pricing pkgopenai.PricingService, opts Options, metrics *observe.Metrics) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if metrics == nil {
		metrics = observe.NewNopMetrics()
	}
	return &Service{
		logger:      logger.Named("transcribe"),
		transcriber: transcriber,
		pricing:     pricing,
		opts:        opts,
		metrics:     metrics,
	}
}

// Enabled reports whether a transcriber is configured.
func (s *Service) Enabled() bool {
	return s.transcriber != nil
}

// TranscribeSession transcribes every chunk listed in the session's export
// manifest and writes transcript.json, transcript.srt and transcript.txt into
// sessionDir. Individual chunk failures are recorded in Failures; the run only
// fails when no chunk succeeded.
func (s *Service) TranscribeSession(ctx context.Context, sessionDir string) (_ *Result, err error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	ctx, span := tracer.Start(ctx, "transcribe.Session",
		trace.WithAttributes(attribute.String("session_dir", sessionDir)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	manifest, err := export.LoadManifest(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if len(manifest.Chunks) == 0 {
		return nil, ErrNoChunks
	}
	span.SetAttributes(attribute.Int("chunks", len(manifest.Chunks)))

	logger := s.logger.With(zap.String("session_dir", sessionDir))
	start := time.Now()

	var (
		mu       sync.Mutex
		results  []chunkResult
		failures []string
		audio    float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, chunk := range manifest.Chunks {
		g.Go(func() error {
			segments, err := s.transcribeChunk(gctx, manifest, chunk)

			mu.Lock()
			defer mu.Unlock()
			audio += chunk.EndSecs - chunk.StartSecs
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("Chunk transcription failed",
					zap.String("chunk", chunk.File),
					zap.Error(err))
				failures = append(failures, fmt.Sprintf("%s: %v", chunk.File, err))
				return nil
			}
			results = append(results, chunkResult{chunk: chunk, segments: segments})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %d chunks", ErrAllFailed, len(failures))
	}
	slices.Sort(failures)

	transcript := Transcript{
		Version:      TranscriptVersion,
		SessionDir:   sessionDir,
		CreatedAt:    time.Now().UTC(),
		Model:        s.opts.Model,
		Language:     s.opts.Language,
		AudioSeconds: audio,
		Lines:        assemble(manifest, results),
		Failures:     failures,
	}
	if s.pricing != nil {
		if cost, err := s.pricing.TranscriptionCost(s.opts.Model, audio); err == nil {
			transcript.CostUSD = &cost
		} else {
			logger.Debug("No pricing for model", zap.String("model", s.opts.Model), zap.Error(err))
		}
	}

	res := &Result{
		Transcript: transcript,
		JSONPath:   filepath.Join(sessionDir, JSONFile),
		SRTPath:    filepath.Join(sessionDir, SRTFile),
		TextPath:   filepath.Join(sessionDir, TextFile),
	}
	if err := storage.WriteJSONAtomic(res.JSONPath, transcript); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}
	if err := storage.WriteFileAtomic(res.SRTPath, []byte(RenderSRT(transcript.Lines))); err != nil {
		return nil, fmt.Errorf("write subtitles: %w", err)
	}
	if err := storage.WriteFileAtomic(res.TextPath, []byte(RenderText(transcript.Lines))); err != nil {
		return nil, fmt.Errorf("write text transcript: %w", err)
	}

	logger.Info("Session transcribed",
		zap.Int("chunks", len(manifest.Chunks)),
		zap.Int("lines", len(transcript.Lines)),
		zap.Int("failures", len(failures)),
		zap.Float64("audio_seconds", audio),
		zap.Duration("took", time.Since(start)))

	return res, nil
}

func (s *Service) transcribeChunk(ctx context.Context, m *export.Manifest, chunk export.ChunkEntry) ([]Segment, error) {
	ctx, span := tracer.Start(ctx, "transcribe.Chunk",
		trace.WithAttributes(
			attribute.String("speaker", chunk.Speaker),
			attribute.Int("index", chunk.Index)))
	defer span.End()

	start := time.Now()
	segments, err := s.transcriber.Transcribe(ctx, m.ChunkPath(chunk))
	s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.TranscribedChunks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	return segments, err
}
