// Package observe provides the OpenTelemetry instruments recorded across the
// capture, storage and export pipeline, plus the SDK provider that exposes
// them for Prometheus scraping.
package observe

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for every recorder metric.
const meterName = "github.com/Raikerian/go-discord-recorder"

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// --- Capture ---

	// TicksCaptured counts voice ticks claimed by an active session.
	TicksCaptured metric.Int64Counter

	// FramesCaptured counts frames handed to a storage writer.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames a closed writer refused.
	FramesDropped metric.Int64Counter

	// IrregularFrames counts frames whose size is neither mono nor stereo.
	IrregularFrames metric.Int64Counter

	// --- Storage ---

	// FlushDuration tracks how long one stream batch took to hit disk.
	FlushDuration metric.Float64Histogram

	// FlushedFrames counts frames persisted.
	FlushedFrames metric.Int64Counter

	// FlushedBytes counts record bytes appended to stream files.
	FlushedBytes metric.Int64Counter

	// FlushErrors counts failed batch or snapshot writes. Use with
	// attribute.String("kind", "stream"|"snapshot").
	FlushErrors metric.Int64Counter

	// --- Sessions ---

	// ActiveSessions tracks sessions currently capturing.
	ActiveSessions metric.Int64UpDownCounter

	// ExportDuration tracks post-stop export latency.
	ExportDuration metric.Float64Histogram

	// ExportFailures counts exports that ended with an error.
	ExportFailures metric.Int64Counter

	// --- Transcription ---

	// TranscriptionDuration tracks per-chunk transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// TranscribedChunks counts chunks sent for transcription. Use with
	// attribute.String("status", "ok"|"error").
	TranscribedChunks metric.Int64Counter
}

// flushBuckets covers disk writes from sub-millisecond to a stalled disk.
var flushBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// jobBuckets covers export and transcription runs.
var jobBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.TicksCaptured, err = m.Int64Counter("recorder.capture.ticks",
		metric.WithDescription("Voice ticks claimed by active sessions."),
	); err != nil {
		return nil, err
	}
	if met.FramesCaptured, err = m.Int64Counter("recorder.capture.frames",
		metric.WithDescription("Frames handed to a storage writer."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("recorder.capture.frames_dropped",
		metric.WithDescription("Frames refused by a closed storage writer."),
	); err != nil {
		return nil, err
	}
	if met.IrregularFrames, err = m.Int64Counter("recorder.capture.irregular_frames",
		metric.WithDescription("Frames whose sample count matched neither mono nor stereo."),
	); err != nil {
		return nil, err
	}
	if met.FlushedFrames, err = m.Int64Counter("recorder.storage.flushed_frames",
		metric.WithDescription("Frames persisted to stream files."),
	); err != nil {
		return nil, err
	}
	if met.FlushedBytes, err = m.Int64Counter("recorder.storage.flushed_bytes",
		metric.WithDescription("Record bytes appended to stream files."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.FlushErrors, err = m.Int64Counter("recorder.storage.flush_errors",
		metric.WithDescription("Failed stream batch or identity snapshot writes by kind."),
	); err != nil {
		return nil, err
	}
	if met.ExportFailures, err = m.Int64Counter("recorder.export.failures",
		metric.WithDescription("Exports that ended with an error."),
	); err != nil {
		return nil, err
	}
	if met.TranscribedChunks, err = m.Int64Counter("recorder.transcription.chunks",
		metric.WithDescription("Chunks sent for transcription by status."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.FlushDuration, err = m.Float64Histogram("recorder.storage.flush.duration",
		metric.WithDescription("Latency of persisting one stream batch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(flushBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExportDuration, err = m.Float64Histogram("recorder.export.duration",
		metric.WithDescription("Latency of exporting a stopped session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("recorder.transcription.duration",
		metric.WithDescription("Latency of transcribing one chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("recorder.sessions.active",
		metric.WithDescription("Sessions currently capturing."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// NewNopMetrics returns instruments that record nothing.
func NewNopMetrics() *Metrics {
	met, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		// The no-op provider never fails.
		panic(err)
	}
	return met
}
