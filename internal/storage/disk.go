package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

// flushJob is one unit of I/O handed from the consume loop to the I/O
// worker. A nil identities map means the snapshot did not change. The
// final job of a session always leaves a snapshot on disk.
type flushJob struct {
	batches    map[recording.StreamID][]sparse.Frame
	identities recording.IdentityMap
	final      bool
	done       chan error
}

// chunkFile is the open tail chunk of one stream.
type chunkFile struct {
	f         *os.File
	index     int
	firstTick uint64
	lastTick  uint64
	hasLast   bool
	size      int64
}

// diskWriter owns every open file of a session. It is only touched by the
// I/O worker, and by the consume loop once the worker has exited.
type diskWriter struct {
	dir        string
	header     sparse.Header
	chunkTicks uint64
	logger     *zap.Logger
	metrics    *observe.Metrics

	files   map[recording.StreamID]*chunkFile
	backlog map[recording.StreamID][]sparse.Frame
	// snapshot is the newest identity map not yet on disk.
	snapshot  recording.IdentityMap
	persisted bool
	buf       []byte
}

func newDiskWriter(dir string, header sparse.Header, chunkTicks uint64, logger *zap.Logger, metrics *observe.Metrics) *diskWriter {
	return &diskWriter{
		dir:        dir,
		header:     header,
		chunkTicks: chunkTicks,
		logger:     logger,
		metrics:    metrics,
		files:      make(map[recording.StreamID]*chunkFile),
		backlog:    make(map[recording.StreamID][]sparse.Frame),
	}
}

// apply writes one job. Streams that fail keep their unwritten frames in
// the backlog, ahead of whatever arrives next for them, and are retried on
// the next job. The returned error joins every failure of this job.
func (d *diskWriter) apply(job flushJob) error {
	var errs []error

	if job.identities != nil {
		d.snapshot = job.identities
	}
	if job.final && d.snapshot == nil && !d.persisted {
		d.snapshot = recording.IdentityMap{}
	}
	if d.snapshot != nil {
		if err := WriteIdentitySnapshot(d.dir, d.snapshot); err != nil {
			d.metrics.FlushErrors.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("kind", "snapshot")))
			d.logger.Error("Failed to write identity snapshot", zap.Error(err))
			errs = append(errs, fmt.Errorf("identity snapshot: %w", err))
		} else {
			d.snapshot = nil
			d.persisted = true
		}
	}

	streams := make(map[recording.StreamID]struct{}, len(job.batches)+len(d.backlog))
	for s := range job.batches {
		streams[s] = struct{}{}
	}
	for s := range d.backlog {
		streams[s] = struct{}{}
	}

	for s := range streams {
		frames := job.batches[s]
		if pending := d.backlog[s]; len(pending) > 0 {
			frames = append(pending, frames...)
			delete(d.backlog, s)
		}
		if len(frames) == 0 {
			continue
		}
		if err := d.writeStream(s, frames); err != nil {
			d.metrics.FlushErrors.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("kind", "stream")))
			d.logger.Error("Failed to flush stream",
				zap.Uint32("stream", uint32(s)),
				zap.Int("retained_frames", len(d.backlog[s])),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("stream %d: %w", s, err))
		}
	}

	return errors.Join(errs...)
}

// writeStream appends frames to the stream's chunk files, rotating chunks as
// they fill. Frames not written because of an error go to the backlog.
func (d *diskWriter) writeStream(stream recording.StreamID, frames []sparse.Frame) error {
	start := time.Now()
	written := 0

	cf := d.files[stream]
	// Frames at or before the last stored tick can never be appended.
	if cf != nil && cf.hasLast {
		skip := 0
		for skip < len(frames) && frames[skip].Tick <= cf.lastTick {
			skip++
		}
		if skip > 0 {
			d.logger.Warn("Discarding out of order frames",
				zap.Uint32("stream", uint32(stream)),
				zap.Int("count", skip),
				zap.Uint64("last_tick", cf.lastTick))
			frames = frames[skip:]
		}
	}

	for len(frames) > 0 {
		var err error
		if cf == nil || frames[0].Tick-cf.firstTick >= d.chunkTicks {
			cf, err = d.rotate(stream, cf, frames[0].Tick)
			if err != nil {
				d.backlog[stream] = frames
				return err
			}
		}

		n := 1
		for n < len(frames) && frames[n].Tick-cf.firstTick < d.chunkTicks {
			n++
		}

		if err := d.appendRecords(cf, frames[:n]); err != nil {
			d.backlog[stream] = frames
			return err
		}
		written += n
		frames = frames[n:]
	}

	ctx := context.Background()
	d.metrics.FlushDuration.Record(ctx, time.Since(start).Seconds())
	d.metrics.FlushedFrames.Add(ctx, int64(written))
	return nil
}

// appendRecords writes a group of frames with a single write. A partial
// write is truncated away so the file always ends on a record boundary.
func (d *diskWriter) appendRecords(cf *chunkFile, frames []sparse.Frame) error {
	var err error
	d.buf, err = sparse.AppendFrames(d.buf[:0], frames...)
	if err != nil {
		return err
	}

	n, err := cf.f.Write(d.buf)
	if err != nil {
		if n > 0 {
			if terr := cf.f.Truncate(cf.size); terr != nil {
				return errors.Join(err, fmt.Errorf("truncate partial write: %w", terr))
			}
			if _, serr := cf.f.Seek(cf.size, io.SeekStart); serr != nil {
				return errors.Join(err, serr)
			}
		}
		return err
	}
	if err := cf.f.Sync(); err != nil {
		return err
	}

	cf.size += int64(n)
	cf.lastTick, cf.hasLast = frames[len(frames)-1].Tick, true
	d.metrics.FlushedBytes.Add(context.Background(), int64(n))
	return nil
}

// rotate closes prev, if any, and opens the next chunk starting at tick.
func (d *diskWriter) rotate(stream recording.StreamID, prev *chunkFile, tick uint64) (*chunkFile, error) {
	index := 0
	if prev != nil {
		index = prev.index + 1
	}

	if err := os.MkdirAll(StreamDir(d.dir, stream), 0o755); err != nil {
		return prev, err
	}

	path := ChunkPath(d.dir, stream, index)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return prev, fmt.Errorf("open chunk: %w", err)
	}

	hdr := d.header.AppendBinary(nil)
	if _, err := f.Write(hdr); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return prev, fmt.Errorf("write chunk header: %w", err)
	}

	if prev != nil {
		if err := prev.f.Close(); err != nil {
			d.logger.Warn("Failed to close chunk",
				zap.Uint32("stream", uint32(stream)),
				zap.Int("chunk", prev.index),
				zap.Error(err))
		}
	}

	cf := &chunkFile{f: f, index: index, firstTick: tick, size: int64(len(hdr))}
	if prev != nil {
		cf.lastTick, cf.hasLast = prev.lastTick, prev.hasLast
	}
	d.files[stream] = cf

	d.logger.Debug("Opened chunk",
		zap.Uint32("stream", uint32(stream)),
		zap.Int("chunk", index),
		zap.Uint64("first_tick", tick))
	return cf, nil
}

// close syncs and closes every file. Anything still in the backlog is lost
// and reported.
func (d *diskWriter) close() error {
	var errs []error
	for s, cf := range d.files {
		if err := cf.f.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync stream %d: %w", s, err))
		}
		if err := cf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream %d: %w", s, err))
		}
	}
	clear(d.files)

	for s, frames := range d.backlog {
		d.logger.Error("Frames lost after repeated flush failures",
			zap.Uint32("stream", uint32(s)),
			zap.Int("frames", len(frames)))
		errs = append(errs, fmt.Errorf("stream %d: %d frames not persisted", s, len(frames)))
	}
	clear(d.backlog)

	return errors.Join(errs...)
}
