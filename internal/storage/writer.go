// Package storage persists captured frames. A Writer runs a consume loop
// that drains an unbounded message queue and buffers frames per stream, and
// an I/O worker that appends buffered batches to sparse chunk files. Neither
// enqueueing nor draining ever waits on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

// Defaults applied to zero WriterParams fields.
const (
	DefaultFlushInterval = 30 * time.Second
	// DefaultChunkTicks is ten minutes of 20 ms ticks.
	DefaultChunkTicks = 30000
)

// ErrWriterClosed is returned by Flush once the writer stopped accepting
// messages.
var ErrWriterClosed = errors.New("storage writer is closed")

// WriterParams configures a Writer.
type WriterParams struct {
	SessionDir    string
	SampleRate    uint32
	FlushInterval time.Duration
	ChunkTicks    uint64
	Logger        *zap.Logger
	Metrics       *observe.Metrics
}

type message interface{ isMessage() }

type frameMessage struct {
	stream recording.StreamID
	frame  sparse.Frame
}

type identityMessage struct {
	identities recording.IdentityMap
}

type flushMessage struct {
	done chan error
}

type shutdownMessage struct{}

func (frameMessage) isMessage()    {}
func (identityMessage) isMessage() {}
func (flushMessage) isMessage()    {}
func (shutdownMessage) isMessage() {}

// Writer is the running storage pipeline of one session. Use the Handle
// returned by Start to talk to it.
type Writer struct {
	logger  *zap.Logger
	metrics *observe.Metrics
	dir     string

	interval time.Duration
	queue    *Queue[message]
	jobs     *Queue[flushJob]
	disk     *diskWriter

	pending map[recording.StreamID][]sparse.Frame
	// identities is set when the map changed since the last job.
	identities recording.IdentityMap

	ioDone chan struct{}
	done   chan struct{}
	err    error
}

// Start creates the session directory and launches the writer goroutines.
// They run until Shutdown, until the handle's queue is closed, or until ctx
// is cancelled; every path ends with a final flush.
func Start(ctx context.Context, p WriterParams) (*Handle, error) {
	if p.SessionDir == "" {
		return nil, errors.New("storage: session directory is required")
	}
	if p.SampleRate == 0 {
		p.SampleRate = audio.DiscordSampleRate
	}
	if p.FlushInterval <= 0 {
		p.FlushInterval = DefaultFlushInterval
	}
	if p.ChunkTicks == 0 {
		p.ChunkTicks = DefaultChunkTicks
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Metrics == nil {
		p.Metrics = observe.NewNopMetrics()
	}

	if err := os.MkdirAll(filepath.Join(p.SessionDir, StreamsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	logger := p.Logger.With(zap.String("session_dir", p.SessionDir))
	w := &Writer{
		logger:   logger,
		metrics:  p.Metrics,
		dir:      p.SessionDir,
		interval: p.FlushInterval,
		queue:    NewQueue[message](),
		jobs:     NewQueue[flushJob](),
		disk: newDiskWriter(p.SessionDir, sparse.NewHeader(p.SampleRate, audio.CaptureChannels),
			p.ChunkTicks, logger, p.Metrics),
		pending: make(map[recording.StreamID][]sparse.Frame),
		ioDone:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	go w.ioLoop()
	go w.run(ctx)

	return &Handle{w: w}, nil
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)

	timer := newFlushTimer(w.interval)
	defer timer.Stop()

	w.logger.Info("Storage writer started", zap.Duration("flush_interval", w.interval))

	for {
		select {
		case <-w.queue.Ready():
			msgs, closed := w.queue.Drain()
			stop := false
			for _, m := range msgs {
				if w.handle(m, timer) {
					stop = true
				}
			}
			if stop || closed {
				w.finish()
				return
			}

		case <-timer.C():
			w.submit(nil)
			timer.Reset()

		case <-ctx.Done():
			w.logger.Warn("Storage writer context cancelled, flushing", zap.Error(ctx.Err()))
			w.queue.Close()
			msgs, _ := w.queue.Drain()
			for _, m := range msgs {
				w.handle(m, timer)
			}
			w.finish()
			return
		}
	}
}

// handle applies one message and reports whether it was a shutdown.
func (w *Writer) handle(m message, timer *flushTimer) bool {
	switch m := m.(type) {
	case frameMessage:
		w.pending[m.stream] = append(w.pending[m.stream], m.frame)
	case identityMessage:
		// Snapshots are small and rare, so they go out right away.
		w.identities = m.identities
		w.submit(nil)
	case flushMessage:
		w.submit(m.done)
		timer.Reset()
	case shutdownMessage:
		return true
	}
	return false
}

// submit hands everything buffered to the I/O worker.
func (w *Writer) submit(done chan error) {
	job := w.takeJob()
	job.done = done
	if !w.jobs.Push(job) && done != nil {
		done <- ErrWriterClosed
	}
}

func (w *Writer) takeJob() flushJob {
	job := flushJob{batches: w.pending, identities: w.identities}
	w.pending = make(map[recording.StreamID][]sparse.Frame)
	w.identities = nil
	return job
}

// finish performs the final flush, waits for the I/O worker and closes
// every file.
func (w *Writer) finish() {
	final := make(chan error, 1)
	job := w.takeJob()
	job.final = true
	job.done = final
	if !w.jobs.Push(job) {
		final <- ErrWriterClosed
	}
	w.jobs.Close()
	<-w.ioDone

	err := <-final
	if closeErr := w.disk.close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	w.err = err

	if err != nil {
		w.logger.Error("Storage writer stopped with errors", zap.Error(err))
		return
	}
	w.logger.Info("Storage writer stopped")
}

func (w *Writer) ioLoop() {
	defer close(w.ioDone)

	for range w.jobs.Ready() {
		jobs, closed := w.jobs.Drain()
		for _, job := range jobs {
			err := w.disk.apply(job)
			if job.done != nil {
				job.done <- err
			}
		}
		if closed {
			return
		}
	}
}

// Handle is the producer side of a Writer. It satisfies
// recording.FrameSink and is safe for concurrent use.
type Handle struct {
	w *Writer
}

var _ recording.FrameSink = (*Handle)(nil)

// Dir returns the session directory.
func (h *Handle) Dir() string {
	return h.w.dir
}

// EnqueueFrame queues one frame. It never blocks.
func (h *Handle) EnqueueFrame(stream recording.StreamID, frame sparse.Frame) bool {
	return h.w.queue.Push(frameMessage{stream: stream, frame: frame})
}

// UpdateIdentities queues a new identity map to persist. It never blocks.
func (h *Handle) UpdateIdentities(identities recording.IdentityMap) bool {
	return h.w.queue.Push(identityMessage{identities: identities.Clone()})
}

// Flush writes everything queued before the call and waits for the result.
func (h *Handle) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	if !h.w.queue.Push(flushMessage{done: done}) {
		return ErrWriterClosed
	}

	select {
	case err := <-done:
		return err
	case <-h.w.done:
		select {
		case err := <-done:
			return err
		default:
			return ErrWriterClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown asks the writer to flush and stop. It does not wait; use Done or
// Wait for that. Calling it more than once is harmless.
func (h *Handle) Shutdown() {
	h.w.queue.Push(shutdownMessage{})
	h.w.queue.Close()
}

// Done is closed once the writer flushed its last batch and closed its
// files.
func (h *Handle) Done() <-chan struct{} {
	return h.w.done
}

// Wait blocks until the writer finished and returns the error of its final
// flush, if any.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.w.done:
		return h.w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
