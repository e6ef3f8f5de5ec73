package recording

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

// Receiver is the entry point the voice transport pushes events into. Both
// handlers return promptly: they never wait on disk I/O and never propagate
// errors back into the transport.
type Receiver struct {
	logger  *zap.Logger
	state   *State
	metrics *observe.Metrics
}

// NewReceiver creates a Receiver bound to state.
func NewReceiver(logger *zap.Logger, state *State, metrics *observe.Metrics) *Receiver {
	return &Receiver{
		logger:  logger,
		state:   state,
		metrics: metrics,
	}
}

// OnSpeakingUpdate records which speaker owns a stream. A nil speaker
// carries no identity and is ignored. Repeating an update is a no-op.
func (r *Receiver) OnSpeakingUpdate(stream StreamID, speaker *SpeakerID) {
	if speaker == nil {
		return
	}

	changed, forwarded := r.state.setIdentity(stream, *speaker)
	if !changed {
		return
	}

	r.logger.Info("Mapped stream to speaker",
		zap.Uint32("ssrc", uint32(stream)),
		zap.Uint64("speaker_id", uint64(*speaker)),
		zap.Bool("persisted", forwarded))
}

// OnVoiceTick handles one 20 ms instant. It claims exactly one tick index
// regardless of how many streams carried audio, and forwards one frame per
// stream with decoded samples. Streams without audio are implicitly silent.
func (r *Receiver) OnVoiceTick(batch map[StreamID][]int16) {
	streams := slices.Sorted(maps.Keys(batch))
	frames := make([]pendingFrame, 0, len(streams))
	for _, stream := range streams {
		pcm := batch[stream]
		if len(pcm) == 0 {
			continue
		}
		frames = append(frames, pendingFrame{stream: stream, samples: r.toMono(stream, pcm)})
	}

	var dropped int
	active := r.state.withTick(func(tick uint64, sink FrameSink) {
		for _, f := range frames {
			if !sink.EnqueueFrame(f.stream, sparse.Frame{Tick: tick, Samples: f.samples}) {
				dropped++
			}
		}
	})
	if !active {
		return
	}

	ctx := context.Background()
	r.metrics.TicksCaptured.Add(ctx, 1)
	r.metrics.FramesCaptured.Add(ctx, int64(len(frames)-dropped))
	if dropped > 0 {
		r.metrics.FramesDropped.Add(ctx, int64(dropped))
		r.logger.Warn("Storage writer rejected frames", zap.Int("dropped", dropped))
	}
}

type pendingFrame struct {
	stream  StreamID
	samples []int16
}

// toMono downmixes a Discord stereo frame. Any size other than a mono or
// stereo 20 ms frame is kept as is so a protocol mismatch shows up in the
// recording instead of vanishing.
func (r *Receiver) toMono(stream StreamID, pcm []int16) []int16 {
	switch len(pcm) {
	case audio.StereoFrameSamples:
		return audio.StereoToMono(pcm)
	case audio.MonoFrameSamples:
		return pcm
	default:
		r.metrics.IrregularFrames.Add(context.Background(), 1)
		r.logger.Warn("Unexpected frame size, storing unchanged",
			zap.Uint32("ssrc", uint32(stream)),
			zap.Int("samples", len(pcm)))
		return pcm
	}
}
