package recording_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

type sinkFrame struct {
	stream recording.StreamID
	frame  sparse.Frame
}

type fakeSink struct {
	mu         sync.Mutex
	frames     []sinkFrame
	identities []recording.IdentityMap
	closed     bool
}

func (s *fakeSink) EnqueueFrame(stream recording.StreamID, frame sparse.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.frames = append(s.frames, sinkFrame{stream: stream, frame: frame})
	return true
}

func (s *fakeSink) UpdateIdentities(m recording.IdentityMap) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.identities = append(s.identities, m)
	return true
}

func newReceiver(t *testing.T) (*recording.Receiver, *recording.State, *fakeSink) {
	t.Helper()
	state := recording.NewState()
	sink := &fakeSink{}
	require.NoError(t, state.Begin(sink))
	return recording.NewReceiver(zaptest.NewLogger(t), state, observe.NewNopMetrics()), state, sink
}

func speaker(id uint64) *recording.SpeakerID {
	s := recording.SpeakerID(id)
	return &s
}

func TestOnVoiceTickClaimsOneTickPerEvent(t *testing.T) {
	r, state, sink := newReceiver(t)

	mono := make([]int16, audio.MonoFrameSamples)
	r.OnVoiceTick(map[recording.StreamID][]int16{2: mono, 1: mono})
	r.OnVoiceTick(map[recording.StreamID][]int16{})
	r.OnVoiceTick(map[recording.StreamID][]int16{1: mono, 2: nil})

	assert.Equal(t, uint64(3), state.Ticks())
	require.Len(t, sink.frames, 3)

	assert.Equal(t, recording.StreamID(1), sink.frames[0].stream)
	assert.Equal(t, uint64(0), sink.frames[0].frame.Tick)
	assert.Equal(t, recording.StreamID(2), sink.frames[1].stream)
	assert.Equal(t, uint64(0), sink.frames[1].frame.Tick)
	assert.Equal(t, recording.StreamID(1), sink.frames[2].stream)
	assert.Equal(t, uint64(2), sink.frames[2].frame.Tick)
}

func TestOnVoiceTickFrameSizes(t *testing.T) {
	r, _, sink := newReceiver(t)

	stereo := make([]int16, audio.StereoFrameSamples)
	for i := range stereo {
		stereo[i] = int16(i % 2 * 100) // L=0, R=100
	}
	mono := make([]int16, audio.MonoFrameSamples)
	odd := []int16{1, 2, 3}

	r.OnVoiceTick(map[recording.StreamID][]int16{1: stereo, 2: mono, 3: odd})

	require.Len(t, sink.frames, 3)
	assert.Len(t, sink.frames[0].frame.Samples, audio.MonoFrameSamples)
	assert.Equal(t, int16(50), sink.frames[0].frame.Samples[0])
	assert.Len(t, sink.frames[1].frame.Samples, audio.MonoFrameSamples)
	assert.Equal(t, odd, sink.frames[2].frame.Samples, "unknown sizes pass through")
}

func TestOnVoiceTickIgnoredWhenNotActive(t *testing.T) {
	state := recording.NewState()
	r := recording.NewReceiver(zaptest.NewLogger(t), state, observe.NewNopMetrics())

	r.OnVoiceTick(map[recording.StreamID][]int16{1: {1, 2}})
	assert.Zero(t, state.Ticks())

	sink := &fakeSink{}
	require.NoError(t, state.Begin(sink))
	_, err := state.BeginStop()
	require.NoError(t, err)

	r.OnVoiceTick(map[recording.StreamID][]int16{1: {1, 2}})
	assert.Empty(t, sink.frames)
}

func TestOnVoiceTickClosedSinkDoesNotPanic(t *testing.T) {
	r, state, sink := newReceiver(t)
	sink.closed = true

	assert.NotPanics(t, func() {
		r.OnVoiceTick(map[recording.StreamID][]int16{1: {1}})
	})
	assert.Equal(t, uint64(1), state.Ticks())
}

func TestOnSpeakingUpdate(t *testing.T) {
	r, state, sink := newReceiver(t)

	r.OnSpeakingUpdate(1000, speaker(12345))
	r.OnSpeakingUpdate(1000, speaker(12345))
	r.OnSpeakingUpdate(1001, nil)

	assert.Equal(t, recording.IdentityMap{1000: 12345}, state.Identities())
	require.Len(t, sink.identities, 1, "repeated update must not re-persist")
	assert.Equal(t, recording.IdentityMap{1000: 12345}, sink.identities[0])

	r.OnSpeakingUpdate(1001, speaker(12345))
	require.Len(t, sink.identities, 2)
	assert.Equal(t, recording.IdentityMap{1000: 12345, 1001: 12345}, sink.identities[1])
}

func TestOnSpeakingUpdateBeforeAudio(t *testing.T) {
	r, _, sink := newReceiver(t)

	// Audio for an unmapped stream is still captured.
	r.OnVoiceTick(map[recording.StreamID][]int16{7: {1}})
	require.Len(t, sink.frames, 1)
	assert.Equal(t, recording.StreamID(7), sink.frames[0].stream)

	r.OnSpeakingUpdate(7, speaker(99))
	require.Len(t, sink.identities, 1)
}

func nopLogger(t *testing.T) *zap.Logger { return zaptest.NewLogger(t) }

func nopMetrics() *observe.Metrics { return observe.NewNopMetrics() }
