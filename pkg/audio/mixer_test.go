package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-discord-recorder/pkg/audio"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

func TestTickMixerMergesStreams(t *testing.T) {
	m := audio.NewTickMixer()
	m.AddFrames([]sparse.Frame{
		{Tick: 1, Samples: []int16{10, 20}},
		{Tick: 3, Samples: []int16{30000, -30000}},
	})
	m.AddFrames([]sparse.Frame{
		{Tick: 0, Samples: []int16{1}},
		{Tick: 3, Samples: []int16{30000, -30000, 7}},
	})

	require.Equal(t, 3, m.Len())
	frames := m.Frames()
	require.Len(t, frames, 3)

	assert.Equal(t, sparse.Frame{Tick: 0, Samples: []int16{1}}, frames[0])
	assert.Equal(t, sparse.Frame{Tick: 1, Samples: []int16{10, 20}}, frames[1])
	// Overlapping tick is summed and clamped, never wrapped.
	assert.Equal(t, sparse.Frame{Tick: 3, Samples: []int16{32767, -32768, 7}}, frames[2])
}

func TestMixTracks(t *testing.T) {
	t.Run("AverageAndClamp", func(t *testing.T) {
		got := audio.MixTracks(
			audio.Track{Samples: []int16{32767, -32768, 100}},
			audio.Track{Samples: []int16{32767, -32768, 300}},
		)
		assert.Equal(t, []int16{32767, -32768, 200}, got)
	})

	t.Run("Offsets", func(t *testing.T) {
		got := audio.MixTracks(
			audio.Track{Offset: 0, Samples: []int16{10, 10}},
			audio.Track{Offset: 3, Samples: []int16{20}},
		)
		assert.Equal(t, []int16{5, 5, 0, 10}, got)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, audio.MixTracks())
	})
}
