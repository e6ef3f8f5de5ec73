package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Raikerian/go-discord-recorder/pkg/audio"
)

func TestRMS(t *testing.T) {
	assert.Zero(t, audio.RMS(nil))
	assert.Zero(t, audio.RMS([]int16{0, 0, 0}))
	assert.InDelta(t, 0.5, audio.RMS([]int16{16384, -16384}), 1e-9)

	assert.True(t, audio.IsSilent([]int16{1, -1, 2}, audio.DefaultSilenceThreshold))
	assert.False(t, audio.IsSilent([]int16{8000, -8000}, audio.DefaultSilenceThreshold))
}

func TestTrimSilence(t *testing.T) {
	loud := []int16{8000, -8000}
	samples := append(append([]int16{0, 0, 0, 0}, loud...), 0, 0)

	trimmed, offset := audio.TrimSilence(samples, 2, audio.DefaultSilenceThreshold)
	assert.Equal(t, loud, trimmed)
	assert.Equal(t, 4, offset)

	all, offset := audio.TrimSilence([]int16{0, 0, 0}, 2, audio.DefaultSilenceThreshold)
	assert.Empty(t, all)
	assert.Equal(t, 3, offset)

	untouched, offset := audio.TrimSilence(loud, 0, audio.DefaultSilenceThreshold)
	assert.Equal(t, loud, untouched)
	assert.Zero(t, offset)
}
