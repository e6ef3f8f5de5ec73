package audio_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-discord-recorder/pkg/audio"
)

func TestWAVRoundTrip(t *testing.T) {
	tests := map[string]struct {
		samples    []int16
		sampleRate int
	}{
		"capture rate": {
			samples:    []int16{1, -1, 2},
			sampleRate: audio.DiscordSampleRate,
		},
		"transcription rate": {
			samples:    []int16{0, 100, -100, 2000, -2000},
			sampleRate: audio.TranscriptionSampleRate,
		},
		"full scale": {
			samples:    []int16{math.MaxInt16, math.MinInt16, 0},
			sampleRate: audio.DiscordSampleRate,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.wav")
			require.NoError(t, audio.WriteWAVFile(path, tt.samples, tt.sampleRate))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "RIFF", string(data[0:4]))
			assert.Equal(t, "WAVE", string(data[8:12]))

			got, rate, channels, err := audio.ReadWAVFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.samples, got)
			assert.Equal(t, tt.sampleRate, rate)
			assert.Equal(t, 1, channels)
		})
	}
}

func TestWriteWAVFile_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, audio.WriteWAVFile(filepath.Join(dir, "empty.wav"), nil, audio.DiscordSampleRate))
	assert.Error(t, audio.WriteWAVFile(filepath.Join(dir, "rate.wav"), []int16{1}, 0))
	assert.Error(t, audio.WriteWAVFile(filepath.Join(dir, "missing", "x.wav"), []int16{1}, audio.DiscordSampleRate))
}

func TestReadWAVFile_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff file"), 0o644))

	_, _, _, err := audio.ReadWAVFile(path)
	assert.ErrorIs(t, err, audio.ErrNotWAV)

	_, _, _, err = audio.ReadWAVFile(filepath.Join(t.TempDir(), "absent.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
