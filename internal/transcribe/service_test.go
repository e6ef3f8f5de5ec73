package transcribe_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-recorder/internal/export"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/internal/storage"
	"github.com/Raikerian/go-discord-recorder/internal/transcribe"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
	pkgopenai "github.com/Raikerian/go-discord-recorder/pkg/openai"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	reply func(path string) []transcribe.Segment
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) ([]transcribe.Segment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(path))
	f.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := f.fail[filepath.Base(path)]; err != nil {
		return nil, err
	}
	return f.reply(path), nil
}

type staticNames map[recording.SpeakerID]string

func (n staticNames) DisplayName(id recording.SpeakerID) (string, bool) {
	name, ok := n[id]
	return name, ok
}

// writeStream stores ticks first..last of a constant tone.
func writeStream(t *testing.T, dir string, stream recording.StreamID, first, last uint64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(storage.StreamDir(dir, stream), 0o755))

	f, err := os.Create(storage.ChunkPath(dir, stream, 0))
	require.NoError(t, err)
	defer f.Close()

	w, err := sparse.NewWriter(f, sparse.NewHeader(audio.DiscordSampleRate, audio.CaptureChannels))
	require.NoError(t, err)
	samples := make([]int16, audio.MonoFrameSamples)
	for i := range samples {
		samples[i] = 6000
	}
	for tick := first; tick <= last; tick++ {
		require.NoError(t, w.WriteFrame(sparse.Frame{Tick: tick, Samples: samples}))
	}
	require.NoError(t, w.Flush())
}

// exportedSession builds a two speaker session and exports it. Alice (100)
// speaks on ticks 50..99, speaker 200 on ticks 150..199.
func exportedSession(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeStream(t, dir, 1, 50, 99)
	writeStream(t, dir, 2, 150, 199)
	require.NoError(t, storage.WriteIdentitySnapshot(dir, recording.IdentityMap{1: 100, 2: 200}))

	exp := export.NewExporter(zaptest.NewLogger(t), export.DefaultOptions(), observe.NewNopMetrics())
	_, err := exp.Export(context.Background(), dir, export.WithNames(staticNames{100: "Alice"}))
	require.NoError(t, err)
	return dir
}

func newService(t *testing.T, tr transcribe.Transcriber) *transcribe.Service {
	t.Helper()
	return transcribe.NewService(zaptest.NewLogger(t), tr, nil,
		transcribe.Options{Model: "whisper-1", Concurrency: 2}, observe.NewNopMetrics())
}

func TestService_TranscribeSession(t *testing.T) {
	dir := exportedSession(t)
	tr := &fakeTranscriber{reply: func(path string) []transcribe.Segment {
		word := "hello"
		if strings.Contains(path, "user-200") {
			word = "hi there"
		}
		return []transcribe.Segment{{Start: 0.5, End: 0.9, Text: word}}
	}}

	res, err := newService(t, tr).TranscribeSession(context.Background(), dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"user-100_000.wav", "user-200_000.wav"}, tr.calls)
	assert.Empty(t, res.Failures)
	assert.InDelta(t, 2.0, res.AudioSeconds, 1e-9)
	assert.Nil(t, res.CostUSD)

	require.Len(t, res.Lines, 2)
	alice := res.Lines[0]
	assert.Equal(t, "Alice", alice.Speaker)
	assert.Equal(t, "user-100", alice.Track)
	assert.Equal(t, uint64(100), alice.SpeakerID)
	assert.InDelta(t, 1.5, alice.Start, 1e-9)
	assert.InDelta(t, 1.9, alice.End, 1e-9)
	assert.Equal(t, "hello", alice.Text)

	other := res.Lines[1]
	assert.Equal(t, "user-200", other.Speaker)
	assert.InDelta(t, 3.5, other.Start, 1e-9)

	data, err := os.ReadFile(res.JSONPath)
	require.NoError(t, err)
	var onDisk transcribe.Transcript
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, transcribe.TranscriptVersion, onDisk.Version)
	assert.Len(t, onDisk.Lines, 2)

	srt, err := os.ReadFile(res.SRTPath)
	require.NoError(t, err)
	assert.Contains(t, string(srt), "1\n00:00:01,500 --> 00:00:01,900\nAlice: hello\n")

	txt, err := os.ReadFile(res.TextPath)
	require.NoError(t, err)
	assert.Equal(t, "[00:01] Alice: hello\n[00:03] user-200: hi there\n", string(txt))
}

func TestService_PartialFailure(t *testing.T) {
	dir := exportedSession(t)
	tr := &fakeTranscriber{
		fail: map[string]error{"user-200_000.wav": errors.New("rate limited")},
		reply: func(string) []transcribe.Segment {
			return []transcribe.Segment{{Start: 0, End: 1, Text: "ok"}}
		},
	}

	res, err := newService(t, tr).TranscribeSession(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assert.Equal(t, "Alice", res.Lines[0].Speaker)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "rate limited")
}

func TestService_Errors(t *testing.T) {
	failing := &fakeTranscriber{
		fail: map[string]error{
			"user-100_000.wav": errors.New("boom"),
			"user-200_000.wav": errors.New("boom"),
		},
	}

	tests := map[string]struct {
		service func(t *testing.T) *transcribe.Service
		dir     func(t *testing.T) string
		wantErr error
	}{
		"disabled": {
			service: func(t *testing.T) *transcribe.Service { return newService(t, nil) },
			dir:     exportedSession,
			wantErr: transcribe.ErrDisabled,
		},
		"never exported": {
			service: func(t *testing.T) *transcribe.Service { return newService(t, &fakeTranscriber{}) },
			dir:     func(t *testing.T) string { return t.TempDir() },
			wantErr: os.ErrNotExist,
		},
		"every chunk fails": {
			service: func(t *testing.T) *transcribe.Service { return newService(t, failing) },
			dir:     exportedSession,
			wantErr: transcribe.ErrAllFailed,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.service(t).TranscribeSession(context.Background(), tt.dir(t))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_EstimatesCost(t *testing.T) {
	dir := exportedSession(t)
	pricingFile := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(pricingFile,
		[]byte(`{"models":{"whisper-1":{"name":"whisper-1","pricing":{"per_minute":0.6}}}}`), 0o644))

	tr := &fakeTranscriber{reply: func(string) []transcribe.Segment { return nil }}
	svc := transcribe.NewService(zaptest.NewLogger(t), tr, pkgopenai.NewPricingService(pricingFile),
		transcribe.Options{Model: "whisper-1"}, nil)

	res, err := svc.TranscribeSession(context.Background(), dir)
	require.NoError(t, err)

	require.NotNil(t, res.CostUSD)
	assert.InDelta(t, 0.02, *res.CostUSD, 1e-9)
	assert.Empty(t, res.Lines)
}
