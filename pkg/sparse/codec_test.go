package sparse_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

func encode(t *testing.T, frames ...sparse.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := sparse.NewWriter(&buf, sparse.NewHeader(48000, 1))
	require.NoError(t, err)
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f))
	}
	require.NoError(t, w.Flush())
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	frames := []sparse.Frame{
		{Tick: 0, Samples: []int16{1, -2, 3}},
		{Tick: 1, Samples: []int16{32767, -32768}},
		{Tick: 7, Samples: []int16{}},
		{Tick: 1 << 40, Samples: []int16{42}},
	}
	data := encode(t, frames...)

	t.Run("ReadAll", func(t *testing.T) {
		h, got, err := sparse.ReadAll(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, sparse.NewHeader(48000, 1), h)
		require.Len(t, got, len(frames))
		for i := range frames {
			assert.Equal(t, frames[i].Tick, got[i].Tick)
			assert.Equal(t, frames[i].Samples, got[i].Samples)
		}
	})

	t.Run("Iterator", func(t *testing.T) {
		r, err := sparse.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		for _, want := range frames {
			got, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, want.Tick, got.Tick)
			assert.Equal(t, want.Samples, got.Samples)
		}
		_, err = r.Next()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("RangeFunc", func(t *testing.T) {
		r, err := sparse.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		var ticks []uint64
		for f, err := range r.All() {
			require.NoError(t, err)
			ticks = append(ticks, f.Tick)
		}
		assert.Equal(t, []uint64{0, 1, 7, 1 << 40}, ticks)
	})
}

func TestLayout(t *testing.T) {
	data := encode(t, sparse.Frame{Tick: 2, Samples: []int16{1, -1}})

	want := []byte{
		'V', 'T', 'C', 'K', // magic
		1,                // version
		0x80, 0xbb, 0, 0, // 48000
		1, 0, // channels
		2, 0, 0, 0, 0, 0, 0, 0, // tick
		2, 0, // count
		1, 0, 0xff, 0xff, // samples
	}
	assert.Equal(t, want, data)
}

func TestAppendFramesMatchesWriter(t *testing.T) {
	frames := []sparse.Frame{{Tick: 3, Samples: []int16{9}}, {Tick: 4, Samples: []int16{10, 11}}}

	data := sparse.NewHeader(48000, 1).AppendBinary(nil)
	data, err := sparse.AppendFrames(data, frames...)
	require.NoError(t, err)

	assert.Equal(t, encode(t, frames...), data)
}

func TestDecodeErrors(t *testing.T) {
	valid := encode(t, sparse.Frame{Tick: 0, Samples: []int16{1, 2, 3}})

	tests := map[string]struct {
		data    []byte
		wantErr error
	}{
		"bad magic": {
			data:    append([]byte("RIFF"), valid[4:]...),
			wantErr: sparse.ErrBadMagic,
		},
		"unknown version": {
			data:    append(append(append([]byte{}, valid[:4]...), 9), valid[5:]...),
			wantErr: sparse.ErrUnsupportedVersion,
		},
		"short header": {
			data:    valid[:6],
			wantErr: sparse.ErrTruncated,
		},
		"truncated record header": {
			data:    valid[:sparse.HeaderSize+4],
			wantErr: sparse.ErrTruncated,
		},
		"truncated samples": {
			data:    valid[:len(valid)-1],
			wantErr: sparse.ErrTruncated,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := sparse.ReadAll(bytes.NewReader(tc.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestReaderRejectsOutOfOrderRecords(t *testing.T) {
	data := sparse.NewHeader(48000, 1).AppendBinary(nil)
	data, err := sparse.AppendFrames(data, sparse.Frame{Tick: 5, Samples: []int16{1}})
	require.NoError(t, err)
	data, err = sparse.AppendFrames(data, sparse.Frame{Tick: 5, Samples: []int16{2}})
	require.NoError(t, err)

	_, frames, err := sparse.ReadAll(bytes.NewReader(data))
	assert.ErrorIs(t, err, sparse.ErrTickOrder)
	assert.Len(t, frames, 1)
}

func TestWriterOrdering(t *testing.T) {
	w, err := sparse.NewWriter(io.Discard, sparse.NewHeader(48000, 1))
	require.NoError(t, err)

	require.NoError(t, w.WriteFrame(sparse.Frame{Tick: 10}))
	assert.ErrorIs(t, w.WriteFrame(sparse.Frame{Tick: 10}), sparse.ErrTickOrder)
	assert.ErrorIs(t, w.WriteFrame(sparse.Frame{Tick: 9}), sparse.ErrTickOrder)
	assert.NoError(t, w.WriteFrame(sparse.Frame{Tick: 11}))

	resumed := sparse.ResumeWriter(io.Discard, 11)
	assert.ErrorIs(t, resumed.WriteFrame(sparse.Frame{Tick: 11}), sparse.ErrTickOrder)

	_, err = sparse.AppendFrames(nil, sparse.Frame{Tick: 2}, sparse.Frame{Tick: 1})
	assert.ErrorIs(t, err, sparse.ErrTickOrder)

	assert.ErrorIs(t, w.WriteFrame(sparse.Frame{Tick: 12, Samples: make([]int16, sparse.MaxFrameSamples+1)}),
		sparse.ErrFrameTooLarge)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk.vtck")
	require.NoError(t, os.WriteFile(path, encode(t, sparse.Frame{Tick: 1, Samples: []int16{5}}), 0o644))

	_, frames, err := sparse.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint64(1), frames[0].Tick)

	require.NoError(t, os.WriteFile(path, []byte("garbage!!!!!"), 0o644))
	_, _, err = sparse.ReadFile(path)
	assert.ErrorIs(t, err, sparse.ErrBadMagic)
	assert.Contains(t, err.Error(), path)
}
