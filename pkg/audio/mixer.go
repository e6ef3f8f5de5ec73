package audio

import (
	"slices"

	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

// TickMixer merges frames from several streams onto one shared tick
// timeline. Frames landing on the same tick are summed in an int32
// accumulator and saturated to int16 on retrieval.
//
// It is used to fold every stream that belongs to one speaker (a client that
// reconnected gets a fresh SSRC) into a single sparse track.
type TickMixer struct {
	ticks map[uint64][]int32
}

// NewTickMixer creates an empty mixer.
func NewTickMixer() *TickMixer {
	return &TickMixer{ticks: make(map[uint64][]int32)}
}

// Add sums pcm into the accumulator for tick. Frames of different lengths
// are allowed; the tick grows to the longest frame seen.
func (m *TickMixer) Add(tick uint64, pcm []int16) {
	acc := m.ticks[tick]
	if len(acc) < len(pcm) {
		acc = append(acc, make([]int32, len(pcm)-len(acc))...)
	}
	for i, v := range pcm {
		acc[i] += int32(v)
	}
	m.ticks[tick] = acc
}

// AddFrames adds every frame of one stream.
func (m *TickMixer) AddFrames(frames []sparse.Frame) {
	for _, f := range frames {
		m.Add(f.Tick, f.Samples)
	}
}

// Len returns the number of distinct ticks accumulated.
func (m *TickMixer) Len() int {
	return len(m.ticks)
}

// Frames returns the merged track in tick order with every sample clamped
// to the int16 range.
func (m *TickMixer) Frames() []sparse.Frame {
	ticks := make([]uint64, 0, len(m.ticks))
	for t := range m.ticks {
		ticks = append(ticks, t)
	}
	slices.Sort(ticks)

	out := make([]sparse.Frame, 0, len(ticks))
	for _, t := range ticks {
		acc := m.ticks[t]
		samples := make([]int16, len(acc))
		for i, v := range acc {
			samples[i] = saturateInt16(v)
		}
		out = append(out, sparse.Frame{Tick: t, Samples: samples})
	}
	return out
}

// Track is a continuous mono buffer placed at a sample offset on a shared
// timeline.
type Track struct {
	Offset  int
	Samples []int16
}

// MixTracks combines tracks into one buffer: each output sample is the sum of
// all tracks divided by the track count, clamped to the int16 range. The
// result spans from offset zero to the end of the longest track.
func MixTracks(tracks ...Track) []int16 {
	if len(tracks) == 0 {
		return nil
	}

	length := 0
	for _, t := range tracks {
		length = max(length, t.Offset+len(t.Samples))
	}

	acc := make([]int32, length)
	for _, t := range tracks {
		for i, v := range t.Samples {
			acc[t.Offset+i] += int32(v)
		}
	}

	n := int32(len(tracks))
	out := make([]int16, length)
	for i, v := range acc {
		out[i] = saturateInt16(v / n)
	}
	return out
}
