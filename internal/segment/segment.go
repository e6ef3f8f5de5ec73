// Package segment turns a speaker's sparse frames into speech segments:
// bounded, gap-bridged runs of ticks sized for transcription.
package segment

import (
	"slices"
	"time"

	"github.com/Raikerian/go-discord-recorder/pkg/audio"
	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

// Config controls segmentation. All values are in 20 ms ticks.
type Config struct {
	// MaxGapTicks is the largest run of missing ticks bridged inside one
	// segment.
	MaxGapTicks uint64
	// MinSegmentTicks is the shortest span kept when a segment closes on a
	// gap or at the end of input.
	MinSegmentTicks uint64
	// MaxSegmentTicks force-closes a segment once its span reaches it.
	MaxSegmentTicks uint64
	// OverlapTicks is how far WithOverlap reaches into the next segment.
	OverlapTicks uint64
}

// DefaultConfig bridges 40 ms of jitter and produces segments between
// 0.5 s and 45 s with 0.5 s of overlap.
func DefaultConfig() Config {
	return Config{
		MaxGapTicks:     2,
		MinSegmentTicks: 25,
		MaxSegmentTicks: 2250,
		OverlapTicks:    25,
	}
}

// Segment is a contiguous run of one speaker's ticks. EndTick is inclusive.
type Segment struct {
	Speaker   string
	StartTick uint64
	EndTick   uint64
	Frames    []sparse.Frame
}

// Ticks is the span of the segment, gaps included.
func (s Segment) Ticks() uint64 {
	return s.EndTick - s.StartTick + 1
}

// Duration is the span as wall time.
func (s Segment) Duration() time.Duration {
	return time.Duration(s.Ticks()) * audio.TickDuration
}

// Split segments frames, which must be in increasing tick order.
//
// A segment that closes on a gap or at the end of input and is shorter than
// MinSegmentTicks is dropped, except that when every candidate would be
// dropped the longest one (earliest on ties) is returned alone, so short
// but genuine audio is never discarded entirely. Force-closed segments are
// always kept.
func Split(cfg Config, speaker string, frames []sparse.Frame) []Segment {
	if len(frames) == 0 {
		return nil
	}

	var (
		kept     []Segment
		fallback *Segment
		cur      *Segment
	)

	closeNatural := func() {
		if cur == nil {
			return
		}
		if cur.Ticks() >= cfg.MinSegmentTicks {
			kept = append(kept, *cur)
		} else if fallback == nil || cur.Ticks() > fallback.Ticks() {
			fallback = cur
		}
		cur = nil
	}

	for _, f := range frames {
		if cur != nil && f.Tick-cur.EndTick > cfg.MaxGapTicks+1 {
			closeNatural()
		}
		// A bridged gap must not carry the span past the maximum.
		if cur != nil && cfg.MaxSegmentTicks > 0 && f.Tick-cur.StartTick+1 > cfg.MaxSegmentTicks {
			kept = append(kept, *cur)
			cur = nil
		}
		if cur == nil {
			cur = &Segment{Speaker: speaker, StartTick: f.Tick}
		}
		cur.Frames = append(cur.Frames, f)
		cur.EndTick = f.Tick

		if cfg.MaxSegmentTicks > 0 && cur.Ticks() >= cfg.MaxSegmentTicks {
			kept = append(kept, *cur)
			cur = nil
		}
	}
	closeNatural()

	if len(kept) == 0 && fallback != nil {
		return []Segment{*fallback}
	}
	return kept
}

// WithOverlap returns copies of segments where each one is extended with the
// frames of the following segment whose tick is before
// next.StartTick+overlapTicks. The input segments are left untouched.
func WithOverlap(segments []Segment, overlapTicks uint64) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		s.Frames = slices.Clone(s.Frames)

		if i+1 < len(segments) && overlapTicks > 0 {
			next := segments[i+1]
			limit := next.StartTick + overlapTicks
			for _, f := range next.Frames {
				if f.Tick >= limit {
					break
				}
				s.Frames = append(s.Frames, f)
				s.EndTick = f.Tick
			}
		}
		out[i] = s
	}
	return out
}

// Stats summarizes segment durations in ticks.
type Stats struct {
	Count  int
	Frames int
	Total  uint64
	Min    uint64
	Max    uint64
	Avg    float64
}

// Summarize computes Stats for segments.
func Summarize(segments []Segment) Stats {
	var st Stats
	for i, s := range segments {
		t := s.Ticks()
		st.Count++
		st.Frames += len(s.Frames)
		st.Total += t
		if i == 0 || t < st.Min {
			st.Min = t
		}
		st.Max = max(st.Max, t)
	}
	if st.Count > 0 {
		st.Avg = float64(st.Total) / float64(st.Count)
	}
	return st
}

// TotalDuration is Total as wall time.
func (s Stats) TotalDuration() time.Duration {
	return time.Duration(s.Total) * audio.TickDuration
}
