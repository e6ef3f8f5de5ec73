package sparse

import "fmt"

// RebuildContinuousPCM lays frames onto a zero-filled buffer covering
// first..last tick. Absent ticks stay silent, so a tick that never arrived
// and one that arrived as digital silence produce identical output. Frames
// must be sorted by tick. Each frame occupies exactly samplesPerTick samples:
// longer frames are cut, shorter ones leave a silent tail.
func RebuildContinuousPCM(frames []Frame, samplesPerTick int) []int16 {
	if len(frames) == 0 || samplesPerTick <= 0 {
		return nil
	}

	first := frames[0].Tick
	last := frames[len(frames)-1].Tick
	out := make([]int16, int(last-first+1)*samplesPerTick)

	for _, f := range frames {
		offset := int(f.Tick-first) * samplesPerTick
		n := min(len(f.Samples), samplesPerTick)
		copy(out[offset:offset+n], f.Samples[:n])
	}

	return out
}

// StreamingRebuilder produces the same samples as RebuildContinuousPCM one
// tick at a time. It keeps only the previous tick index and a reusable
// silence buffer, so arbitrarily long logs can be rebuilt from a Reader.
type StreamingRebuilder struct {
	samplesPerTick int
	emit           func([]int16) error

	silence []int16
	tickBuf []int16
	last    uint64
	started bool
}

// NewStreamingRebuilder creates a rebuilder that passes every tick-sized
// chunk to emit. Chunks are only valid for the duration of the call.
func NewStreamingRebuilder(samplesPerTick int, emit func([]int16) error) *StreamingRebuilder {
	return &StreamingRebuilder{
		samplesPerTick: samplesPerTick,
		emit:           emit,
		silence:        make([]int16, samplesPerTick),
		tickBuf:        make([]int16, samplesPerTick),
	}
}

// Push emits silence for every tick skipped since the previous frame, then
// the frame itself.
func (b *StreamingRebuilder) Push(f Frame) error {
	if b.started {
		if f.Tick <= b.last {
			return fmt.Errorf("%w: %d after %d", ErrTickOrder, f.Tick, b.last)
		}
		for gap := f.Tick - b.last - 1; gap > 0; gap-- {
			if err := b.emit(b.silence); err != nil {
				return err
			}
		}
	}

	n := copy(b.tickBuf, f.Samples)
	clear(b.tickBuf[n:])
	if err := b.emit(b.tickBuf); err != nil {
		return err
	}

	b.last, b.started = f.Tick, true
	return nil
}
