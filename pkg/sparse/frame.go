// Package sparse implements the tick-indexed audio log: a fixed header
// followed by append-only records, one per tick that carried audio. Ticks
// that never arrived are not stored; readers reconstruct them as silence.
package sparse

import "errors"

var (
	ErrBadMagic           = errors.New("sparse: unrecognized magic")
	ErrUnsupportedVersion = errors.New("sparse: unsupported version")
	ErrTruncated          = errors.New("sparse: truncated record")
	ErrTickOrder          = errors.New("sparse: tick index not strictly increasing")
	ErrFrameTooLarge      = errors.New("sparse: frame exceeds maximum sample count")
)

// MaxFrameSamples is the largest sample count a record can carry.
const MaxFrameSamples = 1<<16 - 1

// Frame is one 20 ms tick of mono PCM for one stream.
type Frame struct {
	Tick    uint64
	Samples []int16
}
