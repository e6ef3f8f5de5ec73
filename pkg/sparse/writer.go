package sparse

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer appends frames to a sparse log. It is not safe for concurrent use.
type Writer struct {
	w       *bufio.Writer
	buf     []byte
	last    uint64
	hasLast bool
}

// NewWriter writes h to w and returns a Writer positioned after it.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	sw := &Writer{w: bufio.NewWriter(w)}
	if _, err := sw.w.Write(h.AppendBinary(nil)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return sw, nil
}

// ResumeWriter continues a log whose header is already on disk and whose
// last stored tick is lastTick.
func ResumeWriter(w io.Writer, lastTick uint64) *Writer {
	return &Writer{w: bufio.NewWriter(w), last: lastTick, hasLast: true}
}

// WriteFrame appends one record. Ticks must be strictly increasing.
func (sw *Writer) WriteFrame(f Frame) error {
	if sw.hasLast && f.Tick <= sw.last {
		return fmt.Errorf("%w: %d after %d", ErrTickOrder, f.Tick, sw.last)
	}
	if len(f.Samples) > MaxFrameSamples {
		return fmt.Errorf("%w: %d", ErrFrameTooLarge, len(f.Samples))
	}

	sw.buf = appendRecord(sw.buf[:0], f)
	if _, err := sw.w.Write(sw.buf); err != nil {
		return err
	}
	sw.last, sw.hasLast = f.Tick, true
	return nil
}

// Flush writes any buffered records to the underlying writer.
func (sw *Writer) Flush() error {
	return sw.w.Flush()
}

// AppendFrames encodes frames as consecutive records onto dst. It validates
// ordering within frames only; callers appending to an existing file check
// the boundary against the last stored tick themselves.
func AppendFrames(dst []byte, frames ...Frame) ([]byte, error) {
	for i, f := range frames {
		if i > 0 && f.Tick <= frames[i-1].Tick {
			return dst, fmt.Errorf("%w: %d after %d", ErrTickOrder, f.Tick, frames[i-1].Tick)
		}
		if len(f.Samples) > MaxFrameSamples {
			return dst, fmt.Errorf("%w: %d", ErrFrameTooLarge, len(f.Samples))
		}
		dst = appendRecord(dst, f)
	}
	return dst, nil
}

func appendRecord(dst []byte, f Frame) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, f.Tick)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(f.Samples)))
	for _, s := range f.Samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}
