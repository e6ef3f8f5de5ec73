package sparse

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

// Reader streams frames from a sparse log without holding more than one
// record in memory.
type Reader struct {
	r       *bufio.Reader
	header  Header
	rec     [recordHeaderSize]byte
	buf     []byte
	last    uint64
	hasLast bool
	offset  int64
}

// NewReader reads and validates the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	return &Reader{r: br, header: h, offset: HeaderSize}, nil
}

// Header returns the file header.
func (sr *Reader) Header() Header {
	return sr.header
}

// Next returns the next frame, or io.EOF once the log ends cleanly on a
// record boundary. A partial record yields an error wrapping ErrTruncated.
func (sr *Reader) Next() (Frame, error) {
	n, err := io.ReadFull(sr.r, sr.rec[:])
	switch {
	case err == io.EOF:
		return Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Frame{}, fmt.Errorf("%w: record header at offset %d has %d of %d bytes",
			ErrTruncated, sr.offset, n, recordHeaderSize)
	case err != nil:
		return Frame{}, err
	}

	tick := binary.LittleEndian.Uint64(sr.rec[:8])
	count := int(binary.LittleEndian.Uint16(sr.rec[8:10]))
	if sr.hasLast && tick <= sr.last {
		return Frame{}, fmt.Errorf("%w: %d after %d at offset %d", ErrTickOrder, tick, sr.last, sr.offset)
	}

	size := count * 2
	if cap(sr.buf) < size {
		sr.buf = make([]byte, size)
	}
	sr.buf = sr.buf[:size]
	if n, err := io.ReadFull(sr.r, sr.buf); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: tick %d claims %d samples, %d bytes remain",
				ErrTruncated, tick, count, n)
		}
		return Frame{}, err
	}

	samples := make([]int16, count)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(sr.buf[2*i:]))
	}

	sr.offset += int64(recordHeaderSize + size)
	sr.last, sr.hasLast = tick, true
	return Frame{Tick: tick, Samples: samples}, nil
}

// All iterates the remaining frames. Iteration stops after the first error,
// which is yielded with a zero frame.
func (sr *Reader) All() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for {
			f, err := sr.Next()
			if err == io.EOF {
				return
			}
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll decodes an entire log into memory.
func ReadAll(r io.Reader) (Header, []Frame, error) {
	sr, err := NewReader(r)
	if err != nil {
		return Header{}, nil, err
	}

	var frames []Frame
	for f, err := range sr.All() {
		if err != nil {
			return sr.header, frames, err
		}
		frames = append(frames, f)
	}
	return sr.header, frames, nil
}

// ReadFile decodes the log stored at path.
func ReadFile(path string) (Header, []Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	h, frames, err := ReadAll(f)
	if err != nil {
		return h, frames, fmt.Errorf("%s: %w", path, err)
	}
	return h, frames, nil
}
