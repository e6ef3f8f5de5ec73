package sparse

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a sparse audio log.
var Magic = [4]byte{'V', 'T', 'C', 'K'}

const (
	// Version is the only layout this package reads and writes.
	Version uint8 = 1

	// HeaderSize is the encoded header length in bytes:
	// magic(4) | version(1) | sample rate(4) | channels(2).
	HeaderSize = 11

	recordHeaderSize = 10 // tick(8) | sample count(2)
)

// Header describes the format of every record in a file. It is written once
// and never changes.
type Header struct {
	Version    uint8
	SampleRate uint32
	Channels   uint16
}

// NewHeader returns a current-version header.
func NewHeader(sampleRate uint32, channels uint16) Header {
	return Header{Version: Version, SampleRate: sampleRate, Channels: channels}
}

// AppendBinary appends the encoded header to dst.
func (h Header) AppendBinary(dst []byte) []byte {
	dst = append(dst, Magic[:]...)
	dst = append(dst, h.Version)
	dst = binary.LittleEndian.AppendUint32(dst, h.SampleRate)
	return binary.LittleEndian.AppendUint16(dst, h.Channels)
}

// ReadHeader decodes and validates a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Header{}, fmt.Errorf("%w: short header", ErrTruncated)
		}
		return Header{}, err
	}

	if [4]byte(buf[:4]) != Magic {
		return Header{}, fmt.Errorf("%w: %q", ErrBadMagic, buf[:4])
	}

	h := Header{
		Version:    buf[4],
		SampleRate: binary.LittleEndian.Uint32(buf[5:9]),
		Channels:   binary.LittleEndian.Uint16(buf[9:11]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	return h, nil
}
