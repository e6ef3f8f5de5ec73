package audio

import (
	"errors"
	"fmt"
	"sync"

	"layeh.com/gopus"
)

// OpusDecoder turns Discord Opus packets into 48 kHz interleaved stereo PCM.
// Opus decoders are stateful, so callers keep one per SSRC.
type OpusDecoder struct {
	mu     sync.Mutex
	dec    *gopus.Decoder
	closed bool
}

// NewOpusDecoder creates a decoder for the Discord wire format.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(DiscordSampleRate, DiscordChannels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec}, nil
}

// Decode decodes one 20 ms packet. The result holds StereoFrameSamples
// interleaved samples for a regular voice frame.
func (d *OpusDecoder) Decode(opus []byte) ([]int16, error) {
	if len(opus) == 0 {
		return nil, errors.New("opus payload empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("decoder closed")
	}

	pcm, err := d.dec.Decode(opus, DiscordFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	return pcm, nil
}

// Close marks the decoder unusable.
func (d *OpusDecoder) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}
