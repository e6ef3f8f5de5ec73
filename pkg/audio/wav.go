package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitsPerSample = 16
	wavFormatPCM  = 1
)

// ErrNotWAV is returned when a file is not a PCM RIFF/WAVE file.
var ErrNotWAV = errors.New("not a pcm wav file")

// WriteWAV writes mono 16-bit PCM samples to w as a RIFF/WAVE stream. The
// header sizes are patched on completion, so w must be seekable.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(w, sampleRate, bitsPerSample, CaptureChannels, wavFormatPCM)
	err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: CaptureChannels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitsPerSample,
	})
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	return err
}

// WriteWAVFile creates path and writes samples to it.
func WriteWAVFile(path string, samples []int16, sampleRate int) (err error) {
	if len(samples) == 0 {
		return errors.New("write wav: empty sample slice")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if err = WriteWAV(file, samples, sampleRate); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

// ReadWAV decodes a 16-bit PCM WAV stream. Multi-channel files come back
// interleaved.
func ReadWAV(r io.ReadSeeker) (samples []int16, sampleRate int, channels int, err error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if dec.WavAudioFormat != wavFormatPCM || dec.BitDepth != bitsPerSample {
		return nil, 0, 0, fmt.Errorf("%w: format %d, %d bits", ErrNotWAV, dec.WavAudioFormat, dec.BitDepth)
	}

	samples = make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, int(dec.SampleRate), int(dec.NumChans), nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) ([]int16, int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer file.Close()

	return ReadWAV(file)
}
