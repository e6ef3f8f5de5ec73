package audio

import "time"

// Format constants shared by the capture, storage and export layers.
const (
	// Discord input.
	DiscordSampleRate = 48_000 // Hz
	DiscordChannels   = 2      // interleaved stereo
	DiscordFrameSize  = 960    // samples per channel (20 ms)

	// Capture format. Everything persisted is mono at the Discord rate.
	CaptureChannels    = 1
	MonoFrameSamples   = DiscordFrameSize
	StereoFrameSamples = DiscordFrameSize * DiscordChannels

	// Transcription chunks are 16 kHz mono.
	TranscriptionSampleRate = 16_000
)

// TickDuration is the fixed length of one capture tick.
const TickDuration = 20 * time.Millisecond

// TicksToSeconds converts a tick count into seconds.
func TicksToSeconds(ticks uint64) float64 {
	return float64(ticks) * TickDuration.Seconds()
}
