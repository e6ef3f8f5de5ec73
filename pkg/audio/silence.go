package audio

import "math"

// DefaultSilenceThreshold is the normalised RMS below which a buffer is
// treated as silent.
const DefaultSilenceThreshold = 0.01

// RMS returns the root mean square of samples normalised to [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// IsSilent reports whether the RMS of samples is below threshold.
func IsSilent(samples []int16, threshold float64) bool {
	return RMS(samples) < threshold
}

// TrimSilence strips leading and trailing windows whose RMS is below
// threshold. It returns the trimmed slice (sharing memory with samples) and
// the number of samples removed from the front.
func TrimSilence(samples []int16, window int, threshold float64) ([]int16, int) {
	if window <= 0 || len(samples) == 0 {
		return samples, 0
	}

	start := 0
	for start < len(samples) {
		end := min(start+window, len(samples))
		if !IsSilent(samples[start:end], threshold) {
			break
		}
		start = end
	}
	if start >= len(samples) {
		return samples[:0], len(samples)
	}

	stop := len(samples)
	for stop > start {
		begin := max(stop-window, start)
		if !IsSilent(samples[begin:stop], threshold) {
			break
		}
		stop = begin
	}

	return samples[start:stop], start
}
