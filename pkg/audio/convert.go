package audio

import "fmt"

// StereoToMono averages each interleaved L/R pair into one sample.
// A trailing unpaired sample is dropped.
func StereoToMono(st []int16) []int16 {
	n := len(st) / 2
	dst := make([]int16, n)
	for i := 0; i < n; i++ {
		dst[i] = int16((int32(st[2*i]) + int32(st[2*i+1])) / 2)
	}
	return dst
}

// Downsample reduces the sample rate by an integer factor, averaging each
// group of samples. A trailing partial group is averaged on its own.
func Downsample(src []int16, srcRate, dstRate int) ([]int16, error) {
	if dstRate <= 0 || srcRate < dstRate || srcRate%dstRate != 0 {
		return nil, fmt.Errorf("unsupported ratio %d:%d", srcRate, dstRate)
	}
	factor := srcRate / dstRate
	if factor == 1 {
		return append([]int16(nil), src...), nil
	}

	dst := make([]int16, 0, (len(src)+factor-1)/factor)
	for i := 0; i < len(src); i += factor {
		end := min(i+factor, len(src))
		var sum int32
		for _, v := range src[i:end] {
			sum += int32(v)
		}
		dst = append(dst, int16(sum/int32(end-i)))
	}
	return dst, nil
}

// saturateInt16 clamps v to the valid int16 range.
func saturateInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
