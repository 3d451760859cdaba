package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFloat32 converts normalized samples into signed 16-bit little-endian
// PCM. The output is always 2*len(samples) bytes.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	// sizes always match here
	_ = EncodeFloat32Into(out, samples)
	return out
}

// EncodeFloat32Into is the allocation-free variant of [EncodeFloat32].
//
// Each sample is clamped to [-1, 1]. Negative values are scaled by 32768 and
// non-negative values by 32767 so +1.0 does not overflow.
func EncodeFloat32Into(dst []byte, samples []float32) error {
	if len(dst) != len(samples)*2 {
		return fmt.Errorf("%w: %d bytes for %d samples", ErrFrameSizeMismatch, len(dst), len(samples))
	}

	for i, sample := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(quantize(sample)))
	}
	return nil
}

// quantize rounds to the nearest step so a decode lands within half a step
// of the original sample.
func quantize(sample float32) int16 {
	s := float64(sample)
	if math.IsNaN(s) {
		s = 0
	}
	s = math.Max(-1, math.Min(1, s))

	if s < 0 {
		return int16(math.Round(s * 32768))
	}
	return int16(math.Round(s * 32767))
}

// DecodeLinear16 converts signed 16-bit little-endian PCM back into
// normalized samples using the inverse of the encoder's scaling.
func DecodeLinear16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: odd pcm length %d", ErrFrameSizeMismatch, len(pcm))
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if v < 0 {
			samples[i] = float32(v) / 32768
		} else {
			samples[i] = float32(v) / 32767
		}
	}
	return samples, nil
}
