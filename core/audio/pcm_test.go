package audio

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestEncodeFloat32RoundTripWithinOneStep(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	samples := make([]float32, 4096)
	for i := range samples {
		samples[i] = r.Float32()*2 - 1
	}
	samples[0], samples[1], samples[2] = -1, 1, 0

	decoded, err := DecodeLinear16(EncodeFloat32(samples))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}

	const step = 1.0 / 32768
	for i := range samples {
		if diff := math.Abs(float64(decoded[i] - samples[i])); diff > step {
			t.Fatalf("sample %d: expected %f within one step, got %f (diff %g)", i, samples[i], decoded[i], diff)
		}
	}
}

func TestEncodeFloat32ClampsAndScalesAsymmetrically(t *testing.T) {
	pcm := EncodeFloat32([]float32{1, -1, 2, -3, float32(math.NaN())})

	want := []int16{32767, -32768, 32767, -32768, 0}
	for i, w := range want {
		got := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		if got != w {
			t.Fatalf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestEncodeFloat32IntoRejectsMismatchedBuffers(t *testing.T) {
	err := EncodeFloat32Into(make([]byte, 3), []float32{0, 0})
	if !errors.Is(err, ErrFrameSizeMismatch) {
		t.Fatalf("expected ErrFrameSizeMismatch, got %v", err)
	}
}

func TestDecodeLinear16RejectsOddLength(t *testing.T) {
	if _, err := DecodeLinear16([]byte{1, 2, 3}); !errors.Is(err, ErrFrameSizeMismatch) {
		t.Fatalf("expected ErrFrameSizeMismatch, got %v", err)
	}
}
