package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

const (
	DefaultAnalysisWindow     = 256
	DefaultSmoothingTimeConst = 0.8
	DefaultMinDecibels        = -100.0
	DefaultMaxDecibels        = -30.0
	maxByteFrequencyMagnitude = 255.0
)

// SpectrumAnalyser estimates how loud the most recent window of samples is,
// expressed per frequency bin on a 0-255 scale.
//
// The scale follows the usual analyser convention: magnitudes are Blackman
// windowed, smoothed over time, converted to decibels and mapped linearly
// from [MinDecibels, MaxDecibels] onto [0, 255].
type SpectrumAnalyser struct {
	mu sync.Mutex

	size        int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	window   []float64
	ring     []float64
	writePos int

	smoothed []float64
}

func NewSpectrumAnalyser(size int) *SpectrumAnalyser {
	if size < 2 {
		size = DefaultAnalysisWindow
	}

	window := make([]float64, size)
	for i := range window {
		x := 2 * math.Pi * float64(i) / float64(size)
		window[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}

	return &SpectrumAnalyser{
		size:        size,
		smoothing:   DefaultSmoothingTimeConst,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
		window:      window,
		ring:        make([]float64, size),
		smoothed:    make([]float64, size/2),
	}
}

// Bins is the number of frequency bins reported by [SpectrumAnalyser.ByteFrequencyData].
func (a *SpectrumAnalyser) Bins() int { return a.size / 2 }

// Write appends samples to the analysis window, keeping only the latest
// window-sized block.
func (a *SpectrumAnalyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) > a.size {
		samples = samples[len(samples)-a.size:]
	}
	for _, s := range samples {
		a.ring[a.writePos] = float64(s)
		a.writePos = (a.writePos + 1) % a.size
	}
}

// ByteFrequencyData analyses the current window and returns one 0-255 value
// per bin. Each call advances the temporal smoothing by one step.
func (a *SpectrumAnalyser) ByteFrequencyData() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame := make([]float64, a.size)
	for i := range frame {
		frame[i] = a.ring[(a.writePos+i)%a.size] * a.window[i]
	}

	spectrum := fft.FFTReal(frame)
	out := make([]uint8, len(a.smoothed))
	scale := maxByteFrequencyMagnitude / (a.maxDecibels - a.minDecibels)
	for k := range a.smoothed {
		magnitude := cmplx.Abs(spectrum[k]) / float64(a.size)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*magnitude

		if a.smoothed[k] <= 0 {
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		v := scale * (db - a.minDecibels)
		out[k] = uint8(math.Max(0, math.Min(maxByteFrequencyMagnitude, math.Floor(v))))
	}
	return out
}

// AverageLevel is the mean of [SpectrumAnalyser.ByteFrequencyData].
func (a *SpectrumAnalyser) AverageLevel() float64 {
	data := a.ByteFrequencyData()
	if len(data) == 0 {
		return 0
	}

	var sum int
	for _, v := range data {
		sum += int(v)
	}
	return float64(sum) / float64(len(data))
}

func (a *SpectrumAnalyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.ring)
	clear(a.smoothed)
	a.writePos = 0
}
