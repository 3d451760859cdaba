package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-duplex/core/audio"
)

const DefaultCaptureFrameSize = 4096

// audioInput slices the capture device's sample stream into fixed-size
// encoded frames. At most one capture stream is active at a time.
type audioInput struct {
	device    CaptureDevice
	frameSize int

	// active reports whether the capture device is currently streaming.
	active atomic.Bool
	// generation invalidates samples delivered by a stream that was stopped.
	generation    atomic.Uint64
	framesEmitted atomic.Int64

	mu      sync.Mutex
	pending []float32
	sink    func(frame []byte)
}

func newAudioInput(device CaptureDevice, frameSize int) *audioInput {
	if frameSize <= 0 {
		frameSize = DefaultCaptureFrameSize
	}

	return &audioInput{device: device, frameSize: frameSize}
}

func (a *audioInput) IsActive() bool     { return a != nil && a.active.Load() }
func (a *audioInput) FramesEmitted() int { return int(a.framesEmitted.Load()) }

// Start opens the capture device and hands every full frame to sink. A
// stream that is already active is stopped first.
func (a *audioInput) Start(ctx context.Context, sink func(frame []byte)) error {
	if a.device == nil {
		return audio.ErrDeviceUnavailable
	}

	if a.IsActive() {
		if err := a.Stop(); err != nil {
			logger.Warn("failed to stop previous capture", "error", err)
		}
	}

	generation := a.generation.Add(1)
	a.mu.Lock()
	a.pending = make([]float32, 0, a.frameSize)
	a.sink = sink
	a.mu.Unlock()

	if err := a.device.StartCapture(ctx, func(samples []float32) {
		a.onSamples(generation, samples)
	}); err != nil {
		a.generation.Add(1)
		return err
	}

	a.active.Store(true)
	return nil
}

func (a *audioInput) onSamples(generation uint64, samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if generation != a.generation.Load() || a.sink == nil {
		return
	}

	a.pending = append(a.pending, samples...)
	for len(a.pending) >= a.frameSize {
		frame := audio.EncodeFloat32(a.pending[:a.frameSize])
		a.pending = append(a.pending[:0], a.pending[a.frameSize:]...)

		a.framesEmitted.Add(1)
		a.sink(frame)
	}
}

// Stop releases the capture device and drops any partial frame. It is safe
// to call when capture is not active.
func (a *audioInput) Stop() error {
	if a == nil || !a.active.CompareAndSwap(true, false) {
		return nil
	}

	a.generation.Add(1)
	err := a.device.StopCapture()

	a.mu.Lock()
	a.pending = nil
	a.sink = nil
	a.mu.Unlock()

	if err != nil {
		return errors.Join(errors.New("failed to stop capture"), err)
	}
	return nil
}
