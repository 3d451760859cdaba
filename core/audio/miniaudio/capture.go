package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-duplex/core/audio"
)

// tapClient is a low-latency float32 capture device that only feeds the
// barge-in analyser. It never produces frames for the transport.
type tapClient struct {
	audioContext *malgo.AllocatedContext

	mu     sync.Mutex
	device *malgo.Device
}

func (c *tapClient) OpenTap(onSamples func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil
	}

	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(audio.CaptureSampleRate)
	config.Capture.Format = format
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 256
	config.Periods = 3

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			samples := make([]float32, frameCount)
			for i := range samples {
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInput[i*4:]))
			}
			onSamples(samples)
		},
	})
	if err != nil {
		return classifyError("initialize monitor tap", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return classifyError("start monitor tap", err)
	}

	c.device = device
	return nil
}

func (c *tapClient) CloseTap() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	var err error
	if c.device.IsStarted() {
		if stopErr := c.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop monitor tap: %w", stopErr)
		}
	}
	c.device.Uninit()
	c.device = nil
	return err
}
