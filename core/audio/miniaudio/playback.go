package miniaudio

import (
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-duplex/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext

	mu         sync.Mutex
	device     *malgo.Device
	generation uint64
}

// Play starts a new output device for pcm and calls onFinished once the whole
// buffer has been handed to the hardware. Any device still playing is torn
// down first and its onFinished is never called.
func (c *playbackClient) Play(pcm []byte, info audio.EncodingInfo, onFinished func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()
	c.generation++
	generation := c.generation

	if info.IsZero() {
		info = audio.GetPlaybackEncodingInfo()
	}
	channels := max(info.Channels, 1)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(info.SampleRate)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = config.SampleRate / 10 // ~100ms of audio
	config.Periods = 4

	queue := &playbackQueue{
		pcm:           pcm,
		bytesPerFrame: malgo.SampleSizeInBytes(malgo.FormatS16) * channels,
		onDrained: func() {
			go c.finish(generation, onFinished)
		},
	}

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{Data: queue.process})
	if err != nil {
		return classifyError("initialize playback device", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return classifyError("start playback device", err)
	}

	c.device = device
	return nil
}

// Stop releases the active device immediately, dropping anything not yet
// played.
func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.releaseLocked()
	return nil
}

func (c *playbackClient) finish(generation uint64, onFinished func()) {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return
	}
	c.releaseLocked()
	c.mu.Unlock()

	if onFinished != nil {
		onFinished()
	}
}

func (c *playbackClient) releaseLocked() {
	if c.device == nil {
		return
	}

	if c.device.IsStarted() {
		if err := c.device.Stop(); err != nil {
			logger.Warn("failed to stop playback device", "error", err)
		}
	}
	c.device.Uninit()
	c.device = nil
}

// playbackQueue is drained from the device callback thread only.
type playbackQueue struct {
	pcm           []byte
	position      int
	bytesPerFrame int

	drained   bool
	onDrained func()
}

func (q *playbackQueue) process(pOutput, _ []byte, frameCount uint32) {
	need := min(int(frameCount)*q.bytesPerFrame, len(pOutput))

	if q.position >= len(q.pcm) {
		clear(pOutput[:need])
		// the previous callback handed over the last bytes
		if !q.drained {
			q.drained = true
			q.onDrained()
		}
		return
	}

	n := copy(pOutput[:need], q.pcm[q.position:])
	clear(pOutput[n:need])
	q.position += n
}
