package orchestration

import (
	"fmt"
	"sync"

	"github.com/koscakluka/ema-duplex/core/audio"
)

type PlaybackStatus int

const (
	PlaybackIdle PlaybackStatus = iota
	PlaybackDecoding
	PlaybackPlaying
	PlaybackInterrupted
	PlaybackFinished
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackDecoding:
		return "decoding"
	case PlaybackPlaying:
		return "playing"
	case PlaybackInterrupted:
		return "interrupted"
	case PlaybackFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// PlaybackDecodeError reports a turn whose audio could not be played. The
// turn's text is still valid.
type PlaybackDecodeError struct {
	PlaybackID string
	Err        error
}

func (e *PlaybackDecodeError) Error() string {
	return fmt.Sprintf("playback %s: %v", e.PlaybackID, e.Err)
}

func (e *PlaybackDecodeError) Unwrap() error { return e.Err }

// playbackUpdate is reported for transitions that happen off the caller's
// goroutine: reaching Playing, and finishing naturally or by failure.
type playbackUpdate struct {
	id     string
	status PlaybackStatus
	pcm    []byte
	err    error
}

// audioOutput runs one decode and play cycle at a time.
//
// Every cycle gets a generation. Decode results and device completions for
// an older generation are dropped, so a decode that finishes after the
// cycle was interrupted or replaced never reaches the device.
type audioOutput struct {
	device PlaybackDevice
	info   audio.EncodingInfo

	onUpdate func(playbackUpdate)

	mu         sync.Mutex
	status     PlaybackStatus
	currentID  string
	generation uint64
	starts     int
	releases   int
}

func newAudioOutput(device PlaybackDevice, onUpdate func(playbackUpdate)) *audioOutput {
	if onUpdate == nil {
		onUpdate = func(playbackUpdate) {}
	}

	return &audioOutput{
		device:   device,
		info:     audio.GetPlaybackEncodingInfo(),
		onUpdate: onUpdate,
	}
}

func (a *audioOutput) Status() PlaybackStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *audioOutput) CurrentID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentID
}

// Starts counts playback cycles begun.
func (a *audioOutput) Starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

// Releases counts playback cycles retired for any reason.
func (a *audioOutput) Releases() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releases
}

// Start concatenates fragments in order, packages them into a WAV container
// at the playback rate and plays the result.
func (a *audioOutput) Start(id string, fragments [][]byte) error {
	size := 0
	for _, fragment := range fragments {
		size += len(fragment)
	}
	pcm := make([]byte, 0, size)
	for _, fragment := range fragments {
		pcm = append(pcm, fragment...)
	}

	return a.StartContainer(id, audio.EncodeWAV(pcm, a.info))
}

// StartContainer plays an already packaged WAV container. An active cycle is
// retired before the new one begins.
func (a *audioOutput) StartContainer(id string, container []byte) error {
	if a.device == nil {
		return audio.ErrDeviceUnavailable
	}

	a.mu.Lock()
	a.retireLocked()
	a.generation++
	generation := a.generation
	a.starts++
	a.currentID = id
	a.status = PlaybackDecoding
	a.mu.Unlock()

	go func() {
		pcm, info, err := audio.DecodeWAV(container)
		a.onDecoded(generation, id, pcm, info, err)
	}()
	return nil
}

func (a *audioOutput) onDecoded(generation uint64, id string, pcm []byte, info audio.EncodingInfo, err error) {
	a.mu.Lock()
	if generation != a.generation || a.status != PlaybackDecoding {
		a.mu.Unlock()
		return
	}

	if err != nil {
		a.status = PlaybackFinished
		a.releases++
		a.mu.Unlock()
		a.onUpdate(playbackUpdate{id: id, status: PlaybackFinished, err: &PlaybackDecodeError{PlaybackID: id, Err: err}})
		return
	}

	if err := a.device.Play(pcm, info, func() { a.onDeviceFinished(generation, id, pcm) }); err != nil {
		a.status = PlaybackFinished
		a.releases++
		a.mu.Unlock()
		a.onUpdate(playbackUpdate{id: id, status: PlaybackFinished, err: err})
		return
	}

	a.status = PlaybackPlaying
	a.mu.Unlock()
	a.onUpdate(playbackUpdate{id: id, status: PlaybackPlaying, pcm: pcm})
}

func (a *audioOutput) onDeviceFinished(generation uint64, id string, pcm []byte) {
	a.mu.Lock()
	if generation != a.generation || a.status != PlaybackPlaying {
		a.mu.Unlock()
		return
	}

	a.status = PlaybackFinished
	a.releases++
	a.mu.Unlock()
	a.onUpdate(playbackUpdate{id: id, status: PlaybackFinished, pcm: pcm})
}

// Interrupt releases the active cycle immediately, whether it is still
// decoding or already playing. It reports whether anything was interrupted.
func (a *audioOutput) Interrupt() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.retireLocked()
}

func (a *audioOutput) retireLocked() bool {
	if a.status != PlaybackDecoding && a.status != PlaybackPlaying {
		return false
	}

	if a.status == PlaybackPlaying {
		if err := a.device.Stop(); err != nil {
			logger.Warn("failed to stop playback device", "error", err)
		}
	}
	a.generation++
	a.status = PlaybackInterrupted
	a.releases++
	return true
}
