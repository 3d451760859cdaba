package orchestration

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/koscakluka/ema-duplex/core/audio"
)

type playbackUpdates struct {
	mu      sync.Mutex
	updates []playbackUpdate
}

func (u *playbackUpdates) record(update playbackUpdate) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, update)
}

func (u *playbackUpdates) snapshot() []playbackUpdate {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]playbackUpdate(nil), u.updates...)
}

func TestAudioOutputPlaysConcatenatedFragments(t *testing.T) {
	device := &testPlaybackDevice{}
	updates := &playbackUpdates{}
	output := newAudioOutput(device, updates.record)

	if err := output.Start("turn-1", [][]byte{{1, 2}, {3, 4}, {5, 6}}); err != nil {
		t.Fatalf("expected playback to start, got %v", err)
	}
	waitForCondition(t, testTimeout, "playback to begin", func() bool { return output.Status() == PlaybackPlaying })

	played, _ := device.snapshot()
	if len(played) != 1 || !bytes.Equal(played[0], []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("expected one buffer with every fragment in order, got %v", played)
	}
	if got := device.infos[0]; got.SampleRate != audio.PlaybackSampleRate || got.Channels != 1 {
		t.Fatalf("expected 44.1 kHz mono, got %+v", got)
	}

	device.finish()
	waitForCondition(t, testTimeout, "playback to finish", func() bool { return output.Status() == PlaybackFinished })

	got := updates.snapshot()
	if len(got) != 2 || got[0].status != PlaybackPlaying || got[1].status != PlaybackFinished {
		t.Fatalf("expected playing then finished, got %+v", got)
	}
	if output.Starts() != 1 || output.Releases() != 1 {
		t.Fatalf("expected one start and one release, got %d and %d", output.Starts(), output.Releases())
	}
}

func TestAudioOutputRetiresActivePlaybackBeforeStartingNext(t *testing.T) {
	device := &testPlaybackDevice{}
	output := newAudioOutput(device, nil)

	if err := output.Start("turn-1", [][]byte{{1, 2}}); err != nil {
		t.Fatalf("expected playback to start, got %v", err)
	}
	waitForCondition(t, testTimeout, "first playback", func() bool { return output.Status() == PlaybackPlaying })

	if err := output.Start("turn-2", [][]byte{{3, 4}}); err != nil {
		t.Fatalf("expected playback to restart, got %v", err)
	}
	if got := output.Releases(); got != 1 {
		t.Fatalf("expected the first playback to be released before the second starts, got %d releases", got)
	}
	if _, stops := device.snapshot(); stops != 1 {
		t.Fatalf("expected device to stop once, got %d", stops)
	}
	waitForCondition(t, testTimeout, "second playback", func() bool {
		played, _ := device.snapshot()
		return len(played) == 2 && output.Status() == PlaybackPlaying
	})
	if got := output.CurrentID(); got != "turn-2" {
		t.Fatalf("expected turn-2 to be current, got %s", got)
	}

	device.finish()
	waitForCondition(t, testTimeout, "second playback to finish", func() bool { return output.Status() == PlaybackFinished })
	if output.Starts() != output.Releases() {
		t.Fatalf("expected releases to match starts, got %d and %d", output.Releases(), output.Starts())
	}
}

func TestAudioOutputInterruptIsImmediate(t *testing.T) {
	device := &testPlaybackDevice{}
	updates := &playbackUpdates{}
	output := newAudioOutput(device, updates.record)

	if err := output.Start("turn-1", [][]byte{{1, 2}}); err != nil {
		t.Fatalf("expected playback to start, got %v", err)
	}
	waitForCondition(t, testTimeout, "playback to begin", func() bool { return output.Status() == PlaybackPlaying })

	if !output.Interrupt() {
		t.Fatalf("expected active playback to be interrupted")
	}
	if got := output.Status(); got != PlaybackInterrupted {
		t.Fatalf("expected interrupted, got %s", got)
	}
	if output.Interrupt() {
		t.Fatalf("expected nothing left to interrupt")
	}
	if device.finish() {
		t.Fatalf("expected device completion to be released with the stop")
	}
	if got := updates.snapshot(); len(got) != 1 {
		t.Fatalf("expected no update after the interrupt, got %+v", got)
	}
}

func TestAudioOutputDiscardsDecodeFinishingAfterInterrupt(t *testing.T) {
	device := &testPlaybackDevice{}
	output := newAudioOutput(device, nil)

	output.mu.Lock()
	output.generation++
	stale := output.generation
	output.status = PlaybackDecoding
	output.starts++
	output.mu.Unlock()

	output.Interrupt()
	output.onDecoded(stale, "turn-1", []byte{1, 2}, audio.GetPlaybackEncodingInfo(), nil)

	if played, _ := device.snapshot(); len(played) != 0 {
		t.Fatalf("expected a stale decode never to reach the device, got %d buffers", len(played))
	}
	if got := output.Status(); got != PlaybackInterrupted {
		t.Fatalf("expected to stay interrupted, got %s", got)
	}
}

func TestAudioOutputDecodeErrorFinishesWithoutPlaying(t *testing.T) {
	testCases := []struct {
		name      string
		container []byte
		wantErr   error
	}{
		{name: "garbage", container: []byte("definitely not audio"), wantErr: audio.ErrInvalidContainer},
		{name: "empty payload", container: audio.EncodeWAV(nil, audio.GetPlaybackEncodingInfo()), wantErr: audio.ErrPlaybackDecode},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			device := &testPlaybackDevice{}
			updates := &playbackUpdates{}
			output := newAudioOutput(device, updates.record)

			if err := output.StartContainer("turn-1", tc.container); err != nil {
				t.Fatalf("expected decode to start, got %v", err)
			}
			waitForCondition(t, testTimeout, "decode to fail", func() bool { return len(updates.snapshot()) == 1 })

			update := updates.snapshot()[0]
			var decodeErr *PlaybackDecodeError
			if !errors.As(update.err, &decodeErr) || decodeErr.PlaybackID != "turn-1" || !errors.Is(update.err, tc.wantErr) {
				t.Fatalf("expected PlaybackDecodeError wrapping %v, got %v", tc.wantErr, update.err)
			}
			if output.Status() != PlaybackFinished {
				t.Fatalf("expected finished, got %s", output.Status())
			}
			if played, _ := device.snapshot(); len(played) != 0 {
				t.Fatalf("expected nothing played")
			}
			if output.Starts() != output.Releases() {
				t.Fatalf("expected the failed playback to be released")
			}
		})
	}
}

func TestAudioOutputWithoutDevice(t *testing.T) {
	output := newAudioOutput(nil, nil)

	if err := output.Start("turn-1", [][]byte{{1, 2}}); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if output.Status() != PlaybackIdle {
		t.Fatalf("expected idle, got %s", output.Status())
	}
}
