package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-duplex/core/audio"
	"github.com/koscakluka/ema-duplex/core/events"
	"github.com/koscakluka/ema-duplex/core/fallback"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type testCaptureDevice struct {
	mu        sync.Mutex
	onSamples func([]float32)
	starts    int
	stops     int
	startErr  error
}

func (d *testCaptureDevice) StartCapture(_ context.Context, onSamples func([]float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.starts++
	d.onSamples = onSamples
	return nil
}

func (d *testCaptureDevice) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.onSamples = nil
	return nil
}

// feed delivers samples the way a device callback would. It reports false
// when no stream is open.
func (d *testCaptureDevice) feed(samples []float32) bool {
	d.mu.Lock()
	onSamples := d.onSamples
	d.mu.Unlock()

	if onSamples == nil {
		return false
	}
	onSamples(samples)
	return true
}

func (d *testCaptureDevice) counts() (starts, stops int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.stops
}

type testPlaybackDevice struct {
	mu         sync.Mutex
	played     [][]byte
	infos      []audio.EncodingInfo
	onFinished func()
	stops      int
}

func (d *testPlaybackDevice) Play(pcm []byte, info audio.EncodingInfo, onFinished func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.played = append(d.played, append([]byte(nil), pcm...))
	d.infos = append(d.infos, info)
	d.onFinished = onFinished
	return nil
}

func (d *testPlaybackDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.onFinished = nil
	return nil
}

// finish drains the buffer being played. It must not be called while the
// orchestrator is inside Play.
func (d *testPlaybackDevice) finish() bool {
	d.mu.Lock()
	onFinished := d.onFinished
	d.onFinished = nil
	d.mu.Unlock()

	if onFinished == nil {
		return false
	}
	onFinished()
	return true
}

func (d *testPlaybackDevice) snapshot() (played [][]byte, stops int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.played...), d.stops
}

type testMonitorTap struct {
	mu        sync.Mutex
	onSamples func([]float32)
	opens     int
	closes    int
}

func (tap *testMonitorTap) OpenTap(onSamples func([]float32)) error {
	tap.mu.Lock()
	defer tap.mu.Unlock()
	tap.opens++
	tap.onSamples = onSamples
	return nil
}

func (tap *testMonitorTap) CloseTap() error {
	tap.mu.Lock()
	defer tap.mu.Unlock()
	tap.closes++
	tap.onSamples = nil
	return nil
}

func (tap *testMonitorTap) isOpen() bool {
	tap.mu.Lock()
	defer tap.mu.Unlock()
	return tap.onSamples != nil
}

func (tap *testMonitorTap) feed(samples []float32) {
	tap.mu.Lock()
	onSamples := tap.onSamples
	tap.mu.Unlock()

	if onSamples != nil {
		onSamples(samples)
	}
}

func (tap *testMonitorTap) counts() (opens, closes int) {
	tap.mu.Lock()
	defer tap.mu.Unlock()
	return tap.opens, tap.closes
}

type testTransport struct {
	mu         sync.Mutex
	onEvent    func(events.Event)
	sessionID  string
	frames     [][]byte
	interrupts int
	ends       int
	rebinds    []string
	closes     int
}

func (tr *testTransport) Connect(_ context.Context, sessionID string, onEvent func(events.Event)) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.onEvent != nil {
		return errors.New("already connected")
	}
	tr.sessionID = sessionID
	tr.onEvent = onEvent
	return nil
}

func (tr *testTransport) Rebind(sessionID string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.sessionID = sessionID
	tr.rebinds = append(tr.rebinds, sessionID)
	return nil
}

func (tr *testTransport) SendAudio(frame []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.frames = append(tr.frames, append([]byte(nil), frame...))
	return nil
}

func (tr *testTransport) Interrupt() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.interrupts++
	return nil
}

func (tr *testTransport) EndUtterance() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.ends++
	return nil
}

func (tr *testTransport) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.closes++
	return nil
}

// deliver hands events to the orchestrator the way the transport goroutine
// does, one at a time and in order.
func (tr *testTransport) deliver(t *testing.T, evts ...events.Event) {
	t.Helper()

	tr.mu.Lock()
	onEvent := tr.onEvent
	tr.mu.Unlock()
	if onEvent == nil {
		t.Fatalf("transport was never connected")
	}
	for _, event := range evts {
		onEvent(event)
	}
}

func (tr *testTransport) open(t *testing.T) {
	t.Helper()
	tr.deliver(t,
		events.NewConnectionStateChanged(events.ConnectionConnecting, 0, nil),
		events.NewConnectionStateChanged(events.ConnectionOpen, 0, nil),
	)
}

type transportCounts struct {
	frames     int
	interrupts int
	ends       int
	closes     int
	rebinds    []string
}

func (tr *testTransport) counts() transportCounts {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return transportCounts{
		frames:     len(tr.frames),
		interrupts: tr.interrupts,
		ends:       tr.ends,
		closes:     tr.closes,
		rebinds:    append([]string(nil), tr.rebinds...),
	}
}

type testFallbackClient struct {
	mu         sync.Mutex
	response   *fallback.ChatResponse
	chatErr    error
	audio      []byte
	history    []events.HistoryMessage
	recordings [][]byte
	fetched    []string
}

func (c *testFallbackClient) Chat(_ context.Context, _ string, recording []byte) (*fallback.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordings = append(c.recordings, append([]byte(nil), recording...))
	return c.response, c.chatErr
}

func (c *testFallbackClient) History(context.Context, string) ([]events.HistoryMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history, nil
}

func (c *testFallbackClient) FetchAudio(_ context.Context, audioURL string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched = append(c.fetched, audioURL)
	return c.audio, nil
}

func (c *testFallbackClient) uploads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.recordings...)
}

// eventLog records everything the orchestrator emits.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(event events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) kinds() []events.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]events.Kind, 0, len(l.events))
	for _, event := range l.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func (l *eventLog) playbackOutcomes() []events.PlaybackOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	var outcomes []events.PlaybackOutcome
	for _, event := range l.events {
		if ended, ok := event.(events.PlaybackEnded); ok {
			outcomes = append(outcomes, ended.Outcome)
		}
	}
	return outcomes
}

func (l *eventLog) errors() []events.Error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []events.Error
	for _, event := range l.events {
		if err, ok := event.(events.Error); ok {
			errs = append(errs, err)
		}
	}
	return errs
}

func constantSamples(n int, value float32) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return samples
}
