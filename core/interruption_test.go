package orchestration

import (
	"testing"
	"time"
)

func TestBargeInMonitorFiresOnceAboveThreshold(t *testing.T) {
	tap := &testMonitorTap{}
	monitor := newBargeInMonitor(tap, 256, DefaultBargeInThreshold, time.Millisecond)

	levels := make(chan float64, 4)
	if err := monitor.Start(func(level float64) { levels <- level }); err != nil {
		t.Fatalf("expected monitor to start, got %v", err)
	}
	if !monitor.IsActive() || !tap.isOpen() {
		t.Fatalf("expected tap to be open")
	}

	noise := loudNoise(256)
	waitForCondition(t, testTimeout, "barge-in", func() bool {
		tap.feed(noise)
		return len(levels) > 0
	})

	if level := <-levels; level <= DefaultBargeInThreshold {
		t.Fatalf("expected level above threshold, got %f", level)
	}
	if monitor.IsActive() || tap.isOpen() {
		t.Fatalf("expected monitor to stop itself before signalling")
	}

	tap.feed(noise)
	time.Sleep(10 * time.Millisecond)
	if len(levels) != 0 {
		t.Fatalf("expected a single signal, got %d more", len(levels))
	}
}

func TestBargeInMonitorIgnoresSilence(t *testing.T) {
	tap := &testMonitorTap{}
	monitor := newBargeInMonitor(tap, 256, DefaultBargeInThreshold, time.Millisecond)

	fired := make(chan float64, 1)
	if err := monitor.Start(func(level float64) { fired <- level }); err != nil {
		t.Fatalf("expected monitor to start, got %v", err)
	}
	defer monitor.Stop()

	silence := make([]float32, 256)
	for range 20 {
		tap.feed(silence)
		time.Sleep(time.Millisecond)
	}
	if len(fired) != 0 {
		t.Fatalf("expected silence not to trigger barge-in")
	}
}

func TestBargeInMonitorStopIsIdempotentAndRestartable(t *testing.T) {
	tap := &testMonitorTap{}
	monitor := newBargeInMonitor(tap, 0, 0, 0)

	if monitor.threshold != DefaultBargeInThreshold || monitor.interval != DefaultSamplingInterval {
		t.Fatalf("expected defaults, got threshold=%f interval=%s", monitor.threshold, monitor.interval)
	}

	if err := monitor.Start(func(float64) {}); err != nil {
		t.Fatalf("expected monitor to start, got %v", err)
	}
	if err := monitor.Start(func(float64) {}); err != nil {
		t.Fatalf("expected second start to be a no-op, got %v", err)
	}
	monitor.Stop()
	monitor.Stop()
	if err := monitor.Start(func(float64) {}); err != nil {
		t.Fatalf("expected monitor to restart, got %v", err)
	}
	monitor.Stop()

	if opens, closes := tap.counts(); opens != 2 || closes != 2 {
		t.Fatalf("expected two open/close cycles, got opens=%d closes=%d", opens, closes)
	}
}

func TestBargeInMonitorWithoutTapIsInert(t *testing.T) {
	monitor := newBargeInMonitor(nil, 0, 0, 0)

	if err := monitor.Start(func(float64) { t.Fatalf("unexpected barge-in") }); err != nil {
		t.Fatalf("expected start without a tap to be a no-op, got %v", err)
	}
	if monitor.IsActive() {
		t.Fatalf("expected monitor without a tap to stay inactive")
	}
	monitor.Stop()
}
