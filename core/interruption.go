package orchestration

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-duplex/core/audio"
)

const (
	DefaultBargeInThreshold = 15.0
	// DefaultSamplingInterval is roughly one animation frame.
	DefaultSamplingInterval = 16 * time.Millisecond
)

// bargeInMonitor watches a passive microphone tap while the assistant is
// speaking and fires once when the spectrum level crosses the threshold.
type bargeInMonitor struct {
	tap       MonitorTap
	analyser  *audio.SpectrumAnalyser
	threshold float64
	interval  time.Duration

	mu     sync.Mutex
	active bool
	stop   chan struct{}
}

func newBargeInMonitor(tap MonitorTap, window int, threshold float64, interval time.Duration) *bargeInMonitor {
	if threshold <= 0 {
		threshold = DefaultBargeInThreshold
	}
	if interval <= 0 {
		interval = DefaultSamplingInterval
	}

	return &bargeInMonitor{
		tap:       tap,
		analyser:  audio.NewSpectrumAnalyser(window),
		threshold: threshold,
		interval:  interval,
	}
}

func (m *bargeInMonitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start opens the tap and begins sampling. onBargeIn is called at most once
// per Start, after the monitor has already stopped itself.
func (m *bargeInMonitor) Start(onBargeIn func(level float64)) error {
	if m.tap == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil
	}

	m.analyser.Reset()
	if err := m.tap.OpenTap(m.analyser.Write); err != nil {
		return err
	}

	stop := make(chan struct{})
	m.active = true
	m.stop = stop
	go m.sample(stop, onBargeIn)
	return nil
}

func (m *bargeInMonitor) sample(stop chan struct{}, onBargeIn func(level float64)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		level := m.analyser.AverageLevel()
		if level <= m.threshold {
			continue
		}

		m.mu.Lock()
		if m.stop != stop || !m.active {
			// stopped while this sample was taken
			m.mu.Unlock()
			return
		}
		m.stopLocked()
		m.mu.Unlock()

		onBargeIn(level)
		return
	}
}

// Stop closes the tap. It is safe to call when the monitor is not running.
func (m *bargeInMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
}

func (m *bargeInMonitor) stopLocked() {
	if !m.active {
		return
	}

	m.active = false
	close(m.stop)
	if err := m.tap.CloseTap(); err != nil {
		logger.Warn("failed to close monitor tap", "error", err)
	}
}
