package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-duplex/core/audio"
	"github.com/koscakluka/ema-duplex/core/events"
	"github.com/koscakluka/ema-duplex/core/fallback"
)

type OrchestratorOption func(*Orchestrator)

// CaptureDevice is the exclusive microphone stream. onSamples receives
// normalized mono samples at the capture rate and must not be retained.
type CaptureDevice interface {
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
}

func WithCaptureDevice(device CaptureDevice) OrchestratorOption {
	return func(o *Orchestrator) { o.captureDevice = device }
}

// PlaybackDevice plays one PCM buffer at a time. onFinished is called once
// when the buffer has drained and never from inside Play. Stop releases the
// device without calling onFinished.
type PlaybackDevice interface {
	Play(pcm []byte, info audio.EncodingInfo, onFinished func()) error
	Stop() error
}

func WithPlaybackDevice(device PlaybackDevice) OrchestratorOption {
	return func(o *Orchestrator) { o.playbackDevice = device }
}

// MonitorTap is the passive microphone used to notice the user speaking
// over playback.
type MonitorTap interface {
	OpenTap(onSamples func(samples []float32)) error
	CloseTap() error
}

func WithMonitorTap(tap MonitorTap) OrchestratorOption {
	return func(o *Orchestrator) { o.monitorTap = tap }
}

// Transport is the duplex channel to the backend. Events, including
// connection state changes, are delivered through onEvent in arrival order.
type Transport interface {
	Connect(ctx context.Context, sessionID string, onEvent func(events.Event)) error
	Rebind(sessionID string) error
	SendAudio(frame []byte) error
	Interrupt() error
	EndUtterance() error
	Close() error
}

func WithTransport(transport Transport) OrchestratorOption {
	return func(o *Orchestrator) { o.transport = transport }
}

// FallbackClient serves whole-recording exchanges while the duplex channel
// is down.
type FallbackClient interface {
	Chat(ctx context.Context, sessionID string, recording []byte) (*fallback.ChatResponse, error)
	History(ctx context.Context, sessionID string) ([]events.HistoryMessage, error)
	FetchAudio(ctx context.Context, audioURL string) ([]byte, error)
}

func WithFallbackClient(client FallbackClient) OrchestratorOption {
	return func(o *Orchestrator) { o.fallback = client }
}

func WithSessionStore(store SessionStore) OrchestratorOption {
	return func(o *Orchestrator) {
		if store != nil {
			o.sessionStore = store
		}
	}
}

// WithSessionID pins the session id instead of resuming the stored one.
func WithSessionID(sessionID string) OrchestratorOption {
	return func(o *Orchestrator) { o.sessionID = sessionID }
}

// WithCaptureFrameSize sets how many samples go into one outbound frame.
func WithCaptureFrameSize(samples int) OrchestratorOption {
	return func(o *Orchestrator) { o.captureFrameSize = samples }
}

// WithBargeInThreshold sets the average spectrum level, on a 0-255 scale,
// above which the user is considered to be talking over playback.
func WithBargeInThreshold(threshold float64) OrchestratorOption {
	return func(o *Orchestrator) { o.bargeInThreshold = threshold }
}

func WithAnalysisWindow(samples int) OrchestratorOption {
	return func(o *Orchestrator) { o.analysisWindow = samples }
}

func WithSamplingInterval(interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.samplingInterval = interval }
}

// WithContinuousListening restarts capture after every reply instead of
// waiting for StartRecording.
func WithContinuousListening(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.continuousListening = enabled }
}

// WithResponseArchive saves the audio of every reply as a WAV file in dir.
func WithResponseArchive(dir string) OrchestratorOption {
	return func(o *Orchestrator) { o.archive = newResponseArchive(dir) }
}

// Callbacks run on the orchestrator's event loop, in order. They must not
// block and must not call back into the orchestrator synchronously.
type orchestratorCallbacks struct {
	onStateChanged      func(from, to ConversationState)
	onConnectionChanged func(state events.ConnectionState, attempt int)
	onTranscriptPreview func(transcript string)
	onTranscript        func(transcript string)
	onResponse          func(response string)
	onResponseEnd       func(response string)
	onHistory           func(messages []events.HistoryMessage)
	onPlaybackStarted   func(turnID string)
	onPlaybackEnded     func(turnID string, outcome events.PlaybackOutcome)
	onBargeIn           func(level float64)
	onError             func(err error, recoverable bool)
	onEvent             func(event events.Event)
}

func WithStateChangedCallback(callback func(from, to ConversationState)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onStateChanged = callback }
}

func WithConnectionCallback(callback func(state events.ConnectionState, attempt int)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onConnectionChanged = callback }
}

// WithTranscriptPreviewCallback receives the live transcript of the user's
// current utterance. Each call replaces the previous preview.
func WithTranscriptPreviewCallback(callback func(transcript string)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onTranscriptPreview = callback }
}

// WithTranscriptCallback receives every final, non-empty user transcript.
func WithTranscriptCallback(callback func(transcript string)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onTranscript = callback }
}

// WithResponseCallback receives the whole response text so far each time it
// grows.
func WithResponseCallback(callback func(response string)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onResponse = callback }
}

func WithResponseEndCallback(callback func(response string)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onResponseEnd = callback }
}

func WithHistoryCallback(callback func(messages []events.HistoryMessage)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onHistory = callback }
}

func WithPlaybackStartedCallback(callback func(turnID string)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onPlaybackStarted = callback }
}

func WithPlaybackEndedCallback(callback func(turnID string, outcome events.PlaybackOutcome)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onPlaybackEnded = callback }
}

func WithBargeInCallback(callback func(level float64)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onBargeIn = callback }
}

func WithErrorCallback(callback func(err error, recoverable bool)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onError = callback }
}

// WithEventListener receives every event the orchestrator emits, after the
// typed callbacks.
func WithEventListener(listener func(event events.Event)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onEvent = listener }
}
