package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-duplex/core/audio"
	"github.com/koscakluka/ema-duplex/core/events"
	"github.com/koscakluka/ema-duplex/core/fallback"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const orchestratorQueueCapacity = 32

// Orchestrator is the conversation state machine. It is the only component
// that starts or stops capture and playback.
//
// Every state change runs on one event loop: public methods, transport
// events, playback completions and barge-in signals are all queued onto it,
// so events for one turn are handled strictly in arrival order.
type Orchestrator struct {
	captureDevice  CaptureDevice
	playbackDevice PlaybackDevice
	monitorTap     MonitorTap
	transport      Transport
	fallback       FallbackClient
	sessionStore   SessionStore
	archive        *responseArchive

	sessionID           string
	captureFrameSize    int
	bargeInThreshold    float64
	analysisWindow      int
	samplingInterval    time.Duration
	continuousListening bool

	callbacks orchestratorCallbacks
	emit      eventEmitter

	input     *audioInput
	output    *audioOutput
	monitor   *bargeInMonitor
	assembler *turnAssembler

	queue   chan func()
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	closed    atomic.Bool

	baseContext context.Context
	cancel      context.CancelFunc
	stopHook    chan struct{}

	// mu guards state so State can be read from any goroutine. The fields
	// after it are only touched on the loop.
	mu    sync.Mutex
	state OrchestratorState

	playingTurnID  string
	playingArchive []byte
	framesAtStart  int
	rebinding      bool
	fallbackActive bool
	fallbackGen    uint64

	// recordingMu guards the fallback recording, which the capture sink
	// appends to from the device goroutine.
	recordingMu sync.Mutex
	recording   []byte
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sessionStore: &memorySessionStore{},
		baseContext:  context.Background(),
		queue:        make(chan func(), orchestratorQueueCapacity),
		closeCh:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.emit = newCallbackEventEmitter(o.callbacks)
	o.input = newAudioInput(o.captureDevice, o.captureFrameSize)
	o.output = newAudioOutput(o.playbackDevice, func(update playbackUpdate) {
		o.post(func() { o.onPlaybackUpdate(update) })
	})
	o.monitor = newBargeInMonitor(o.monitorTap, o.analysisWindow, o.bargeInThreshold, o.samplingInterval)
	o.assembler = newTurnAssembler()

	return o
}

// Start resolves the session id, starts the event loop and connects the
// transport. Cancelling ctx closes the orchestrator.
//
// Start may only be called once.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if o.transport == nil && o.fallback == nil {
		return fmt.Errorf("%w: no transport or fallback client configured", ErrInvalidState)
	}

	err := fmt.Errorf("%w: already started", ErrInvalidState)
	o.startOnce.Do(func() { err = o.start(ctx) })
	return err
}

func (o *Orchestrator) start(ctx context.Context) error {
	_, span := tracer.Start(ctx, "start conversation")
	defer span.End()

	sessionID := o.sessionID
	var err error
	if sessionID != "" {
		err = o.sessionStore.Save(sessionID)
	} else {
		sessionID, err = resumeSession(o.sessionStore)
	}
	if err != nil {
		err = fmt.Errorf("failed to resolve session id: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("session_id", sessionID))
	o.updateState(func(s *OrchestratorState) { s.SessionID = sessionID })

	o.baseContext, o.cancel = context.WithCancel(ctx)
	o.stopHook = closeWhenDone(ctx, o.Close)
	o.started.Store(true)
	go o.loop()

	err = o.call(func() error {
		if o.transport == nil {
			o.setConversation(StateReady)
			o.loadHistory(sessionID)
			return nil
		}

		o.setConversation(StateConnecting)
		if err := o.transport.Connect(o.baseContext, sessionID, o.onTransportEvent); err != nil {
			o.setConversation(StateIdle)
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Close tears down capture, playback and the transport and waits for the
// event loop to exit. It is safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		if !o.started.Load() {
			o.closed.Store(true)
			if o.transport != nil {
				if err := o.transport.Close(); err != nil {
					logger.Warn("failed to close transport", "error", err)
				}
			}
			o.updateState(func(s *OrchestratorState) { s.Conversation = StateClosed })
			return
		}

		_ = o.run(func() error {
			o.abandonTurn(TurnDiscarded)
			o.setConversation(StateClosed)
			return nil
		})
		o.closed.Store(true)
		close(o.closeCh)
		<-o.done

		close(o.stopHook)
		o.cancel()
		if o.transport != nil {
			if err := o.transport.Close(); err != nil {
				logger.Warn("failed to close transport", "error", err)
			}
		}
	})
}

// State returns a snapshot that shares nothing with the orchestrator.
func (o *Orchestrator) State() OrchestratorState {
	o.mu.Lock()
	snapshot := o.state
	o.mu.Unlock()

	snapshot.Capturing = o.input.IsActive()
	snapshot.FramesEmitted = o.input.FramesEmitted()
	snapshot.Playback = o.output.Status()
	snapshot.MonitorActive = o.monitor.IsActive()
	snapshot.CurrentTurn = o.assembler.Current()
	snapshot.Log = o.assembler.Log()
	return snapshot
}

// StartRecording opens the microphone. While a reply is being generated or
// played it interrupts that reply first.
func (o *Orchestrator) StartRecording() error {
	return o.call(func() error {
		switch state := o.conversation(); state {
		case StateListening:
			return nil
		case StateThinking, StateSpeaking:
			return o.interrupt()
		case StateReady, StateReconnecting:
			return o.startCapture()
		case StateClosed:
			return ErrClosed
		default:
			return fmt.Errorf("%w: cannot record while %s", ErrInvalidState, state)
		}
	})
}

// StopRecording closes the microphone and ends the utterance. A recording
// that produced no full frame is not sent and returns straight to Ready.
func (o *Orchestrator) StopRecording() error {
	return o.call(func() error {
		if o.conversation() != StateListening {
			return nil
		}

		o.stopCapture()
		if o.fallbackActive {
			recording := o.takeRecording()
			if len(recording) == 0 {
				logger.Debug("empty recording, nothing uploaded")
				o.setFallbackActive(false)
				o.setConversation(o.idleState())
				return nil
			}
			o.setConversation(StateThinking)
			o.startFallbackExchange(recording)
			return nil
		}

		if o.input.FramesEmitted() == o.framesAtStart {
			logger.Debug("empty recording, nothing sent")
			o.setConversation(o.idleState())
			return nil
		}

		if err := o.transport.EndUtterance(); err != nil {
			err = fmt.Errorf("failed to end utterance: %w", err)
			o.reportError(err, true)
			o.setConversation(o.idleState())
			return err
		}
		o.setConversation(StateThinking)
		return nil
	})
}

// Interrupt abandons the reply being generated or played and reopens the
// microphone.
func (o *Orchestrator) Interrupt() error {
	return o.call(func() error {
		switch state := o.conversation(); state {
		case StateThinking, StateSpeaking:
			return o.interrupt()
		case StateClosed:
			return ErrClosed
		default:
			return fmt.Errorf("%w: nothing to interrupt while %s", ErrInvalidState, state)
		}
	})
}

// NewConversation discards the current session, stores a fresh id and
// reconnects with it. The transcript log is cleared.
func (o *Orchestrator) NewConversation() error {
	return o.call(func() error {
		if o.conversation() == StateClosed {
			return ErrClosed
		}

		sessionID, err := renewSession(o.sessionStore)
		if err != nil {
			return fmt.Errorf("failed to start new conversation: %w", err)
		}

		o.abandonTurn(TurnDiscarded)
		o.assembler.ClearLog()
		o.updateState(func(s *OrchestratorState) { s.SessionID = sessionID })
		o.emit(events.NewTranscriptLogReplaced(nil))
		logger.Info("new conversation", "session_id", sessionID)

		if o.transport == nil || o.connection() == events.ConnectionClosed {
			o.setConversation(o.idleState())
			return nil
		}

		o.rebinding = true
		if err := o.transport.Rebind(sessionID); err != nil {
			o.rebinding = false
			o.setConversation(o.idleState())
			return fmt.Errorf("failed to rebind session: %w", err)
		}
		o.setConversation(StateConnecting)
		return nil
	})
}

func (o *Orchestrator) loop() {
	defer close(o.done)

	for {
		select {
		case <-o.closeCh:
			return
		case fn := <-o.queue:
			fn()
		}
	}
}

func (o *Orchestrator) call(fn func() error) error {
	if !o.started.Load() {
		return ErrNotStarted
	} else if o.closed.Load() {
		return ErrClosed
	}

	return o.run(fn)
}

// run executes fn on the loop and waits for its result.
func (o *Orchestrator) run(fn func() error) error {
	result := make(chan error, 1)
	select {
	case o.queue <- func() { result <- fn() }:
	case <-o.closeCh:
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-o.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// post queues fn without waiting for it. It gives up once the loop is
// closing.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.queue <- fn:
	case <-o.closeCh:
	}
}

func (o *Orchestrator) onTransportEvent(event events.Event) {
	o.post(func() { o.handleEvent(event) })
}

func (o *Orchestrator) handleEvent(event events.Event) {
	if o.conversation() == StateClosed {
		return
	}

	if change, ok := event.(events.ConnectionStateChanged); ok {
		o.onConnectionChanged(change)
		return
	}
	o.applyServerEvent(event)
}

func (o *Orchestrator) onConnectionChanged(change events.ConnectionStateChanged) {
	o.updateState(func(s *OrchestratorState) { s.Connection = change.State })
	o.emit(change)

	switch change.State {
	case events.ConnectionOpen:
		o.rebinding = false
		if state := o.conversation(); state == StateConnecting || state == StateReconnecting {
			o.setConversation(StateReady)
		}

	case events.ConnectionDisconnected:
		if o.rebinding {
			return
		}
		if change.Err != nil {
			o.reportError(change.Err, true)
		}
		o.resetForReconnect(StateReconnecting)

	case events.ConnectionClosed:
		o.rebinding = false
		o.reportError(ErrConnectionClosed, false)
		o.resetForReconnect(o.idleState())
	}
}

// resetForReconnect drops what the lost connection was carrying. A reply
// that is already playing has all of its audio and is left to finish, and a
// fallback exchange never depended on the connection.
func (o *Orchestrator) resetForReconnect(next ConversationState) {
	if o.fallbackActive {
		return
	}

	o.stopCapture()
	if turn := o.assembler.Current(); turn != nil && turn.ID != o.playingTurnID {
		o.retireTurn(turn.ID, TurnDiscarded)
	}
	if o.conversation() != StateSpeaking {
		o.setConversation(next)
	}
}

func (o *Orchestrator) applyServerEvent(event events.Event) {
	signal := o.assembler.Apply(event)
	switch {
	case signal == SignalNone, signal == SignalAudioAppended:
		return
	case signal.Has(SignalDropped):
		logger.Debug("dropped event outside of a live turn", "kind", string(event.Kind()))
		return
	case signal.Has(SignalLogReplaced):
		if history, ok := event.(events.History); ok {
			o.emit(events.NewTranscriptLogReplaced(history.Messages))
		}
		return
	}

	if signal.Has(SignalTurnSuperseded) {
		turnCounter.Add(o.baseContext, 1, metric.WithAttributes(attribute.String("outcome", string(TurnSuperseded))))
	}

	turn := o.assembler.Current()
	if turn == nil {
		return
	}

	if signal.Has(SignalTurnStarted) {
		logger.Debug("turn started", "turn", turn.ID)
	}
	if signal.Has(SignalTranscriptRevised) {
		o.emit(events.NewTranscriptPreviewUpdated(turn.ID, turn.Transcript))
		o.emit(events.NewTranscriptLogReplaced(o.logMessages()))
	}
	if signal.Has(SignalTranscriptUpdated) || signal.Has(SignalTranscriptFinal) {
		o.emit(events.NewTranscriptPreviewUpdated(turn.ID, turn.Transcript))
	}
	if signal.Has(SignalTranscriptFinal) {
		o.onTranscriptFinal(turn)
	}
	if signal.Has(SignalResponseUpdated) {
		o.emit(events.NewResponseUpdated(turn.ID, turn.ResponseText, false))
	}
	if signal.Has(SignalResponseFinal) {
		o.emit(events.NewResponseUpdated(turn.ID, turn.ResponseText, true))
		if turn.ResponseText != "" {
			o.emit(events.NewTranscriptLogAppended(turn.ID, RoleAssistant, turn.ResponseText))
		}
	}
	if signal.Has(SignalAudioComplete) {
		o.startPlayback(turn)
	}
}

func (o *Orchestrator) onTranscriptFinal(turn *Turn) {
	if turn.Transcript == "" {
		o.retireTurn(turn.ID, TurnDiscarded)
		if o.conversation() == StateThinking {
			o.resume()
		}
		return
	}

	o.emit(events.NewTranscriptLogAppended(turn.ID, RoleUser, turn.Transcript))
	switch o.conversation() {
	case StateListening:
		// the server decided the utterance is over, no end marker needed
		o.stopCapture()
		o.setConversation(StateThinking)
	case StateReady:
		o.setConversation(StateThinking)
	}
}

func (o *Orchestrator) startPlayback(turn *Turn) {
	if o.conversation() == StateListening {
		// the user already moved on
		o.retireTurn(turn.ID, TurnDiscarded)
		return
	}

	if len(turn.AudioFragments) == 0 {
		logger.Debug("turn has no audio", "turn", turn.ID)
		o.retireTurn(turn.ID, TurnFinished)
		o.resume()
		return
	}

	var archived []byte
	if o.archive != nil {
		archived = audio.EncodeWAV(turn.Audio(), audio.GetPlaybackEncodingInfo())
	}
	o.playFor(turn.ID, archived, func() error { return o.output.Start(turn.ID, turn.AudioFragments) })
}

// playFor starts playback of a turn. archived is the container saved once
// the turn plays to the end.
func (o *Orchestrator) playFor(turnID string, archived []byte, start func() error) {
	if o.playingTurnID != "" && o.playingTurnID != turnID {
		o.monitor.Stop()
		o.emit(events.NewPlaybackEnded(o.playingTurnID, events.PlaybackInterrupted))
	}

	if err := start(); err != nil {
		o.reportError(fmt.Errorf("failed to start playback: %w", err), true)
		o.retireTurn(turnID, TurnFailed)
		o.resume()
		return
	}

	o.playingTurnID = turnID
	o.playingArchive = archived
	o.setConversation(StateSpeaking)
}

func (o *Orchestrator) onPlaybackUpdate(update playbackUpdate) {
	if o.conversation() == StateClosed || update.id != o.playingTurnID {
		return
	}

	switch {
	case update.status == PlaybackPlaying:
		o.emit(events.NewPlaybackStarted(update.id, len(update.pcm)))
		turnID := update.id
		if err := o.monitor.Start(func(level float64) {
			o.post(func() { o.onBargeIn(turnID, level) })
		}); err != nil {
			o.reportError(fmt.Errorf("failed to start barge-in monitor: %w", err), true)
		}

	case update.err != nil:
		o.monitor.Stop()
		logger.Warn("playback failed", "turn", update.id, "error", update.err)
		o.reportError(update.err, true)
		o.emit(events.NewPlaybackEnded(update.id, events.PlaybackFailed))
		o.retireTurn(update.id, TurnFailed)
		o.resume()

	default:
		o.monitor.Stop()
		o.emit(events.NewPlaybackEnded(update.id, events.PlaybackFinished))
		o.archiveResponse(update.id, o.playingArchive)
		o.retireTurn(update.id, TurnFinished)
		o.resume()
	}
}

func (o *Orchestrator) onBargeIn(turnID string, level float64) {
	if o.conversation() != StateSpeaking || turnID != o.playingTurnID {
		return
	}

	logger.Info("barge-in detected", "turn", turnID, "level", level)
	bargeInCounter.Add(o.baseContext, 1)
	o.emit(events.NewBargeInDetected(turnID, level))
	if err := o.interrupt(); err != nil {
		logger.Warn("failed to reopen capture after barge-in", "error", err)
	}
}

// interrupt tears the reply down, tells the server to stop generating and
// reopens the microphone.
func (o *Orchestrator) interrupt() error {
	wasFallback := o.fallbackActive
	o.abandonTurn(TurnInterrupted)
	if !wasFallback && o.transport != nil {
		if err := o.transport.Interrupt(); err != nil {
			logger.Warn("failed to send interrupt", "error", err)
		}
	}

	return o.startCapture()
}

// abandonTurn releases capture, the monitor and playback and drops the turn
// in progress.
func (o *Orchestrator) abandonTurn(outcome TurnOutcome) {
	o.stopCapture()
	o.monitor.Stop()
	if o.output.Interrupt() && o.playingTurnID != "" {
		o.emit(events.NewPlaybackEnded(o.playingTurnID, events.PlaybackInterrupted))
	}
	o.playingTurnID = ""
	o.playingArchive = nil

	o.fallbackGen++
	o.setFallbackActive(false)
	if turn := o.assembler.Current(); turn != nil {
		o.retireTurn(turn.ID, outcome)
	}
}

// resume hands control back to the user once a turn is over.
func (o *Orchestrator) resume() {
	o.playingTurnID = ""
	o.playingArchive = nil
	o.setFallbackActive(false)

	if o.continuousListening {
		if err := o.startCapture(); err == nil {
			return
		}
	}
	o.setConversation(o.idleState())
}

func (o *Orchestrator) startCapture() error {
	useFallback := o.transport == nil || o.connection() != events.ConnectionOpen
	if useFallback && o.fallback == nil {
		return ErrNotConnected
	}

	o.monitor.Stop()

	var sink func(frame []byte)
	if useFallback {
		o.recordingMu.Lock()
		o.recording = nil
		o.recordingMu.Unlock()
		sink = o.appendRecording
	} else {
		transport := o.transport
		sink = func(frame []byte) {
			if err := transport.SendAudio(frame); err != nil {
				logger.Warn("failed to send audio frame", "error", err)
			}
		}
	}

	o.framesAtStart = o.input.FramesEmitted()
	if err := o.input.Start(o.baseContext, sink); err != nil {
		err = fmt.Errorf("failed to start capture: %w", err)
		o.reportError(err, false)
		o.setConversation(o.idleState())
		return err
	}

	o.setFallbackActive(useFallback)
	o.setConversation(StateListening)
	return nil
}

func (o *Orchestrator) stopCapture() {
	if err := o.input.Stop(); err != nil {
		logger.Warn("failed to stop capture", "error", err)
	}
}

func (o *Orchestrator) appendRecording(frame []byte) {
	o.recordingMu.Lock()
	defer o.recordingMu.Unlock()
	o.recording = append(o.recording, frame...)
}

func (o *Orchestrator) takeRecording() []byte {
	o.recordingMu.Lock()
	defer o.recordingMu.Unlock()

	recording := o.recording
	o.recording = nil
	return recording
}

func (o *Orchestrator) startFallbackExchange(recording []byte) {
	o.fallbackGen++
	generation := o.fallbackGen
	client := o.fallback
	sessionID := o.currentSessionID()
	container := audio.EncodeWAV(recording, audio.GetDefaultEncodingInfo())

	var (
		response *fallback.ChatResponse
		reply    []byte
	)
	runTask(o.baseContext, "fallback exchange", func(ctx context.Context) error {
		var err error
		response, reply, err = exchangeRecording(ctx, client, sessionID, container)
		return err
	}, func(err error) {
		o.post(func() { o.onFallbackReply(generation, response, reply, err) })
	})
}

func exchangeRecording(ctx context.Context, client FallbackClient, sessionID string, recording []byte) (*fallback.ChatResponse, []byte, error) {
	ctx, span := tracer.Start(ctx, "fallback exchange")
	defer span.End()

	response, err := client.Chat(ctx, sessionID, recording)
	if response == nil {
		if err == nil {
			err = errors.New("empty reply")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	// error replies still carry text and canned audio
	var container []byte
	if audioURL := response.PlayableURL(); audioURL != "" {
		var fetchErr error
		if container, fetchErr = client.FetchAudio(ctx, audioURL); fetchErr != nil {
			err = errors.Join(err, fetchErr)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return response, container, err
}

func (o *Orchestrator) onFallbackReply(generation uint64, response *fallback.ChatResponse, container []byte, err error) {
	if generation != o.fallbackGen || o.conversation() == StateClosed {
		return
	}

	if err != nil {
		logger.Warn("fallback exchange failed", "error", err)
		o.reportError(err, true)
	}
	if response == nil {
		o.setFallbackActive(false)
		o.setConversation(o.idleState())
		return
	}

	if response.TranscribedText != "" {
		o.applyServerEvent(events.NewTranscript(response.TranscribedText, true))
	} else if response.ResponseText != "" || len(container) > 0 {
		// error replies carry an apology and canned audio but no transcript
		o.assembler.Apply(events.NewTranscript("", true))
	} else {
		o.applyServerEvent(events.NewTranscript("", true))
		return
	}
	if response.ResponseText != "" {
		o.applyServerEvent(events.NewResponseTextChunk(response.ResponseText))
	}
	o.applyServerEvent(events.NewResponseTextEnd(false))

	turn := o.assembler.Current()
	if turn == nil {
		o.resume()
		return
	}
	if len(container) == 0 {
		o.retireTurn(turn.ID, TurnFinished)
		o.resume()
		return
	}

	o.playFor(turn.ID, container, func() error { return o.output.StartContainer(turn.ID, container) })
}

func (o *Orchestrator) loadHistory(sessionID string) {
	client := o.fallback
	var messages []events.HistoryMessage
	runTask(o.baseContext, "history", func(ctx context.Context) error {
		var err error
		messages, err = client.History(ctx, sessionID)
		return err
	}, func(err error) {
		if err != nil {
			logger.Warn("failed to load history", "error", err)
			return
		}
		o.post(func() { o.handleEvent(events.NewHistory(messages)) })
	})
}

// archiveResponse writes the container off the loop.
func (o *Orchestrator) archiveResponse(turnID string, container []byte) {
	if o.archive == nil || len(container) == 0 {
		return
	}

	archive := o.archive
	var path string
	runTask(o.baseContext, "response archive", func(context.Context) error {
		var err error
		path, err = archive.Save(turnID, container)
		return err
	}, func(err error) {
		if err != nil {
			logger.Warn("failed to archive response", "turn", turnID, "error", err)
			return
		}
		logger.Debug("response archived", "turn", turnID, "path", path)
	})
}

// logMessages renders the transcript log the way history is delivered.
func (o *Orchestrator) logMessages() []events.HistoryMessage {
	log := o.assembler.Log()
	messages := make([]events.HistoryMessage, 0, len(log))
	for _, entry := range log {
		messages = append(messages, events.HistoryMessage{Role: entry.Role, Parts: []string{entry.Text}})
	}
	return messages
}

func (o *Orchestrator) retireTurn(turnID string, outcome TurnOutcome) {
	if o.assembler.Retire(turnID, outcome) {
		turnCounter.Add(o.baseContext, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}

// idleState is where the conversation rests between turns, given the
// connection.
func (o *Orchestrator) idleState() ConversationState {
	if o.transport == nil {
		return StateReady
	}

	switch o.connection() {
	case events.ConnectionOpen:
		return StateReady
	case events.ConnectionClosed:
		if o.fallback != nil {
			return StateReady
		}
		return StateIdle
	default:
		return StateReconnecting
	}
}

func (o *Orchestrator) setConversation(to ConversationState) {
	o.mu.Lock()
	from := o.state.Conversation
	o.state.Conversation = to
	o.mu.Unlock()

	if from == to {
		return
	}
	logger.Debug("conversation state changed", "from", from.String(), "to", to.String())
	o.emit(events.NewConversationStateChanged(from.String(), to.String()))
}

func (o *Orchestrator) setFallbackActive(active bool) {
	o.fallbackActive = active
	o.updateState(func(s *OrchestratorState) { s.Fallback = active })
}

func (o *Orchestrator) reportError(err error, recoverable bool) {
	o.updateState(func(s *OrchestratorState) { s.LastError = err.Error() })
	o.emit(events.NewError(err, recoverable))
}

func (o *Orchestrator) updateState(update func(*OrchestratorState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	update(&o.state)
}

func (o *Orchestrator) conversation() ConversationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Conversation
}

func (o *Orchestrator) connection() events.ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Connection
}

func (o *Orchestrator) currentSessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.SessionID
}
