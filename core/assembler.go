package orchestration

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-duplex/core/events"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one user utterance and the reply to it, as assembled so far.
type Turn struct {
	ID string

	Transcript      string
	TranscriptFinal bool

	ResponseText  string
	ResponseFinal bool

	// AudioFragments are kept in arrival order and are only playable once
	// concatenated.
	AudioFragments [][]byte
	AudioComplete  bool

	StartedAt time.Time
}

// Audio concatenates the fragments in arrival order.
func (t *Turn) Audio() []byte {
	if t == nil {
		return nil
	}

	size := 0
	for _, fragment := range t.AudioFragments {
		size += len(fragment)
	}
	audio := make([]byte, 0, size)
	for _, fragment := range t.AudioFragments {
		audio = append(audio, fragment...)
	}
	return audio
}

type TranscriptEntry struct {
	TurnID string
	Role   string
	Text   string
}

// TurnSignal is a set of things that changed while applying one event.
type TurnSignal uint16

const (
	SignalTurnStarted TurnSignal = 1 << iota
	SignalTranscriptUpdated
	SignalTranscriptFinal
	SignalResponseUpdated
	SignalResponseFinal
	SignalAudioAppended
	SignalAudioComplete
	SignalLogReplaced
	// SignalDropped means the event did not belong to any live turn.
	SignalDropped
	// SignalTranscriptRevised means a repeated final transcript replaced the
	// frozen one of a turn that has no reply yet.
	SignalTranscriptRevised
	// SignalTurnSuperseded means a new utterance replaced the previous turn
	// before anyone retired it.
	SignalTurnSuperseded

	SignalNone TurnSignal = 0
)

func (s TurnSignal) Has(signal TurnSignal) bool { return s&signal != 0 }

// TurnOutcome is how a turn left the assembler.
type TurnOutcome string

const (
	TurnFinished    TurnOutcome = "finished"
	TurnInterrupted TurnOutcome = "interrupted"
	TurnFailed      TurnOutcome = "failed"
	TurnDiscarded   TurnOutcome = "discarded"
	TurnSuperseded  TurnOutcome = "superseded"
)

// turnAssembler reduces server events into exactly one current turn and a
// durable transcript log.
//
// Response text and audio are only accepted once the current turn's
// transcript is final. Anything that arrives earlier, or after the turn was
// retired, belongs to a generation the user already moved past.
type turnAssembler struct {
	mu sync.Mutex

	current *Turn
	log     []TranscriptEntry

	newTurnID func() string
}

func newTurnAssembler() *turnAssembler {
	return &turnAssembler{newTurnID: uuid.NewString}
}

func (a *turnAssembler) Apply(event events.Event) TurnSignal {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := event.(type) {
	case events.History:
		a.log = a.log[:0]
		for _, message := range e.Messages {
			a.log = append(a.log, TranscriptEntry{Role: message.Role, Text: message.Text()})
		}
		return SignalLogReplaced

	case events.Transcript:
		var signal TurnSignal
		if a.current != nil && a.current.TranscriptFinal {
			if e.IsFinal && a.current.awaitingReply() {
				return a.reviseTranscriptLocked(e.Text)
			}
			logger.Debug("turn superseded", "turn", a.current.ID)
			a.current = nil
			signal |= SignalTurnSuperseded
		}
		if a.current == nil {
			a.current = &Turn{ID: a.newTurnID(), StartedAt: time.Now()}
			signal |= SignalTurnStarted
		}

		a.current.Transcript = e.Text
		if !e.IsFinal {
			return signal | SignalTranscriptUpdated
		}

		a.current.TranscriptFinal = true
		if e.Text != "" {
			a.log = append(a.log, TranscriptEntry{TurnID: a.current.ID, Role: RoleUser, Text: e.Text})
		}
		return signal | SignalTranscriptFinal

	case events.ResponseTextChunk:
		if !a.acceptsResponse() {
			return SignalDropped
		}
		a.current.ResponseText += e.Chunk
		return SignalResponseUpdated

	case events.ResponseTextEnd:
		if !a.acceptsResponse() {
			return SignalDropped
		}

		a.current.ResponseFinal = true
		if a.current.ResponseText != "" {
			a.log = append(a.log, TranscriptEntry{TurnID: a.current.ID, Role: RoleAssistant, Text: a.current.ResponseText})
		}
		signal := SignalResponseFinal
		if e.Terminal && !a.current.AudioComplete {
			a.current.AudioComplete = true
			signal |= SignalAudioComplete
		}
		return signal

	case events.AudioChunk:
		if !a.acceptsAudio() {
			return SignalDropped
		}
		fragment := make([]byte, len(e.Audio))
		copy(fragment, e.Audio)
		a.current.AudioFragments = append(a.current.AudioFragments, fragment)
		return SignalAudioAppended

	case events.AudioEnd:
		if !a.acceptsAudio() {
			return SignalDropped
		}
		a.current.AudioComplete = true
		return SignalAudioComplete
	}

	return SignalNone
}

// reviseTranscriptLocked replaces the frozen transcript of the current turn
// and its log entry. Servers that format transcripts send the final twice.
func (a *turnAssembler) reviseTranscriptLocked(text string) TurnSignal {
	if text == a.current.Transcript {
		return SignalNone
	}
	a.current.Transcript = text

	index := -1
	for i := len(a.log) - 1; i >= 0; i-- {
		if a.log[i].TurnID == a.current.ID && a.log[i].Role == RoleUser {
			index = i
			break
		}
	}
	switch {
	case index >= 0 && text != "":
		a.log[index].Text = text
	case index >= 0:
		a.log = append(a.log[:index], a.log[index+1:]...)
	case text != "":
		a.log = append(a.log, TranscriptEntry{TurnID: a.current.ID, Role: RoleUser, Text: text})
	}
	return SignalTranscriptRevised
}

func (t *Turn) awaitingReply() bool {
	return t.ResponseText == "" && !t.ResponseFinal && len(t.AudioFragments) == 0 && !t.AudioComplete
}

func (a *turnAssembler) acceptsResponse() bool {
	return a.current != nil && a.current.TranscriptFinal && !a.current.ResponseFinal
}

func (a *turnAssembler) acceptsAudio() bool {
	return a.current != nil && a.current.TranscriptFinal && !a.current.AudioComplete
}

// Current returns a deep copy of the turn in progress, or nil.
func (a *turnAssembler) Current() *Turn {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return nil
	}

	var turn Turn
	if err := copier.CopyWithOption(&turn, a.current, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy current turn", "error", err)
		return nil
	}
	return &turn
}

// Reset discards the turn in progress without touching the log.
func (a *turnAssembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current = nil
}

// Retire ends the turn with the given id. It reports false when that turn
// is no longer current.
func (a *turnAssembler) Retire(turnID string, outcome TurnOutcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil || a.current.ID != turnID {
		return false
	}

	logger.Debug("turn retired", "turn", turnID, "outcome", string(outcome))
	a.current = nil
	return true
}

func (a *turnAssembler) Log() []TranscriptEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]TranscriptEntry(nil), a.log...)
}

func (a *turnAssembler) ClearLog() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.log = nil
}
