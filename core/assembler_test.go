package orchestration

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/koscakluka/ema-duplex/core/events"
)

func newTestAssembler() *turnAssembler {
	a := newTurnAssembler()
	next := 0
	a.newTurnID = func() string {
		next++
		return fmt.Sprintf("turn-%d", next)
	}
	return a
}

func TestTurnAssemblerReducesInterleavedTurn(t *testing.T) {
	testCases := []struct {
		name   string
		events []events.Event
	}{
		{
			name: "text before audio",
			events: []events.Event{
				events.NewTranscript("wh", false),
				events.NewTranscript("what time", false),
				events.NewTranscript("what time is it", true),
				events.NewResponseTextChunk("It is "),
				events.NewResponseTextChunk("noon."),
				events.NewResponseTextEnd(false),
				events.NewAudioChunk([]byte{1, 2}),
				events.NewAudioChunk([]byte{3}),
				events.NewAudioChunk([]byte{4, 5, 6}),
				events.NewAudioEnd(),
			},
		},
		{
			name: "audio interleaved with text",
			events: []events.Event{
				events.NewTranscript("what time is it", true),
				events.NewResponseTextChunk("It is "),
				events.NewAudioChunk([]byte{1, 2}),
				events.NewResponseTextChunk("noon."),
				events.NewAudioChunk([]byte{3}),
				events.NewResponseTextEnd(false),
				events.NewAudioChunk([]byte{4, 5, 6}),
				events.NewAudioEnd(),
			},
		},
		{
			name: "terminal text end completes audio",
			events: []events.Event{
				events.NewTranscript("what", false),
				events.NewTranscript("what time is it", true),
				events.NewAudioChunk([]byte{1, 2}),
				events.NewResponseTextChunk("It is "),
				events.NewAudioChunk([]byte{3}),
				events.NewAudioChunk([]byte{4, 5, 6}),
				events.NewResponseTextChunk("noon."),
				events.NewResponseTextEnd(true),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAssembler()
			var signals TurnSignal
			for _, event := range tc.events {
				signal := a.Apply(event)
				if signal.Has(SignalDropped) {
					t.Fatalf("expected %s to be accepted", event.Kind())
				}
				signals |= signal
			}

			turn := a.Current()
			if turn == nil {
				t.Fatalf("expected a current turn")
			}
			if turn.Transcript != "what time is it" || !turn.TranscriptFinal {
				t.Fatalf("expected final transcript, got %q final=%v", turn.Transcript, turn.TranscriptFinal)
			}
			if turn.ResponseText != "It is noon." || !turn.ResponseFinal {
				t.Fatalf("expected concatenated response, got %q final=%v", turn.ResponseText, turn.ResponseFinal)
			}
			if got := turn.Audio(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) || !turn.AudioComplete {
				t.Fatalf("expected audio in arrival order, got %v complete=%v", got, turn.AudioComplete)
			}
			if !signals.Has(SignalAudioComplete) {
				t.Fatalf("expected audio complete to be signalled")
			}

			log := a.Log()
			if len(log) != 2 || log[0].Role != RoleUser || log[1].Role != RoleAssistant {
				t.Fatalf("expected user and assistant entries, got %+v", log)
			}
		})
	}
}

func TestTurnAssemblerInterimTranscriptReplacesPreview(t *testing.T) {
	a := newTestAssembler()

	if signal := a.Apply(events.NewTranscript("hel", false)); !signal.Has(SignalTurnStarted) {
		t.Fatalf("expected first transcript to start a turn")
	}
	if signal := a.Apply(events.NewTranscript("hello", false)); signal.Has(SignalTurnStarted) {
		t.Fatalf("expected interim transcript to stay in the same turn")
	}

	turn := a.Current()
	if turn.Transcript != "hello" || turn.TranscriptFinal {
		t.Fatalf("expected replaced preview, got %q", turn.Transcript)
	}
	if log := a.Log(); len(log) != 0 {
		t.Fatalf("expected nothing logged before final, got %+v", log)
	}
}

func TestTurnAssemblerDropsReplyWithoutFinalTranscript(t *testing.T) {
	a := newTestAssembler()

	for _, event := range []events.Event{
		events.NewResponseTextChunk("orphan"),
		events.NewAudioChunk([]byte{1}),
		events.NewAudioEnd(),
	} {
		if signal := a.Apply(event); !signal.Has(SignalDropped) {
			t.Fatalf("expected %s without a turn to be dropped", event.Kind())
		}
	}

	a.Apply(events.NewTranscript("hel", false))
	if signal := a.Apply(events.NewResponseTextChunk("early")); !signal.Has(SignalDropped) {
		t.Fatalf("expected response before final transcript to be dropped")
	}
}

func TestTurnAssemblerFinalTranscriptStartsNextTurn(t *testing.T) {
	a := newTestAssembler()

	a.Apply(events.NewTranscript("first", true))
	first := a.Current().ID
	if signal := a.Apply(events.NewTranscript("second", false)); !signal.Has(SignalTurnStarted) {
		t.Fatalf("expected a new turn after a final transcript")
	}
	if second := a.Current().ID; second == first {
		t.Fatalf("expected a new turn id, got %s twice", first)
	}
}

func TestTurnAssemblerRepeatedFinalRevisesTranscript(t *testing.T) {
	a := newTestAssembler()

	a.Apply(events.NewTranscript("what time is it", true))
	signal := a.Apply(events.NewTranscript("What time is it?", true))
	if !signal.Has(SignalTranscriptRevised) || signal.Has(SignalTurnStarted) || signal.Has(SignalTranscriptFinal) {
		t.Fatalf("expected an in-place revision, got %b", signal)
	}
	if signal := a.Apply(events.NewTranscript("What time is it?", true)); signal != SignalNone {
		t.Fatalf("expected an identical final to change nothing, got %b", signal)
	}

	a.Apply(events.NewResponseTextChunk("noon"))
	a.Apply(events.NewResponseTextEnd(false))

	want := []TranscriptEntry{
		{TurnID: "turn-1", Role: RoleUser, Text: "What time is it?"},
		{TurnID: "turn-1", Role: RoleAssistant, Text: "noon"},
	}
	log := a.Log()
	if len(log) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("expected %+v, got %+v", want, log)
		}
	}
}

func TestTurnAssemblerRevisedEmptyFinalLeavesLog(t *testing.T) {
	a := newTestAssembler()

	a.Apply(events.NewTranscript("uh", true))
	a.Apply(events.NewTranscript("", true))
	if log := a.Log(); len(log) != 0 {
		t.Fatalf("expected the revised entry to be removed, got %+v", log)
	}
	if turn := a.Current(); turn == nil || turn.ID != "turn-1" || turn.Transcript != "" {
		t.Fatalf("expected the same turn with an empty transcript, got %+v", turn)
	}
}

func TestTurnAssemblerSupersedesAnsweredTurn(t *testing.T) {
	testCases := []struct {
		name  string
		reply []events.Event
		next  events.Event
	}{
		{
			name: "partial after final",
			next: events.NewTranscript("and", false),
		},
		{
			name:  "final after response text",
			reply: []events.Event{events.NewResponseTextChunk("noon")},
			next:  events.NewTranscript("thanks", true),
		},
		{
			name:  "final after audio",
			reply: []events.Event{events.NewAudioChunk([]byte{1, 2})},
			next:  events.NewTranscript("thanks", true),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAssembler()
			a.Apply(events.NewTranscript("what time is it", true))
			for _, event := range tc.reply {
				a.Apply(event)
			}

			signal := a.Apply(tc.next)
			if !signal.Has(SignalTurnSuperseded) || !signal.Has(SignalTurnStarted) {
				t.Fatalf("expected the previous turn to be superseded, got %b", signal)
			}
			if turn := a.Current(); turn.ID != "turn-2" {
				t.Fatalf("expected turn-2, got %s", turn.ID)
			}
			if a.Retire("turn-1", TurnFinished) {
				t.Fatalf("expected the superseded turn to be gone")
			}
		})
	}
}

func TestTurnAssemblerEmptyFinalTranscriptIsNotLogged(t *testing.T) {
	a := newTestAssembler()

	a.Apply(events.NewTranscript("", true))
	if log := a.Log(); len(log) != 0 {
		t.Fatalf("expected empty transcript to stay out of the log, got %+v", log)
	}
}

func TestTurnAssemblerHistoryReplacesLogOnly(t *testing.T) {
	a := newTestAssembler()
	a.Apply(events.NewTranscript("hello", true))
	a.Apply(events.NewTranscript("in progress", false))

	signal := a.Apply(events.NewHistory([]events.HistoryMessage{
		{Role: RoleUser, Parts: []string{"earlier"}},
		{Role: RoleAssistant, Parts: []string{"reply", "in parts"}},
	}))
	if signal != SignalLogReplaced {
		t.Fatalf("expected only log replaced, got %b", signal)
	}

	log := a.Log()
	if len(log) != 2 || log[1].Text != "reply in parts" {
		t.Fatalf("expected history to replace the log, got %+v", log)
	}
	if turn := a.Current(); turn == nil || turn.Transcript != "in progress" {
		t.Fatalf("expected turn in progress to be untouched, got %+v", turn)
	}
}

func TestTurnAssemblerRetireAndReset(t *testing.T) {
	a := newTestAssembler()
	a.Apply(events.NewTranscript("hello", true))
	turnID := a.Current().ID

	if a.Retire("someone-else", TurnFinished) {
		t.Fatalf("expected retiring an unknown turn to fail")
	}
	if !a.Retire(turnID, TurnFinished) {
		t.Fatalf("expected current turn to retire")
	}
	if a.Current() != nil {
		t.Fatalf("expected no current turn after retire")
	}
	if signal := a.Apply(events.NewAudioEnd()); !signal.Has(SignalDropped) {
		t.Fatalf("expected events for a retired turn to be dropped")
	}

	a.Apply(events.NewTranscript("again", false))
	a.Reset()
	if a.Current() != nil {
		t.Fatalf("expected reset to drop the turn")
	}
	if len(a.Log()) != 1 {
		t.Fatalf("expected reset to keep the log")
	}
}

func TestTurnAssemblerCurrentIsACopy(t *testing.T) {
	a := newTestAssembler()
	a.Apply(events.NewTranscript("hello", true))
	a.Apply(events.NewAudioChunk([]byte{1, 2}))

	turn := a.Current()
	turn.AudioFragments[0][0] = 9
	turn.Transcript = "changed"

	again := a.Current()
	if again.AudioFragments[0][0] != 1 || again.Transcript != "hello" {
		t.Fatalf("expected snapshot changes not to leak back, got %+v", again)
	}
}
