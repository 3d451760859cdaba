package events

import "strings"

const (
	// KindHistory identifies a wholesale replacement of the transcript log.
	KindHistory Kind = "server.history"
	// KindTranscript identifies a partial or final user transcript.
	KindTranscript Kind = "server.transcript"
	// KindResponseTextChunk identifies streamed response text.
	KindResponseTextChunk Kind = "server.response_text_chunk"
	// KindResponseTextEnd identifies the end of the response text stream.
	KindResponseTextEnd Kind = "server.response_text_end"
	// KindAudioChunk identifies one synthesized audio fragment.
	KindAudioChunk Kind = "server.audio_chunk"
	// KindAudioEnd identifies the end of the synthesized audio stream.
	KindAudioEnd Kind = "server.audio_end"
)

// HistoryMessage is one stored exchange line as the server keeps it.
type HistoryMessage struct {
	Role  string
	Parts []string
}

// Text joins the message parts with a space.
func (m HistoryMessage) Text() string {
	return strings.Join(m.Parts, " ")
}

// History replaces the whole displayed transcript log.
type History struct {
	Base
	Messages []HistoryMessage
}

func NewHistory(messages []HistoryMessage) History {
	return History{Base: NewBase(KindHistory), Messages: messages}
}

// Transcript carries the latest user transcript. Partial transcripts replace
// each other, a final one freezes the utterance.
type Transcript struct {
	Base
	Text    string
	IsFinal bool
}

func NewTranscript(text string, isFinal bool) Transcript {
	return Transcript{Base: NewBase(KindTranscript), Text: text, IsFinal: isFinal}
}

// ResponseTextChunk is an append-only piece of the response text.
type ResponseTextChunk struct {
	Base
	Chunk string
}

func NewResponseTextChunk(chunk string) ResponseTextChunk {
	return ResponseTextChunk{Base: NewBase(KindResponseTextChunk), Chunk: chunk}
}

// ResponseTextEnd freezes the response text. Terminal is set when the marker
// also closes the whole turn, which is how the server reports that every
// audio fragment has been sent.
type ResponseTextEnd struct {
	Base
	Terminal bool
}

func NewResponseTextEnd(terminal bool) ResponseTextEnd {
	return ResponseTextEnd{Base: NewBase(KindResponseTextEnd), Terminal: terminal}
}

// AudioChunk is one opaque fragment of the turn's audio stream. Fragments are
// only playable once concatenated in arrival order.
type AudioChunk struct {
	Base
	Audio []byte
}

func NewAudioChunk(audio []byte) AudioChunk {
	return AudioChunk{Base: NewBase(KindAudioChunk), Audio: audio}
}

// AudioEnd marks the fragment list of the current turn as complete.
type AudioEnd struct{ Base }

func NewAudioEnd() AudioEnd {
	return AudioEnd{Base: NewBase(KindAudioEnd)}
}
