package events

const (
	// KindConversationStateChanged identifies an orchestrator state transition.
	KindConversationStateChanged Kind = "conversation.state_changed"
	// KindTranscriptPreviewUpdated identifies a mutable transcript preview.
	KindTranscriptPreviewUpdated Kind = "conversation.transcript_preview_updated"
	// KindTranscriptLogAppended identifies a new durable transcript entry.
	KindTranscriptLogAppended Kind = "conversation.transcript_log_appended"
	// KindTranscriptLogReplaced identifies a wholesale log replacement.
	KindTranscriptLogReplaced Kind = "conversation.transcript_log_replaced"
	// KindResponseUpdated identifies the growing response text snapshot.
	KindResponseUpdated Kind = "conversation.response_updated"
	// KindError identifies an error surfaced to the user.
	KindError Kind = "conversation.error"
)

// ConversationStateChanged carries the orchestrator state name so this
// package does not depend on the orchestrator.
type ConversationStateChanged struct {
	Base
	From string
	To   string
}

func NewConversationStateChanged(from, to string) ConversationStateChanged {
	return ConversationStateChanged{Base: NewBase(KindConversationStateChanged), From: from, To: to}
}

// TranscriptPreviewUpdated carries the current, not yet final, user
// transcript of a turn.
type TranscriptPreviewUpdated struct {
	Base
	TurnID string
	Text   string
}

func NewTranscriptPreviewUpdated(turnID, text string) TranscriptPreviewUpdated {
	return TranscriptPreviewUpdated{Base: NewBase(KindTranscriptPreviewUpdated), TurnID: turnID, Text: text}
}

// TranscriptLogAppended carries a line that was just frozen into the log.
type TranscriptLogAppended struct {
	Base
	TurnID string
	Role   string
	Text   string
}

func NewTranscriptLogAppended(turnID, role, text string) TranscriptLogAppended {
	return TranscriptLogAppended{Base: NewBase(KindTranscriptLogAppended), TurnID: turnID, Role: role, Text: text}
}

type TranscriptLogReplaced struct {
	Base
	Messages []HistoryMessage
}

func NewTranscriptLogReplaced(messages []HistoryMessage) TranscriptLogReplaced {
	return TranscriptLogReplaced{Base: NewBase(KindTranscriptLogReplaced), Messages: messages}
}

// ResponseUpdated carries the full response text so far, not the delta.
type ResponseUpdated struct {
	Base
	TurnID string
	Text   string
	Final  bool
}

func NewResponseUpdated(turnID, text string, final bool) ResponseUpdated {
	return ResponseUpdated{Base: NewBase(KindResponseUpdated), TurnID: turnID, Text: text, Final: final}
}

// Error carries a failure the user should see. Recoverable errors leave the
// conversation running.
type Error struct {
	Base
	Err         error
	Recoverable bool
}

func NewError(err error, recoverable bool) Error {
	return Error{Base: NewBase(KindError), Err: err, Recoverable: recoverable}
}
