package orchestration

import "github.com/koscakluka/ema-duplex/core/events"

type ConversationState int

const (
	StateIdle ConversationState = iota
	StateConnecting
	StateReady
	StateListening
	StateThinking
	StateSpeaking
	StateReconnecting
	StateClosed
)

var conversationStateNames = map[ConversationState]string{
	StateIdle:         "idle",
	StateConnecting:   "connecting",
	StateReady:        "ready",
	StateListening:    "listening",
	StateThinking:     "thinking",
	StateSpeaking:     "speaking",
	StateReconnecting: "reconnecting",
	StateClosed:       "closed",
}

func (s ConversationState) String() string {
	if name, ok := conversationStateNames[s]; ok {
		return name
	}
	return "unknown"
}

func parseConversationState(name string) ConversationState {
	for state, stateName := range conversationStateNames {
		if stateName == name {
			return state
		}
	}
	return StateIdle
}

// OrchestratorState is a point-in-time view of everything the orchestrator
// owns. Nothing in it is shared with the orchestrator.
type OrchestratorState struct {
	Conversation ConversationState
	Connection   events.ConnectionState
	SessionID    string

	Capturing     bool
	FramesEmitted int
	Playback      PlaybackStatus
	MonitorActive bool
	// Fallback is set while the current exchange goes over the
	// request/response endpoints instead of the duplex channel.
	Fallback bool

	CurrentTurn *Turn
	Log         []TranscriptEntry

	LastError string
}
