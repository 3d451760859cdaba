package websocket

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	gws "github.com/gorilla/websocket"
	"github.com/koscakluka/ema-duplex/core/events"
)

// ProtocolError reports an inbound message that could not be classified. The
// session logs it and keeps going.
type ProtocolError struct {
	MessageType int
	Payload     []byte
	Reason      string
	Err         error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func newProtocolError(messageType int, payload []byte, reason string, err error) *ProtocolError {
	return &ProtocolError{MessageType: messageType, Payload: payload, Reason: reason, Err: err}
}

// Classify turns one inbound websocket message into a typed event.
func Classify(messageType int, payload []byte) (events.Event, error) {
	if messageType != gws.TextMessage {
		return nil, newProtocolError(messageType, payload, "unexpected non-text message", nil)
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(payload, &envelope); err != nil {
		return nil, newProtocolError(messageType, payload, "malformed json", err)
	}

	switch envelope.Type {
	case TypeHistory:
		var msg HistoryMessage
		if err := sonic.Unmarshal(payload, &msg); err != nil {
			return nil, newProtocolError(messageType, payload, "malformed history", err)
		}
		messages := make([]events.HistoryMessage, 0, len(msg.Data))
		for _, entry := range msg.Data {
			messages = append(messages, events.HistoryMessage{Role: entry.Role, Parts: entry.Parts})
		}
		return events.NewHistory(messages), nil

	case TypeTranscript:
		var msg TranscriptMessage
		if err := sonic.Unmarshal(payload, &msg); err != nil {
			return nil, newProtocolError(messageType, payload, "malformed transcript", err)
		} else if msg.Transcript == nil {
			return nil, newProtocolError(messageType, payload, "transcript without text", nil)
		}
		return events.NewTranscript(*msg.Transcript, msg.IsFinal), nil

	case TypeLLMResponse:
		var msg LLMResponseMessage
		if err := sonic.Unmarshal(payload, &msg); err != nil {
			return nil, newProtocolError(messageType, payload, "malformed llm response", err)
		} else if msg.Chunk == nil {
			return nil, newProtocolError(messageType, payload, "llm response without chunk", nil)
		}
		return events.NewResponseTextChunk(*msg.Chunk), nil

	case TypeLLMResponseEnd:
		// the server only sends this once every audio chunk is out
		return events.NewResponseTextEnd(true), nil

	case TypeAudio:
		var msg AudioMessage
		if err := sonic.Unmarshal(payload, &msg); err != nil {
			return nil, newProtocolError(messageType, payload, "malformed audio", err)
		} else if msg.AudioChunk == nil {
			return nil, newProtocolError(messageType, payload, "audio without chunk", nil)
		}
		audio, err := base64.StdEncoding.DecodeString(*msg.AudioChunk)
		if err != nil {
			return nil, newProtocolError(messageType, payload, "audio chunk is not base64", err)
		}
		return events.NewAudioChunk(audio), nil

	case TypePipelineEnd, TypeAudioEnd:
		return events.NewAudioEnd(), nil

	case "":
		return nil, newProtocolError(messageType, payload, "missing message type", nil)

	default:
		return nil, newProtocolError(messageType, payload, fmt.Sprintf("unknown message type %q", envelope.Type), nil)
	}
}

func encodeSessionInit(sessionID string) ([]byte, error) {
	return sonic.Marshal(SessionInitMessage{SessionID: sessionID})
}

func encodeInterrupt() ([]byte, error) {
	return sonic.Marshal(InterruptMessage{Type: TypeInterrupt})
}

func encodeEndOfUtterance() ([]byte, error) {
	return sonic.Marshal(EndOfUtteranceMessage{Text: EndOfUtteranceText})
}

// IsProtocolError reports whether err carries a [ProtocolError].
func IsProtocolError(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}
