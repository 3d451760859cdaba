package websocket

// Inbound message types as they appear in the "type" field.
const (
	TypeHistory        = "history"
	TypeTranscript     = "transcript"
	TypeLLMResponse    = "llm_response"
	TypeLLMResponseEnd = "llm_response_end"
	TypeAudio          = "audio"
	TypePipelineEnd    = "pipeline_end"
	TypeAudioEnd       = "audio_end"

	TypeInterrupt = "interrupt"
)

// EndOfUtteranceText is the only end-of-utterance marker this client sends,
// always wrapped as {"text":"END"}.
const EndOfUtteranceText = "END"

type HistoryEntry struct {
	Role  string   `json:"role" jsonschema:"enum=user,enum=assistant"`
	Parts []string `json:"parts"`
}

type HistoryMessage struct {
	Type string         `json:"type" jsonschema:"enum=history"`
	Data []HistoryEntry `json:"data"`
}

type TranscriptMessage struct {
	Type       string  `json:"type" jsonschema:"enum=transcript"`
	Transcript *string `json:"transcript" jsonschema:"required"`
	IsFinal    bool    `json:"is_final"`
}

type LLMResponseMessage struct {
	Type  string  `json:"type" jsonschema:"enum=llm_response"`
	Chunk *string `json:"chunk" jsonschema:"required"`
}

type LLMResponseEndMessage struct {
	Type string `json:"type" jsonschema:"enum=llm_response_end"`
}

type AudioMessage struct {
	Type       string  `json:"type" jsonschema:"enum=audio"`
	AudioChunk *string `json:"audio_chunk" jsonschema:"required" jsonschema_description:"base64 encoded raw PCM"`
}

type PipelineEndMessage struct {
	Type string `json:"type" jsonschema:"enum=pipeline_end,enum=audio_end"`
}

type SessionInitMessage struct {
	SessionID string `json:"session_id"`
}

type InterruptMessage struct {
	Type string `json:"type" jsonschema:"enum=interrupt"`
}

type EndOfUtteranceMessage struct {
	Text string `json:"text" jsonschema:"enum=END"`
}
