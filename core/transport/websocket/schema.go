package websocket

import (
	"github.com/bytedance/sonic"
	"github.com/invopop/jsonschema"
)

// Schema describes every control message of the duplex protocol so a server
// can be validated against what this client sends and expects.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}

	inbound := []*jsonschema.Schema{
		reflector.Reflect(&HistoryMessage{}),
		reflector.Reflect(&TranscriptMessage{}),
		reflector.Reflect(&LLMResponseMessage{}),
		reflector.Reflect(&LLMResponseEndMessage{}),
		reflector.Reflect(&AudioMessage{}),
		reflector.Reflect(&PipelineEndMessage{}),
	}
	outbound := []*jsonschema.Schema{
		reflector.Reflect(&SessionInitMessage{}),
		reflector.Reflect(&InterruptMessage{}),
		reflector.Reflect(&EndOfUtteranceMessage{}),
	}
	for _, schema := range append(inbound, outbound...) {
		schema.Version = ""
	}

	properties := jsonschema.NewProperties()
	properties.Set("inbound", &jsonschema.Schema{OneOf: inbound})
	properties.Set("outbound", &jsonschema.Schema{OneOf: outbound})

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "ema duplex protocol",
		Description: "Text frames exchanged over the conversation websocket. Audio travels as raw binary frames.",
		Type:        "object",
		Properties:  properties,
	}
}

// SchemaJSON is [Schema] rendered as indented JSON.
func SchemaJSON() ([]byte, error) {
	return sonic.MarshalIndent(Schema(), "", "  ")
}
