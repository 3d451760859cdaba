package orchestration

import "github.com/koscakluka/ema-duplex/core/events"

type eventEmitter func(events.Event)

func newCallbackEventEmitter(callbacks orchestratorCallbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.ConversationStateChanged:
			if callbacks.onStateChanged != nil {
				callbacks.onStateChanged(parseConversationState(typedEvent.From), parseConversationState(typedEvent.To))
			}
		case events.ConnectionStateChanged:
			if callbacks.onConnectionChanged != nil {
				callbacks.onConnectionChanged(typedEvent.State, typedEvent.Attempt)
			}
		case events.TranscriptPreviewUpdated:
			if callbacks.onTranscriptPreview != nil {
				callbacks.onTranscriptPreview(typedEvent.Text)
			}
		case events.TranscriptLogAppended:
			if typedEvent.Role == RoleUser && callbacks.onTranscript != nil {
				callbacks.onTranscript(typedEvent.Text)
			}
		case events.ResponseUpdated:
			if !typedEvent.Final && callbacks.onResponse != nil {
				callbacks.onResponse(typedEvent.Text)
			} else if typedEvent.Final && callbacks.onResponseEnd != nil {
				callbacks.onResponseEnd(typedEvent.Text)
			}
		case events.TranscriptLogReplaced:
			if callbacks.onHistory != nil {
				callbacks.onHistory(typedEvent.Messages)
			}
		case events.PlaybackStarted:
			if callbacks.onPlaybackStarted != nil {
				callbacks.onPlaybackStarted(typedEvent.TurnID)
			}
		case events.PlaybackEnded:
			if callbacks.onPlaybackEnded != nil {
				callbacks.onPlaybackEnded(typedEvent.TurnID, typedEvent.Outcome)
			}
		case events.BargeInDetected:
			if callbacks.onBargeIn != nil {
				callbacks.onBargeIn(typedEvent.Level)
			}
		case events.Error:
			if callbacks.onError != nil {
				callbacks.onError(typedEvent.Err, typedEvent.Recoverable)
			}
		}

		if callbacks.onEvent != nil {
			callbacks.onEvent(event)
		}
	}
}
