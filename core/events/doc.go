// Package events defines the typed event contract of a voice conversation.
//
// Event kinds are grouped by namespace:
//
//   - server.*: messages classified at the transport boundary, in the order
//     they arrived on the wire.
//   - connection.*: transport lifecycle, delivered on the same ordered stream
//     as server events.
//   - conversation.*: state the orchestrator exposes to a user interface.
//   - playback.*: audio output lifecycle and barge-in.
//
// Semantics used across the package:
//
//   - Chunk: append-only piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - End: lifecycle boundary indicating stream completion.
//
// server events
//
//   - History (server.history): full stored conversation, replaces the log.
//   - Transcript (server.transcript): partial or final user transcript.
//   - ResponseTextChunk (server.response_text_chunk): streamed response text.
//   - ResponseTextEnd (server.response_text_end): response text is complete;
//     when Terminal it also closes the turn.
//   - AudioChunk (server.audio_chunk): one opaque audio fragment.
//   - AudioEnd (server.audio_end): audio fragment list is complete.
//
// connection events
//
//   - ConnectionStateChanged (connection.state_changed): disconnected,
//     connecting, open or closed, with the reconnect attempt and cause.
//
// conversation events
//
//   - ConversationStateChanged (conversation.state_changed)
//   - TranscriptPreviewUpdated (conversation.transcript_preview_updated)
//   - TranscriptLogAppended (conversation.transcript_log_appended)
//   - TranscriptLogReplaced (conversation.transcript_log_replaced)
//   - ResponseUpdated (conversation.response_updated)
//   - Error (conversation.error)
//
// playback events
//
//   - PlaybackStarted (playback.started)
//   - PlaybackEnded (playback.ended): finished, interrupted or failed.
//   - BargeInDetected (playback.barge_in_detected)
package events
