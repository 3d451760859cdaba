package events

const (
	// KindPlaybackStarted identifies the start of a turn's audio.
	KindPlaybackStarted Kind = "playback.started"
	// KindPlaybackEnded identifies the end of a turn's audio.
	KindPlaybackEnded Kind = "playback.ended"
	// KindBargeInDetected identifies the user speaking over playback.
	KindBargeInDetected Kind = "playback.barge_in_detected"
)

type PlaybackOutcome string

const (
	PlaybackFinished    PlaybackOutcome = "finished"
	PlaybackInterrupted PlaybackOutcome = "interrupted"
	PlaybackFailed      PlaybackOutcome = "failed"
)

type PlaybackStarted struct {
	Base
	TurnID string
	// Bytes is the size of the PCM payload being played.
	Bytes int
}

func NewPlaybackStarted(turnID string, bytes int) PlaybackStarted {
	return PlaybackStarted{Base: NewBase(KindPlaybackStarted), TurnID: turnID, Bytes: bytes}
}

type PlaybackEnded struct {
	Base
	TurnID  string
	Outcome PlaybackOutcome
}

func NewPlaybackEnded(turnID string, outcome PlaybackOutcome) PlaybackEnded {
	return PlaybackEnded{Base: NewBase(KindPlaybackEnded), TurnID: turnID, Outcome: outcome}
}

// BargeInDetected reports the level that crossed the threshold.
type BargeInDetected struct {
	Base
	TurnID string
	Level  float64
}

func NewBargeInDetected(turnID string, level float64) BargeInDetected {
	return BargeInDetected{Base: NewBase(KindBargeInDetected), TurnID: turnID, Level: level}
}
