package audio

import "errors"

var (
	// ErrPermissionDenied is returned when the user or the platform refuses
	// access to the microphone. It is not retryable without user action.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable is returned when no usable audio device exists.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrFrameSizeMismatch is a caller error: destination and source buffer
	// sizes do not agree.
	ErrFrameSizeMismatch = errors.New("frame size mismatch")
	// ErrInvalidContainer is returned for a malformed WAV container.
	ErrInvalidContainer = errors.New("invalid audio container")
	// ErrPlaybackDecode is returned when a playback payload cannot be decoded
	// into playable audio (corrupt or empty).
	ErrPlaybackDecode = errors.New("playback decode failed")
)
