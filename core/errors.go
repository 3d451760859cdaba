package orchestration

import "errors"

var (
	ErrNotStarted   = errors.New("orchestrator not started")
	ErrClosed       = errors.New("orchestrator closed")
	ErrInvalidState = errors.New("invalid conversation state")

	// ErrNotConnected is returned when recording is requested while the
	// duplex channel is down and no fallback client is configured.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectionClosed reports that the transport gave up reconnecting.
	ErrConnectionClosed = errors.New("connection closed")
)
