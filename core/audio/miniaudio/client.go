package miniaudio

import (
	"errors"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-duplex/core/audio"
)

// Client owns one miniaudio context and exposes two independent devices on
// it: a playback device rebuilt for every buffer and a passive capture tap
// used for barge-in monitoring.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	tapClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, classifyError("initialize audio context", err)
	}

	client := Client{audioContext: audioCtx}
	client.playbackClient.audioContext = audioCtx
	client.tapClient.audioContext = audioCtx
	return &client, nil
}

func (c *Client) Close() error {
	errs := errors.Join(c.playbackClient.Stop(), c.tapClient.CloseTap())
	if err := c.audioContext.Uninit(); err != nil {
		errs = errors.Join(errs, err)
	}
	c.audioContext.Free()
	return errs
}

func classifyError(action string, err error) error {
	switch {
	case errors.Is(err, malgo.ErrAccessDenied):
		return fmt.Errorf("%w: failed to %s: %v", audio.ErrPermissionDenied, action, err)
	case errors.Is(err, malgo.ErrNoDevice), errors.Is(err, malgo.ErrNoBackend):
		return fmt.Errorf("%w: failed to %s: %v", audio.ErrDeviceUnavailable, action, err)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}
