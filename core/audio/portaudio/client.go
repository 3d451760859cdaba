package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-duplex/core/audio"
)

// Client captures mono float32 audio from the default input device at the
// capture sample rate, one frameSize block per read.
type Client struct {
	frameSize int

	mu     sync.Mutex
	stream *portaudio.Stream
	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(frameSize int) (*Client, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize portaudio: %v", audio.ErrDeviceUnavailable, err)
	}

	return &Client{frameSize: frameSize}, nil
}

// StartCapture opens a fresh input stream and delivers each block to
// onSamples from a dedicated read goroutine. A stream that is already open is
// stopped first.
func (c *Client) StartCapture(ctx context.Context, onSamples func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	buffer := make([]float32, c.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.CaptureSampleRate), c.frameSize, buffer)
	if err != nil {
		return classifyError("open input stream", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return classifyError("start input stream", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.stream, c.cancel, c.done = stream, cancel, done

	go c.read(ctx, stream, buffer, onSamples, done)
	return nil
}

func (c *Client) read(ctx context.Context, stream *portaudio.Stream, buffer []float32, onSamples func([]float32), done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			if ctx.Err() == nil {
				logger.Warn("failed to read from input stream", "error", err)
			}
			return
		}

		block := make([]float32, len(buffer))
		copy(block, buffer)
		onSamples(block)
	}
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopLocked()
}

func (c *Client) stopLocked() error {
	if c.stream == nil {
		return nil
	}

	c.cancel()
	abortErr := c.stream.Abort()
	<-c.done
	closeErr := c.stream.Close()

	c.stream, c.cancel, c.done = nil, nil, nil
	return errors.Join(abortErr, closeErr)
}

func (c *Client) Close() error {
	return errors.Join(c.StopCapture(), portaudio.Terminate())
}

func classifyError(action string, err error) error {
	var paErr portaudio.Error
	if errors.As(err, &paErr) {
		switch paErr {
		case portaudio.NoDefaultInputDevice, portaudio.DeviceUnavailable, portaudio.InvalidDevice:
			return fmt.Errorf("%w: failed to %s: %v", audio.ErrDeviceUnavailable, action, err)
		}
	}
	var hostErr portaudio.UnanticipatedHostError
	if errors.As(err, &hostErr) {
		return fmt.Errorf("%w: failed to %s: %v", audio.ErrPermissionDenied, action, err)
	}

	return fmt.Errorf("%w: failed to %s: %v", audio.ErrDeviceUnavailable, action, err)
}
