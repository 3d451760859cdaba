package websocket

import (
	"time"

	"github.com/sethvargo/go-retry"
)

const DefaultReconnectDelay = 3 * time.Second

// ReconnectPolicy decides how long the session waits between reconnect
// attempts and when it gives up.
type ReconnectPolicy struct {
	Delay time.Duration
	// MaxAttempts of zero keeps reconnecting until the session is closed.
	MaxAttempts uint64
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: DefaultReconnectDelay}
}

// backoff starts a fresh attempt sequence. The session asks for a new one
// every time a connection reaches the open state.
func (p ReconnectPolicy) backoff() retry.Backoff {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	backoff := retry.NewConstant(delay)
	if p.MaxAttempts > 0 {
		backoff = retry.WithMaxRetries(p.MaxAttempts, backoff)
	}
	return backoff
}
