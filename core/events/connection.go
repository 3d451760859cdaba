package events

// KindConnectionStateChanged identifies a transport connection state change.
const KindConnectionStateChanged Kind = "connection.state_changed"

type ConnectionState int

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionOpen
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionOpen:
		return "open"
	case ConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionStateChanged is delivered in order with server events so a
// consumer never sees events from a connection after it learned it dropped.
type ConnectionStateChanged struct {
	Base
	State ConnectionState
	// Attempt is the reconnect attempt number, zero for the first connect.
	Attempt int
	// Err is the reason the connection left the open state, if any.
	Err error
}

func NewConnectionStateChanged(state ConnectionState, attempt int, err error) ConnectionStateChanged {
	return ConnectionStateChanged{
		Base:    NewBase(KindConnectionStateChanged),
		State:   state,
		Attempt: attempt,
		Err:     err,
	}
}
