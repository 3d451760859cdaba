package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/koscakluka/ema-duplex/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrConnectionLost wraps every failure that drops an open connection or
	// prevents one from opening. The session reconnects on its own.
	ErrConnectionLost = errors.New("connection lost")

	ErrSessionClosed    = errors.New("session closed")
	ErrAlreadyConnected = errors.New("session already connected")
)

const defaultWriteTimeout = 10 * time.Second

// Session owns the one duplex connection to the conversation server.
//
// All events, including connection state changes, are delivered to the
// onEvent callback from a single goroutine in the order they happened, so
// onEvent must not block for long and must not call Close.
type Session struct {
	url          string
	dialer       *gws.Dialer
	header       http.Header
	policy       ReconnectPolicy
	writeTimeout time.Duration

	mu        sync.Mutex
	state     events.ConnectionState
	conn      *gws.Conn
	sessionID string
	started   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}

	// writeMu serializes writers, gorilla connections allow only one.
	writeMu sync.Mutex

	rebind chan struct{}
}

type SessionOption func(*Session)

func WithDialer(dialer *gws.Dialer) SessionOption {
	return func(s *Session) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}

// WithHeader adds headers to every handshake, e.g. credentials.
func WithHeader(header http.Header) SessionOption {
	return func(s *Session) { s.header = header.Clone() }
}

func WithReconnectPolicy(policy ReconnectPolicy) SessionOption {
	return func(s *Session) { s.policy = policy }
}

func WithWriteTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.writeTimeout = timeout
		}
	}
}

func NewSession(url string, opts ...SessionOption) *Session {
	session := &Session{
		url:          url,
		dialer:       gws.DefaultDialer,
		policy:       DefaultReconnectPolicy(),
		writeTimeout: defaultWriteTimeout,
		state:        events.ConnectionDisconnected,
		rebind:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// Connect starts the connection loop in the background and returns at once.
// Progress, including failures to connect, is reported through onEvent as
// [events.ConnectionStateChanged].
func (s *Session) Connect(ctx context.Context, sessionID string, onEvent func(events.Event)) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if onEvent == nil {
		onEvent = func(events.Event) {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	} else if s.started {
		return ErrAlreadyConnected
	}

	ctx, cancel := context.WithCancel(ctx)
	s.started = true
	s.sessionID = sessionID
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, onEvent)
	return nil
}

// Rebind switches the session to a new id. The current connection is
// dropped and the next one is opened right away with the new id.
func (s *Session) Rebind(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.sessionID = sessionID
	conn := s.conn
	if s.started {
		select {
		case s.rebind <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

func (s *Session) State() events.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) run(ctx context.Context, onEvent func(events.Event)) {
	defer close(s.done)
	defer func() {
		s.setState(events.ConnectionClosed)
		onEvent(events.NewConnectionStateChanged(events.ConnectionClosed, 0, nil))
	}()

	backoff := s.policy.backoff()
	attempt := 0
	for {
		s.setState(events.ConnectionConnecting)
		onEvent(events.NewConnectionStateChanged(events.ConnectionConnecting, attempt, nil))

		opened, err := s.serve(ctx, onEvent)
		if ctx.Err() != nil {
			return
		}
		if opened {
			backoff = s.policy.backoff()
			attempt = 0
		}

		cause := fmt.Errorf("%w: %v", ErrConnectionLost, err)
		s.setState(events.ConnectionDisconnected)
		onEvent(events.NewConnectionStateChanged(events.ConnectionDisconnected, attempt, cause))

		if s.takeRebind() {
			continue
		}

		delay, stop := backoff.Next()
		if stop {
			logger.Warn("giving up reconnecting", "attempts", attempt)
			return
		}
		attempt++
		reconnectCounter.Add(ctx, 1)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.rebind:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// serve dials, announces the session and reads until the connection fails.
// opened reports whether the connection ever reached the open state.
func (s *Session) serve(ctx context.Context, onEvent func(events.Event)) (opened bool, err error) {
	var conn *gws.Conn
	for conn == nil {
		dialed, announced, err := s.dial(ctx)
		if err != nil {
			return false, err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = dialed.Close()
			return false, ErrSessionClosed
		}
		if announced != s.sessionID {
			// rebound while the handshake was in flight
			s.mu.Unlock()
			_ = dialed.Close()
			logger.Debug("session id changed while dialing, redialing", "announced", announced)
			continue
		}
		// this connection already carries the latest id
		s.takeRebind()
		s.conn = dialed
		s.state = events.ConnectionOpen
		s.mu.Unlock()
		conn = dialed
	}
	defer conn.Close()

	onEvent(events.NewConnectionStateChanged(events.ConnectionOpen, 0, nil))

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure) {
				logger.Info("server closed connection")
			}
			return true, err
		}

		event, err := Classify(messageType, payload)
		if err != nil {
			protocolErrorCounter.Add(ctx, 1)
			logger.Warn("dropping inbound message", "error", err)
			continue
		}
		onEvent(event)
	}
}

// dial opens a connection and announces the session id current at the time
// of the call, which it returns.
func (s *Session) dial(ctx context.Context) (*gws.Conn, string, error) {
	sessionID := s.SessionID()
	ctx, span := tracer.Start(ctx, "connect", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, "", fmt.Errorf("failed to dial %s: %w", s.url, err)
	}

	payload, err := encodeSessionInit(sessionID)
	if err == nil {
		err = s.writeTo(conn, gws.TextMessage, payload)
	}
	if err != nil {
		_ = conn.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "session init failed")
		return nil, "", fmt.Errorf("failed to send session id: %w", err)
	}

	return conn, sessionID, nil
}

func (s *Session) setState(state events.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) takeRebind() bool {
	select {
	case <-s.rebind:
		return true
	default:
		return false
	}
}

// SendAudio writes one PCM frame as a binary message. Frames sent while the
// connection is not open are dropped.
func (s *Session) SendAudio(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}

	sent, err := s.write(gws.BinaryMessage, frame)
	if err != nil {
		return err
	}
	if sent {
		framesSentCounter.Add(context.Background(), 1)
	} else {
		framesDroppedCounter.Add(context.Background(), 1)
	}
	return nil
}

// Interrupt asks the server to abandon the generation in flight.
func (s *Session) Interrupt() error {
	payload, err := encodeInterrupt()
	if err != nil {
		return err
	}
	_, err = s.write(gws.TextMessage, payload)
	return err
}

// EndUtterance tells the server the user stopped talking.
func (s *Session) EndUtterance() error {
	payload, err := encodeEndOfUtterance()
	if err != nil {
		return err
	}
	_, err = s.write(gws.TextMessage, payload)
	return err
}

func (s *Session) write(messageType int, payload []byte) (bool, error) {
	s.mu.Lock()
	conn := s.conn
	open := s.state == events.ConnectionOpen
	s.mu.Unlock()

	if conn == nil || !open {
		return false, nil
	}

	if err := s.writeTo(conn, messageType, payload); err != nil {
		// the read loop notices the closed connection and reconnects
		_ = conn.Close()
		return false, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return true, nil
}

func (s *Session) writeTo(conn *gws.Conn, messageType int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, payload)
}

// Close tears the session down and waits for the connection loop to exit.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	cancel := s.cancel
	done := s.done
	if !s.started {
		s.state = events.ConnectionClosed
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}
