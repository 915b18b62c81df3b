package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relay-service/internal/domain"
)

// ConnState is the lifecycle of one session connection.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultMissedLimit       = 3
)

// EventSink receives inbound event hints. Events carry no state of record;
// the sink re-fetches authoritative data from the backend.
type EventSink interface {
	Refresh()
}

// Socket owns one persistent relay connection per session: it dials,
// heartbeats, and reconnects with backoff until closed. Exactly one Socket
// per tab/agent; all connection state lives here and is mutated only by
// the socket's own goroutines.
type Socket struct {
	endpoint string
	token    string
	sink     EventSink
	logger   *zap.Logger

	HeartbeatInterval time.Duration
	MissedLimit       int
	Backoff           *Backoff

	// sendPing emits one heartbeat frame; swappable in tests to simulate
	// a transport that swallows writes.
	sendPing func(conn *websocket.Conn, deadline time.Time) error

	mu     sync.Mutex
	state  ConnState
	conn   *websocket.Conn
	missed int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSocket prepares a client for the given relay endpoint. The token is
// required: an unauthenticated session must never connect.
func NewSocket(endpoint, token string, sink EventSink, logger *zap.Logger) (*Socket, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	return &Socket{
		endpoint:          endpoint,
		token:             token,
		sink:              sink,
		logger:            logger,
		HeartbeatInterval: defaultHeartbeatInterval,
		MissedLimit:       defaultMissedLimit,
		Backoff:           NewBackoff(),
		sendPing: func(conn *websocket.Conn, deadline time.Time) error {
			return conn.WriteControl(websocket.PingMessage, nil, deadline)
		},
		state: StateDisconnected,
	}, nil
}

func (s *Socket) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) setState(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start runs the connect/reconnect loop in its own goroutine.
func (s *Socket) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(runCtx)
}

// Close tears the connection down and stops reconnecting.
func (s *Socket) Close() {
	s.mu.Lock()
	s.state = StateClosing
	cancel := s.cancel
	conn := s.conn
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	s.setState(StateDisconnected)
}

// Done is closed once the run loop has exited.
func (s *Socket) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Socket) run(ctx context.Context) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)
		conn, err := s.dial(ctx)
		if err != nil {
			s.setState(StateDisconnected)
			s.logger.Warn("relay dial failed", zap.Error(err))
			if !s.sleep(ctx, s.Backoff.Next()) {
				return
			}
			continue
		}

		// Successful connect resets backoff and the heartbeat counter.
		s.Backoff.Reset()
		s.mu.Lock()
		s.conn = conn
		s.missed = 0
		s.state = StateOpen
		s.mu.Unlock()
		s.logger.Info("relay connected", zap.String("endpoint", s.endpoint))

		s.serve(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.state = StateDisconnected
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		// Any close, clean or abnormal, re-enters connecting after backoff.
		if !s.sleep(ctx, s.Backoff.Next()) {
			return
		}
	}
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, s.endpoint+"?token="+s.token, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", s.endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", s.endpoint, err)
	}
	return conn, nil
}

// serve pumps inbound events and heartbeats until the connection dies.
func (s *Socket) serve(ctx context.Context, conn *websocket.Conn) {
	readDone := make(chan struct{})

	conn.SetPongHandler(func(string) error {
		s.mu.Lock()
		s.missed = 0
		s.mu.Unlock()
		return nil
	})

	go func() {
		defer close(readDone)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.dispatch(payload)
		}
	}()

	ticker := time.NewTicker(s.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			<-readDone
			return

		case <-readDone:
			_ = conn.Close()
			return

		case <-ticker.C:
			if err := s.sendPing(conn, time.Now().Add(5*time.Second)); err != nil {
				s.mu.Lock()
				s.missed++
				missed := s.missed
				s.mu.Unlock()
				s.logger.Warn("heartbeat failed",
					zap.Int("missed", missed),
					zap.Error(err),
				)
				if missed >= s.MissedLimit {
					// Half-open connection the transport hasn't noticed:
					// close proactively and let the loop reconnect.
					_ = conn.Close()
					<-readDone
					return
				}
			} else {
				s.mu.Lock()
				s.missed = 0
				s.mu.Unlock()
			}
		}
	}
}

// dispatch parses one inbound frame. Notification hints forward to the
// sink; unknown shapes are logged and dropped, never fatal.
func (s *Socket) dispatch(payload []byte) {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.Warn("malformed relay event", zap.Error(err))
		return
	}

	switch ev.Type {
	case domain.EventNotificationCreated, domain.EventApprovalRequested, domain.EventApprovalResolved:
		if s.sink != nil {
			s.sink.Refresh()
		}
	case domain.EventConnected:
		s.logger.Debug("relay handshake complete")
	default:
		s.logger.Warn("unknown relay event dropped", zap.String("type", string(ev.Type)))
	}
}

// MissedHeartbeats reports the current consecutive-failure count.
func (s *Socket) MissedHeartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missed
}

func (s *Socket) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
