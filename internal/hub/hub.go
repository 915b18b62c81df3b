package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relay-service/internal/domain"
	"relay-service/internal/metrics"
)

// Hub is the per-user connection registry. Connections register implicitly
// by staying connected; every live connection for a user is reachable via
// SendToUser. The hub holds no durable state: a restart drops everything
// and clients recover by reconnecting and re-fetching from the backend.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Client]struct{} // userID -> set of connections
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*Client]struct{}),
		logger:      logger,
	}
}

// Add registers a connection for a user and returns the wrapped client.
func (h *Hub) Add(userID string, c *Client) {
	h.mu.Lock()
	if _, ok := h.connections[userID]; !ok {
		h.connections[userID] = make(map[*Client]struct{})
	}
	h.connections[userID][c] = struct{}{}
	total := len(h.connections[userID])
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	h.logger.Info("ws connected",
		zap.String("user_id", userID),
		zap.String("conn_id", c.ID),
		zap.Int("total_for_user", total),
	)
}

// Remove drops a connection. Once removed the hub simply stops delivering
// to it; there is no queued redelivery.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	removed := false
	if conns, ok := h.connections[c.UserID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			removed = true
			if len(conns) == 0 {
				delete(h.connections, c.UserID)
			}
		}
	}
	h.mu.Unlock()

	if removed {
		c.closeOnce.Do(func() { close(c.send) })
		metrics.ActiveConnections.Dec()
		h.logger.Info("ws disconnected",
			zap.String("user_id", c.UserID),
			zap.String("conn_id", c.ID),
		)
	}
}

// SendToUser fans an event out to every live connection for userID.
// Delivery is best-effort and at-most-once per socket; with no live
// connection the call is a no-op and the event is dropped.
func (h *Hub) SendToUser(userID string, ev *domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.UserID = userID

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("marshal event failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := h.connections[userID]
	targets := make([]*Client, 0, len(conns))
	for c := range conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		metrics.EventsDropped.Inc()
		return
	}

	for _, c := range targets {
		h.deliver(c, payload)
	}
}

// SendToClient addresses a single connection, bypassing the per-user
// fan-out. Used for frames that only concern one socket, like the
// registration hello.
func (h *Hub) SendToClient(c *Client, ev *domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.UserID = c.UserID

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("marshal event failed", zap.Error(err))
		return
	}
	h.deliver(c, payload)
}

func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
		metrics.EventsDelivered.Inc()
	default:
		// Slow consumer: drop the socket, the client reconnects
		// and re-syncs via authoritative fetch.
		h.logger.Warn("send buffer full, dropping connection",
			zap.String("user_id", c.UserID),
			zap.String("conn_id", c.ID),
		)
		h.Remove(c)
	}
}

// Broadcast sends an event to every connected user.
func (h *Hub) Broadcast(ev *domain.Event) {
	h.mu.RLock()
	users := make([]string, 0, len(h.connections))
	for userID := range h.connections {
		users = append(users, userID)
	}
	h.mu.RUnlock()

	for _, userID := range users {
		evCopy := *ev
		h.SendToUser(userID, &evCopy)
	}
}

// ConnectionCount reports live connections for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Reap closes connections that have not been seen within maxIdle. Run on a
// ticker from the server; bounds half-open sockets the transport missed.
func (h *Hub) Reap(maxIdle time.Duration) {
	h.mu.RLock()
	stale := []*Client{}
	for _, conns := range h.connections {
		for c := range conns {
			if time.Since(c.LastSeen()) > maxIdle {
				stale = append(stale, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Warn("reaping stale connection",
			zap.String("user_id", c.UserID),
			zap.String("conn_id", c.ID),
		)
		h.Remove(c)
	}
}
