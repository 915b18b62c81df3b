package domain

import "time"

// EventType defines category of relay events
type EventType string

const (
	EventNotificationCreated EventType = "notification.created"
	EventApprovalRequested   EventType = "approval.requested"
	EventApprovalResolved    EventType = "approval.resolved"
	EventConnected           EventType = "connected"
)

// Event is the wire shape fanned out to websocket clients. Payloads are
// hints only: clients re-fetch authoritative state from the backend and
// never treat Data as the record of truth.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data,omitempty"`
}

// PublishRequest is the body accepted from trusted publishers over HTTP.
type PublishRequest struct {
	UserID string         `json:"user_id"`
	Type   EventType      `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
}

// Notification is the backend's notification record as seen by the client
// SDK when it re-fetches the authoritative list.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}
