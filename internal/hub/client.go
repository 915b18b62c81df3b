package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBufferSize = 256
)

// Client wraps one websocket connection with its owner identity.
type Client struct {
	ID     string
	UserID string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	logger    *zap.Logger

	mu       sync.Mutex
	lastSeen time.Time
}

func NewClient(userID string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		logger:   logger,
		lastSeen: time.Now(),
	}
}

func (c *Client) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// ReadPump consumes inbound frames. The relay expects nothing of substance
// from clients; the loop exists to observe pings/pongs and closure.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.conn.SetPingHandler(func(appData string) error {
		c.touch()
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("ws read error", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
		c.touch()
	}
}

// WritePump drains the send buffer and keeps the connection alive with
// periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
