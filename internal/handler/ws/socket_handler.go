package wshandler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relay-service/internal/domain"
	"relay-service/internal/hub"
	"relay-service/internal/middleware"
)

type WSHandler struct {
	hub    *hub.Hub
	logger *zap.Logger
}

func NewWSHandler(h *hub.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: h, logger: logger}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: tighten with allowed origins once the frontend domain is fixed
		return true
	},
}

// HandleEvents upgrades HTTP -> WebSocket and registers the connection for
// the authenticated user. Registration is implicit: staying connected is
// the subscription.
func (h *WSHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := hub.NewClient(userID, conn, h.logger)
	h.hub.Add(userID, c)

	go c.WritePump()
	go c.ReadPump(h.hub)

	// The hello only concerns the socket that just registered; other tabs
	// of the same user must not see it.
	h.hub.SendToClient(c, &domain.Event{
		Type:      domain.EventConnected,
		CreatedAt: time.Now().UTC(),
	})
}
