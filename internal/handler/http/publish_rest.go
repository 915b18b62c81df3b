package httphandler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"relay-service/internal/domain"
	"relay-service/internal/hub"
	"relay-service/internal/response"
)

type PublishHandler struct {
	hub    *hub.Hub
	logger *zap.Logger
}

func NewPublishHandler(h *hub.Hub, logger *zap.Logger) *PublishHandler {
	return &PublishHandler{hub: h, logger: logger}
}

// HandlePublish accepts a (user_id, event) pair from a trusted publisher
// and fans it out to the user's live connections. Publishing to a user
// with no connection is a successful no-op.
func (h *PublishHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req domain.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}
	if req.UserID == "" || req.Type == "" {
		response.Error(w, http.StatusBadRequest, "user_id and type required")
		return
	}

	h.hub.SendToUser(req.UserID, &domain.Event{
		Type: req.Type,
		Data: req.Data,
	})

	response.Accepted(w, map[string]int{
		"connections": h.hub.ConnectionCount(req.UserID),
	})
}

// HandleHealth reports liveness.
func (h *PublishHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"service": "relay"})
}
