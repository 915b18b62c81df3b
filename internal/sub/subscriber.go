package sub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"relay-service/internal/domain"
	"relay-service/internal/hub"
)

// EventSubscriber bridges the chat-bot integration into the hub. The bot
// reports approval actions and sends reminders by publishing to a Redis
// channel; the relay fans them out to whichever browser sessions are live.
type EventSubscriber struct {
	rdb     *redis.Client
	hub     *hub.Hub
	channel string
	pubsub  *redis.PubSub
	logger  *zap.Logger
}

type busEvent struct {
	Type   string         `json:"type"`
	UserID string         `json:"user_id"`
	Data   map[string]any `json:"data,omitempty"`
}

func NewEventSubscriber(rdb *redis.Client, h *hub.Hub, channel string, logger *zap.Logger) *EventSubscriber {
	return &EventSubscriber{
		rdb:     rdb,
		hub:     h,
		channel: channel,
		logger:  logger,
	}
}

// Start subscribes to the bus channel and forwards events to the hub.
func (s *EventSubscriber) Start(ctx context.Context) error {
	s.pubsub = s.rdb.Subscribe(ctx, s.channel)

	// Wait for confirmation that the subscription is created.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.logger.Info("subscribed to redis channel", zap.String("channel", s.channel))
	go s.listen(ctx)
	return nil
}

func (s *EventSubscriber) listen(ctx context.Context) {
	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping redis subscriber")
			_ = s.pubsub.Close()
			return

		case msg := <-ch:
			if msg == nil {
				continue
			}
			ev, err := decodeBusEvent([]byte(msg.Payload))
			if err != nil {
				// Malformed events are dropped, never fatal.
				s.logger.Warn("bad bus event", zap.Error(err))
				continue
			}
			s.hub.SendToUser(ev.UserID, &domain.Event{
				Type: domain.EventType(ev.Type),
				Data: ev.Data,
			})
		}
	}
}

func decodeBusEvent(payload []byte) (*busEvent, error) {
	var ev busEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	if ev.UserID == "" {
		return nil, fmt.Errorf("event missing user_id")
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event missing type")
	}
	return &ev, nil
}

// Stop closes the subscription.
func (s *EventSubscriber) Stop() error {
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}
