package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"relay-service/internal/domain"
	"relay-service/internal/hub"
)

// KafkaConsumer feeds backend domain events (goal completed, reminder due)
// into the hub. The backend persists the notification first and then emits
// the event, so the relay can treat every message as a disposable hint.
type KafkaConsumer struct {
	reader *kafka.Reader
	hub    *hub.Hub
	logger *zap.Logger
}

type notificationEvent struct {
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id"`
	Data      map[string]any `json:"data,omitempty"`
}

func NewKafkaConsumer(brokers []string, topic, groupID string, h *hub.Hub, logger *zap.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &KafkaConsumer{reader: r, hub: h, logger: logger}
}

// Start blocks reading the topic until ctx is cancelled. Transient fetch
// errors back off and retry; the consumer never takes the relay down.
func (c *KafkaConsumer) Start(ctx context.Context) {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	c.logger.Info("kafka consumer started", zap.String("topic", c.reader.Config().Topic))

	backoff := time.Second
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("kafka consumer stopping")
				return
			}
			c.logger.Error("kafka read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		var ev notificationEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.logger.Warn("bad kafka event", zap.Error(err),
				zap.ByteString("key", msg.Key))
			continue
		}
		if ev.UserID == "" {
			c.logger.Warn("kafka event missing user_id", zap.ByteString("key", msg.Key))
			continue
		}

		c.hub.SendToUser(ev.UserID, &domain.Event{
			Type: domain.EventType(ev.EventType),
			Data: ev.Data,
		})
	}
}
