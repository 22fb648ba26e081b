package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"github.com/honeynil/GymLedgerService/internal/infrastructure/observability"
	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/segmentio/kafka-go"
)

// Deliverer pushes a notification to the user over some channel.
type Deliverer interface {
	Deliver(ctx context.Context, n models.Notification) error
	Channel() string
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader    messageReader
	topic     string
	deliverer Deliverer
}

func NewConsumer(brokers []string, topic, groupID string, deliverer Deliverer) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		topic:     topic,
		deliverer: deliverer,
	}
}

// Consume blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				slog.Info("notification consumer stopped", "topic", c.topic)
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))
		c.handleMessage(ctx, msg)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var n models.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		slog.Error("failed to unmarshal notification", "key", string(msg.Key), "error", err)
		return
	}
	if n.TelegramID == 0 || n.Message == "" {
		slog.Error("invalid notification: missing telegram_id or message", "id", n.ID)
		return
	}

	channel := c.deliverer.Channel()
	if err := c.deliverer.Deliver(ctx, n); err != nil {
		observability.NotificationDeliveries.WithLabelValues(channel, "error").Inc()
		// Повторной доставки нет, сообщение только логируется.
		slog.Error("failed to deliver notification", "id", n.ID, "telegram_id", n.TelegramID, "channel", channel, "error", err)
		return
	}
	observability.NotificationDeliveries.WithLabelValues(channel, "success").Inc()
	slog.Info("notification delivered", "id", n.ID, "telegram_id", n.TelegramID, "channel", channel)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
