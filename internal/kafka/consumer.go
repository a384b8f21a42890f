//go:generate mockgen -source ./consumer.go -destination=./mocks/consumer.go -package=mock_kafka
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/repository"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ActivityHandler func(ctx context.Context, payload repository.ActivityPayload) error

// Consumer reads relayed activity events and hands them to a handler.
// Undecodable messages are logged and skipped.
type Consumer struct {
	reader     MessageReader
	handler    ActivityHandler
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewConsumer(reader MessageReader, handler ActivityHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		handler:    handler,
		logger:     logger.With(zap.String("component", "activity_consumer")),
		retryDelay: 5 * time.Second,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
}

// Run consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		c.logger.Info("closing kafka reader")
		if err := c.reader.Close(); err != nil {
			c.logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("context cancelled, exiting message loop")
				return nil
			}
			c.logger.Error("failed to read message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}
		c.handle(ctx, m)
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	l := c.logger.With(
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.ByteString("key", m.Key))

	var payload repository.ActivityPayload
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		l.Warn("skipping undecodable activity message", zap.Error(err))
		return
	}
	if err := c.handler(ctx, payload); err != nil {
		l.Error("activity handler failed", zap.String("event_id", payload.EventID), zap.Error(err))
	}
}

// LogActivity is the default handler: it writes each event to the log.
func LogActivity(logger *zap.Logger) ActivityHandler {
	return func(_ context.Context, p repository.ActivityPayload) error {
		logger.Info("activity",
			zap.String("event_id", p.EventID),
			zap.String("type", p.Type),
			zap.String("performer", p.PerformerName),
			zap.String("entity_id", p.EntityID),
			zap.Time("occurred_at", p.OccurredAt),
			zap.String("description", p.Description))
		return nil
	}
}
