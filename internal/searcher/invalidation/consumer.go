// Package invalidation listens for index rebuild notifications on Kafka and
// drops cached search results that were computed against the old index.
package invalidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/kafka"
)

// IndexCompleteEvent is published by the index build pipeline once a new
// segment for a field has been written.
type IndexCompleteEvent struct {
	Field       string    `json:"field"`
	SegmentPath string    `json:"segment_path"`
	DocCount    int       `json:"doc_count"`
	CompletedAt time.Time `json:"completed_at"`
}

// Invalidator is implemented by the result cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Consumer wraps a Kafka consumer that drives cache invalidation.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *Consumer {
	return &Consumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "invalidation-consumer"),
	}
}

// Start consumes messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("invalidation consumer starting")
	return c.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that invalidates cache for every
// index.complete event. Undecodable messages are logged and skipped so they
// do not block the partition; a failed invalidation is returned so the
// message is not committed.
func HandleMessage(cache Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "invalidation-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IndexCompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index complete event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := cache.Invalidate(ctx); err != nil {
			return fmt.Errorf("invalidating cache after %s rebuild: %w", event.Field, err)
		}
		logger.Info("cache invalidated after index rebuild",
			"field", event.Field,
			"segment", event.SegmentPath,
			"doc_count", event.DocCount,
		)
		return nil
	}
}
