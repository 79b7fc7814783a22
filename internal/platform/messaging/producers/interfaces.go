package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// OutcomePublisher announces terminal payment outcomes
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event OutcomeEvent) error
	Close() error
}

// DeadLetterPublisher records messages that could not be delivered
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
