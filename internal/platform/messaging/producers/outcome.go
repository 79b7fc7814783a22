package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/consultation-booking/internal/config"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// OutcomeEvent is published once per transaction when it reaches a terminal status
type OutcomeEvent struct {
	TransactionID  string             `json:"transaction_id"`
	Status         transaction.Status `json:"status"`
	Amount         decimal.Decimal    `json:"amount"`
	GatewayOrderID string             `json:"gateway_order_id,omitempty"`
	FailureReason  string             `json:"failure_reason,omitempty"`
	ServiceID      string             `json:"service_id,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// NewOutcomeEvent builds the event for a terminal transaction
func NewOutcomeEvent(txn transaction.Transaction) OutcomeEvent {
	event := OutcomeEvent{
		TransactionID:  txn.ID,
		Status:         txn.Status,
		Amount:         txn.Amount,
		GatewayOrderID: txn.GatewayOrderID,
		FailureReason:  txn.FailureReason,
		OccurredAt:     txn.LastChecked.UTC(),
	}
	if txn.Service != nil {
		event.ServiceID = txn.Service.ID
	}
	return event
}

type OutcomeProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewOutcomeProducer creates the outcome producer and ensures its topic exists
func NewOutcomeProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*OutcomeProducer, error) {
	if cfg.OutcomeTopic == "" {
		return nil, fmt.Errorf("kafka outcome topic is not configured")
	}

	if err := ensureTopic(ctx, cfg.Brokers, cfg.OutcomeTopic, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure outcome topic %s exists: %w", cfg.OutcomeTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.OutcomeTopic,
		Balancer:     &kafka.Hash{}, // Keeps every event of one transaction on one partition
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.WriteTimeout,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write outcome events asynchronously", "topic", cfg.OutcomeTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Wrote outcome events asynchronously", "topic", cfg.OutcomeTopic, "count", len(messages))
			}
		},
	}

	return &OutcomeProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.OutcomeTopic,
	}, nil
}

func (p *OutcomeProducer) PublishOutcome(ctx context.Context, event OutcomeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish outcome event",
			"topic", p.topic,
			"transaction_id", event.TransactionID,
			"error", err,
		)
		return fmt.Errorf("failed to publish outcome event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published outcome event",
		"topic", p.topic,
		"transaction_id", event.TransactionID,
		"status", event.Status,
	)
	return nil
}

func (p *OutcomeProducer) Close() error {
	p.logger.Info("Closing outcome Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close outcome kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
