package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/segmentio/kafka-go"
)

// Pricing event types published for reporting consumers
const (
	EventPriceCommitted   = "pricing.price_committed"
	EventBargainAccepted  = "pricing.bargain_accepted"
	EventNeverLossClamped = "pricing.never_loss_clamped"
	EventBargainAbandoned = "pricing.bargain_abandoned"
)

// PricingEvent is the message written to the reporting topic.
// Committed prices carry Audit; session events without a price carry Bargain.
type PricingEvent struct {
	Type       string               `json:"type"`
	OccurredAt time.Time            `json:"occurred_at"`
	Audit      *models.PricingAudit `json:"audit,omitempty"`
	Bargain    *BargainEvent        `json:"bargain,omitempty"`
}

// BargainEvent describes a negotiation that ended without a booking
type BargainEvent struct {
	SessionID  string `json:"session_id"`
	LineItemID string `json:"line_item_id"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Attempts   int    `json:"attempts"`
}

// EventPublisher emits pricing events for downstream reporting
type EventPublisher interface {
	Publish(ctx context.Context, event PricingEvent) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes pricing events to Kafka keyed by session so one
// session's events stay ordered within a partition
type KafkaEventPublisher struct {
	writer MessageWriter
}

// NewKafkaWriter builds the writer for the reporting topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
}

func NewKafkaEventPublisher(writer MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event PricingEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode pricing event: %w", err)
	}

	var key []byte
	switch {
	case event.Audit != nil:
		key = []byte(event.Audit.SessionID)
	case event.Bargain != nil:
		key = []byte(event.Bargain.SessionID)
	}
	msg := kafka.Message{
		Key:   key,
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish pricing event: %w", err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher drops events when Kafka is disabled
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, PricingEvent) error { return nil }

func (NoopEventPublisher) Close() error { return nil }
