// Package events publishes ledger notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types carried on PostedEvent.
const (
	TypeTransactionPosted   = "ledger.transaction.posted"
	TypeTransactionReversed = "ledger.transaction.reversed"
)

// PostedEvent is the payload emitted after a posting unit commits.
type PostedEvent struct {
	Type                string    `json:"type"`
	TenantID            uuid.UUID `json:"tenantId"`
	DocumentType        string    `json:"documentType"`
	DocumentID          uuid.UUID `json:"documentId"`
	LedgerTransactionID uuid.UUID `json:"ledgerTransactionId"`
	ActorID             string    `json:"actorId"`
	OccurredAt          time.Time `json:"occurredAt"`
}

// Publisher emits posted events.
type Publisher interface {
	Publish(ctx context.Context, event PostedEvent) error
	Close() error
}

// NewPublisher returns a Kafka publisher, or a no-op one when no brokers are configured.
func NewPublisher(brokers []string, topicByEvent map[string]string) Publisher {
	if len(brokers) == 0 {
		return Noop{}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topicByEvent: topicByEvent,
	}
}

// KafkaPublisher writes one message per event, keyed by tenant so a tenant's events stay ordered.
type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
}

// Publish encodes and writes the event.
func (p *KafkaPublisher) Publish(ctx context.Context, event PostedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", event.Type, err)
	}
	topic := event.Type
	if mapped, ok := p.topicByEvent[event.Type]; ok && mapped != "" {
		topic = mapped
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.TenantID.String()),
		Value: payload,
		Time:  event.OccurredAt,
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, PostedEvent) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }
