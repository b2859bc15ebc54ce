package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	TypeOrderCompleted     = "order_completed"
	TypeSubscriptionSynced = "subscription_synced"
)

// BillingEvent is the message published after the local ledger changes.
type BillingEvent struct {
	ID                string            `json:"id"`
	Type              string            `json:"type"`
	CustomerID        string            `json:"customer_id"`
	CheckoutSessionID string            `json:"checkout_session_id,omitempty"`
	InvoiceID         string            `json:"invoice_id,omitempty"`
	AmountTotal       int64             `json:"amount_total,omitempty"`
	Currency          string            `json:"currency,omitempty"`
	Status            string            `json:"status,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	OccurredAt        time.Time         `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event BillingEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger logrus.FieldLogger
}

func NewKafkaPublisher(brokers []string, topic string, logger logrus.FieldLogger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.ReferenceHash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisher(w, logger)
}

func newKafkaPublisher(w messageWriter, logger logrus.FieldLogger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

// Publish keys messages by customer id so events of one customer keep their order.
func (p *KafkaPublisher) Publish(ctx context.Context, event BillingEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal billing event")
	}

	msg := kafka.Message{
		Key:   []byte(event.CustomerID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s event", event.Type)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"event_type":  event.Type,
		"customer_id": event.CustomerID,
	}).Debug("Billing event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BillingEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
