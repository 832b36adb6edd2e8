package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ordbot/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated   = "order_created"
	EventPaymentClaimed = "payment_claimed"
	EventOrderPaid      = "order_paid"
	EventOrderRejected  = "order_rejected"
	EventOrderDispatch  = "order_dispatched"
)

// Event is the back-office record of one lifecycle transition. Rejection
// events carry the full item snapshot so a downstream consumer can restock.
type Event struct {
	Type        string             `json:"type"`
	OrderID     string             `json:"order_id"`
	CustomerID  int64              `json:"customer_id"`
	Status      domain.OrderStatus `json:"status"`
	TotalFiat   float64            `json:"total_fiat"`
	TotalCrypto float64            `json:"total_crypto"`
	Items       []domain.OrderItem `json:"items,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID), // order_id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
