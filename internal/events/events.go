// Package events publishes order lifecycle events to Kafka. Consumers
// (inventory, reporting) read them from a single topic keyed by order number.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"restoran-pos/internal/models"
)

const (
	OrderCreated   = "OrderCreated"
	OrderCompleted = "OrderCompleted"
	OrderCancelled = "OrderCancelled"
	OrderRefunded  = "OrderRefunded"
	PaymentAdded   = "PaymentAdded"
)

type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID            uint                 `json:"id"`
	OrderNumber   string               `json:"order_number"`
	TenantID      uint                 `json:"tenant_id"`
	BranchID      uint                 `json:"branch_id"`
	TerminalID    *uint                `json:"terminal_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Total         decimal.Decimal      `json:"total"`
	Items         []OrderItemPayload   `json:"items"`
	Payment       *PaymentPayload      `json:"payment,omitempty"`
}

type OrderItemPayload struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type PaymentPayload struct {
	Method models.PaymentMethod `json:"method"`
	Amount decimal.Decimal      `json:"amount"`
}

// NewOrderEvent snapshots o into an event. payment is set for PaymentAdded.
func NewOrderEvent(eventType string, o models.Order, payment *models.Payment, now time.Time) OrderEvent {
	items := make([]OrderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemPayload{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	ev := OrderEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: now.UTC(),
		Payload: OrderPayload{
			ID:            o.ID,
			OrderNumber:   o.OrderNumber,
			TenantID:      o.TenantID,
			BranchID:      o.BranchID,
			TerminalID:    o.TerminalID,
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
			Total:         o.Total,
			Items:         items,
		},
	}
	if payment != nil {
		ev.Payload.Payment = &PaymentPayload{Method: payment.Method, Amount: payment.Amount}
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		log: log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}
	p.log.Debug("event published",
		zap.String("event_type", ev.EventType),
		zap.String("order_number", ev.Payload.OrderNumber),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message encodes ev as a Kafka message keyed by order number, so events of
// one order land on one partition in order.
func Message(ev OrderEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", ev.EventType, err)
	}
	return kafka.Message{
		Key:   []byte(ev.Payload.OrderNumber),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}, nil
}
