// Package events публикует доменные события заказов в Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
)

// Event — сообщение о заказе. Ключ сообщения в Kafka — номер заказа,
// поэтому события одного заказа попадают в одну партицию
type Event struct {
	ID                    string    `json:"event_id"`
	Type                  string    `json:"type"`
	OccurredAt            time.Time `json:"occurred_at"`
	OrderID               int64     `json:"order_id"`
	OrderNumber           string    `json:"order_number"`
	UserID                int64     `json:"user_id"`
	Status                string    `json:"status"`
	PaymentStatus         string    `json:"payment_status"`
	PreviousStatus        string    `json:"previous_status,omitempty"`
	PreviousPaymentStatus string    `json:"previous_payment_status,omitempty"`
	Total                 string    `json:"total"`
	InvoiceURL            string    `json:"invoice_url,omitempty"`
}

func newEvent(typ string, o *models.Order) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          typ,
		OccurredAt:    time.Now().UTC(),
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Total:         o.Total.StringFixed(2),
	}
}

func OrderPlaced(o *models.Order, invoiceURL string) Event {
	e := newEvent(TypeOrderPlaced, o)
	e.InvoiceURL = invoiceURL
	return e
}

func StatusChanged(o *models.Order, prevStatus models.OrderStatus, prevPayment models.PaymentStatus) Event {
	e := newEvent(TypeOrderStatusChanged, o)
	e.PreviousStatus = string(prevStatus)
	e.PreviousPaymentStatus = string(prevPayment)
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Client хранит список брокеров из строки вида "host1:9092,host2:9092"
type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewPublisher возвращает Kafka-публикатор, а без брокеров — заглушку
func NewPublisher(c *Client, topic string) Publisher {
	if !c.Enabled() {
		return NopPublisher{}
	}
	return NewKafkaPublisher(c.NewWriter(topic))
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.OrderNumber),
		Value: data,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher используется, когда Kafka не настроена
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
