// Package events publishes storefront domain events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/modaluna/storefront/internal/domain/checkout"
)

// InvoiceCreatedQueue receives one message per successful checkout.
const InvoiceCreatedQueue = "invoice.created"

// invoiceCreated is the wire envelope for a completed checkout.
type invoiceCreated struct {
	EventType string             `json:"event_type"`
	InvoiceID string             `json:"invoice_id"`
	UserID    string             `json:"user_id"`
	Total     string             `json:"total"`
	Items     []invoiceItemEvent `json:"items"`
	Timestamp time.Time          `json:"timestamp"`
}

type invoiceItemEvent struct {
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	Variant     string `json:"variant"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

var (
	_ checkout.EventPublisher = (*Publisher)(nil)
	_ checkout.EventPublisher = Noop{}
)

// Publisher publishes invoice events over an AMQP channel.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher opens a channel on conn and declares the invoice queue so
// publishing never fails on missing infrastructure.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}

	if _, err := ch.QueueDeclare(InvoiceCreatedQueue, true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declare %s", InvoiceCreatedQueue)
	}
	return &Publisher{ch: ch}, nil
}

// Close releases the underlying channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

// InvoiceCreated publishes a persistent invoice.created message.
func (p *Publisher) InvoiceCreated(ctx context.Context, inv *checkout.Invoice, items []checkout.InvoiceItem) error {
	ev := invoiceCreated{
		EventType: "InvoiceCreated",
		InvoiceID: inv.ID,
		UserID:    inv.UserID,
		Total:     inv.Total.StringFixed(2),
		Timestamp: time.Now().UTC(),
	}
	for _, it := range items {
		ev.Items = append(ev.Items, invoiceItemEvent{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Variant:     it.Variant,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.StringFixed(2),
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal invoice created")
	}

	err = p.ch.PublishWithContext(ctx, "", InvoiceCreatedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, "publish invoice created")
	}
	return nil
}

// Noop discards events; used when no AMQP broker is configured.
type Noop struct{}

// InvoiceCreated does nothing.
func (Noop) InvoiceCreated(context.Context, *checkout.Invoice, []checkout.InvoiceItem) error {
	return nil
}
