package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the invoice lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// ShipmentPreparing is the initial status of a shipment record.
const ShipmentPreparing = "preparing"

// Sentinel errors for checkout operations.
var (
	// ErrEmptyCart is returned when checkout is attempted on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvoiceNotFound is returned when a requested invoice does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// Invoice is the billing record produced by a successful checkout. Total is
// fixed at creation and never recomputed.
type Invoice struct {
	ID              string
	UserID          string
	ShippingAddress string
	Status          Status
	Total           decimal.Decimal
	CreatedAt       time.Time
}

// InvoiceItem is one purchased line. ProductID may be empty once the product
// has been deleted from the catalog; ProductName and UnitPrice are snapshots.
// Subtotal equals UnitPrice times Quantity at creation time.
type InvoiceItem struct {
	ID          string
	InvoiceID   string
	ProductID   string
	ProductName string
	Variant     string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	CreatedAt   time.Time
}

// Shipment is the fulfilment-tracking record, kept separate from the invoice:
// checkout produces one per purchased line item.
type Shipment struct {
	ID          string
	ProductName string
	Variant     string
	Address     string
	UserID      string
	Status      string
	CreatedAt   time.Time
}

// Repository defines persistence for checkout records. CreateInvoice writes
// the invoice together with its items and shipments; whether that is a single
// transaction depends on the implementation's configuration.
type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice, items []InvoiceItem, shipments []Shipment) error
	GetInvoice(ctx context.Context, id string) (*Invoice, []InvoiceItem, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)
	ListShipments(ctx context.Context) ([]Shipment, error)
}

// EventPublisher notifies downstream consumers of a completed checkout.
// Publishing is best-effort: a failure must not undo the checkout.
type EventPublisher interface {
	InvoiceCreated(ctx context.Context, inv *Invoice, items []InvoiceItem) error
}
