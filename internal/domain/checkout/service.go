package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/modaluna/storefront/internal/domain/cart"
)

// Service converts a session cart into durable invoice, item and shipment
// records and clears the cart on success.
type Service struct {
	carts    cart.Store
	invoices Repository
	events   EventPublisher
	lg       *zap.Logger
}

// NewService creates a checkout Service.
func NewService(carts cart.Store, invoices Repository, events EventPublisher, lg *zap.Logger) *Service {
	return &Service{
		carts:    carts,
		invoices: invoices,
		events:   events,
		lg:       lg,
	}
}

// Checkout materializes the session cart owned by userID into one invoice,
// one invoice item per line and one shipment per line, then clears the cart.
//
// The total is computed fresh from the cart's price snapshots; current
// catalog prices and stock are deliberately not consulted. An empty cart is
// rejected with ErrEmptyCart before anything is written. On a persistence
// failure the cart is left untouched so the user can retry.
func (s *Service) Checkout(ctx context.Context, sessionID, userID, shippingAddress string) (*Invoice, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c) == 0 {
		return nil, ErrEmptyCart
	}

	total := c.Total().Round(2)

	inv := &Invoice{
		ID:              uuid.New().String(),
		UserID:          userID,
		ShippingAddress: strings.TrimSpace(shippingAddress),
		Status:          StatusPaid,
		Total:           total,
	}

	items := make([]InvoiceItem, 0, len(c))
	shipments := make([]Shipment, 0, len(c))
	for _, li := range c {
		items = append(items, InvoiceItem{
			ID:          uuid.New().String(),
			InvoiceID:   inv.ID,
			ProductID:   li.ProductID,
			ProductName: li.Name,
			Variant:     li.Variant,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Subtotal:    li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))),
		})
		shipments = append(shipments, Shipment{
			ID:          uuid.New().String(),
			ProductName: li.Name,
			Variant:     li.Variant,
			Address:     inv.ShippingAddress,
			UserID:      userID,
			Status:      ShipmentPreparing,
		})
	}

	if err := s.invoices.CreateInvoice(ctx, inv, items, shipments); err != nil {
		return nil, errors.Wrap(err, "create invoice")
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		// The invoice is already committed; a stale cart is recoverable by
		// the user, so log and return success.
		s.lg.Warn("clear cart after checkout",
			zap.String("invoice_id", inv.ID),
			zap.Error(err),
		)
	}

	if err := s.events.InvoiceCreated(ctx, inv, items); err != nil {
		s.lg.Warn("publish invoice created",
			zap.String("invoice_id", inv.ID),
			zap.Error(err),
		)
	}

	return inv, nil
}
