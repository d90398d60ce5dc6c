package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItem is one (product, variant) entry in a cart. UnitPrice is
// snapshotted from the product at add time and never refreshed afterwards;
// later catalog price changes do not affect items already in a cart.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Variant   string          `json:"variant"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Key returns the composite key identifying this line item within a cart.
func (li LineItem) Key() string {
	return Key(li.ProductID, li.Variant)
}

// Subtotal returns UnitPrice multiplied by Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Key derives the composite cart key for a product and variant.
func Key(productID, variant string) string {
	return productID + ":" + variant
}

// Cart maps composite line keys to line items. It is a plain value type so it
// can live in any session backend; the zero value of a nil map is treated as
// an empty cart by callers.
type Cart map[string]LineItem

// Clone returns a deep copy. Mutating the copy never affects the original.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Total sums the subtotals of all line items.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c {
		total = total.Add(li.Subtotal())
	}
	return total
}

// Store holds the current cart for a session. Get returns an empty cart when
// none exists. Replace overwrites without validation; validation is the
// caller's job.
type Store interface {
	Get(ctx context.Context, sessionID string) (Cart, error)
	Replace(ctx context.Context, sessionID string, c Cart) error
	Clear(ctx context.Context, sessionID string) error
}

// HoldingStore keeps a per-identity cart snapshot across login/logout.
// Logout puts the session cart under the identity; the next login takes it
// back. Entries are best-effort continuity, not a durability guarantee:
// backends may bound them with a TTL.
type HoldingStore interface {
	Put(ctx context.Context, identity string, c Cart) error
	Get(ctx context.Context, identity string) (Cart, bool, error)
}
