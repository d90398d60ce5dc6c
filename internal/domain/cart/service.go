package cart

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/modaluna/storefront/internal/domain/product"
)

// UpdateAction enumerates the quantity adjustments supported by Update.
type UpdateAction string

const (
	ActionIncrease UpdateAction = "increase"
	ActionDecrease UpdateAction = "decrease"
)

// placeholderImage is served when a line item's product (or its photo) is
// gone from the catalog.
const placeholderImage = "no-image.png"

// Sentinel errors for cart operations.
var (
	ErrVariantRequired = errors.New("variant is required")
	ErrItemNotFound    = errors.New("item not in cart")
	ErrUnknownAction   = errors.New("unknown cart action")
)

// Service implements the cart operations against a Store, resolving products
// through the catalog repository.
type Service struct {
	products product.Repository
	carts    Store
}

// NewService creates a cart Service.
func NewService(products product.Repository, carts Store) *Service {
	return &Service{products: products, carts: carts}
}

// Add puts one unit of (productID, variant) into the session cart. An
// existing line item has its quantity incremented by one and keeps the unit
// price snapshotted on the first add; a new line item snapshots the product's
// current price. Returns the resulting line item.
func (s *Service) Add(ctx context.Context, sessionID, productID, variant string) (*LineItem, error) {
	if variant == "" {
		return nil, ErrVariantRequired
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	c = c.Clone()

	key := Key(productID, variant)
	li, ok := c[key]
	if ok {
		li.Quantity++
	} else {
		li = LineItem{
			ProductID: productID,
			Variant:   variant,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  1,
		}
	}
	c[key] = li

	if err := s.carts.Replace(ctx, sessionID, c); err != nil {
		return nil, errors.Wrap(err, "store cart")
	}
	return &li, nil
}

// Update adjusts the quantity of an existing line item. Increase adds one;
// decrease subtracts one but never below a quantity of one, removal is a
// separate explicit action. A missing key yields ErrItemNotFound.
func (s *Service) Update(ctx context.Context, sessionID, key string, action UpdateAction) error {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}

	li, ok := c[key]
	if !ok {
		return ErrItemNotFound
	}

	switch action {
	case ActionIncrease:
		li.Quantity++
	case ActionDecrease:
		if li.Quantity > 1 {
			li.Quantity--
		}
	default:
		return ErrUnknownAction
	}

	c = c.Clone()
	c[key] = li
	if err := s.carts.Replace(ctx, sessionID, c); err != nil {
		return errors.Wrap(err, "store cart")
	}
	return nil
}

// Remove deletes the line item under key. A missing key yields
// ErrItemNotFound so the caller can warn the user.
func (s *Service) Remove(ctx context.Context, sessionID, key string) error {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	if _, ok := c[key]; !ok {
		return ErrItemNotFound
	}

	c = c.Clone()
	delete(c, key)
	if err := s.carts.Replace(ctx, sessionID, c); err != nil {
		return errors.Wrap(err, "store cart")
	}
	return nil
}

// Clear empties the session cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// ViewItem is one rendered cart line: the snapshot price and quantity plus
// the resolved image and computed subtotal.
type ViewItem struct {
	Key       string
	ProductID string
	Name      string
	Variant   string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
	Image     string
}

// View is a read-only projection of a cart.
type View struct {
	Items []ViewItem
	Total decimal.Decimal
}

// View renders the session cart. Images are resolved against the current
// catalog with a placeholder fallback for deleted products; prices are the
// stored snapshots, never the product's current price. Items are ordered by
// key so the projection is stable.
func (s *Service) View(ctx context.Context, sessionID string) (*View, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := &View{
		Items: make([]ViewItem, 0, len(c)),
		Total: decimal.Zero,
	}
	for _, k := range keys {
		li := c[k]

		image := placeholderImage
		if p, err := s.products.GetByID(ctx, li.ProductID); err == nil && p.Photo != "" {
			image = p.Photo
		}

		subtotal := li.Subtotal()
		v.Items = append(v.Items, ViewItem{
			Key:       k,
			ProductID: li.ProductID,
			Name:      li.Name,
			Variant:   li.Variant,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
			Subtotal:  subtotal,
			Image:     image,
		})
		v.Total = v.Total.Add(subtotal)
	}
	return v, nil
}
