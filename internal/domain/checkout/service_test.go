package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/modaluna/storefront/internal/domain/cart"
)

type memCartStore struct {
	carts map[string]cart.Cart
}

func (s *memCartStore) Get(_ context.Context, sessionID string) (cart.Cart, error) {
	return s.carts[sessionID].Clone(), nil
}

func (s *memCartStore) Replace(_ context.Context, sessionID string, c cart.Cart) error {
	s.carts[sessionID] = c.Clone()
	return nil
}

func (s *memCartStore) Clear(_ context.Context, sessionID string) error {
	delete(s.carts, sessionID)
	return nil
}

type mockRepo struct {
	err       error
	invoice   *Invoice
	items     []InvoiceItem
	shipments []Shipment
}

func (m *mockRepo) CreateInvoice(_ context.Context, inv *Invoice, items []InvoiceItem, shipments []Shipment) error {
	if m.err != nil {
		return m.err
	}
	m.invoice = inv
	m.items = items
	m.shipments = shipments
	return nil
}

func (m *mockRepo) GetInvoice(context.Context, string) (*Invoice, []InvoiceItem, error) {
	return nil, nil, ErrInvoiceNotFound
}

func (m *mockRepo) ListInvoices(context.Context) ([]Invoice, error) { return nil, nil }

func (m *mockRepo) ListShipments(context.Context) ([]Shipment, error) { return nil, nil }

type mockPublisher struct {
	err    error
	events int
}

func (m *mockPublisher) InvoiceCreated(context.Context, *Invoice, []InvoiceItem) error {
	m.events++
	return m.err
}

func seededStore() *memCartStore {
	return &memCartStore{carts: map[string]cart.Cart{
		"s1": {
			"tee:M":  {ProductID: "tee", Variant: "M", Name: "Classic Tee", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
			"cap:OS": {ProductID: "cap", Variant: "OS", Name: "Logo Cap", UnitPrice: decimal.RequireFromString("5.50"), Quantity: 1},
		},
	}}
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	repo := &mockRepo{}
	pub := &mockPublisher{}
	svc := NewService(store, repo, pub, zaptest.NewLogger(t))

	inv, err := svc.Checkout(ctx, "s1", "alice", "  12 Main St  ")
	require.NoError(t, err)

	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "alice", inv.UserID)
	assert.Equal(t, "12 Main St", inv.ShippingAddress)
	assert.Equal(t, StatusPaid, inv.Status)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("25.50")))

	require.Len(t, repo.items, 2)
	for _, it := range repo.items {
		assert.Equal(t, inv.ID, it.InvoiceID)
		switch it.ProductID {
		case "tee":
			assert.Equal(t, 2, it.Quantity)
			assert.True(t, it.Subtotal.Equal(decimal.RequireFromString("20.00")))
		case "cap":
			assert.Equal(t, 1, it.Quantity)
			assert.True(t, it.Subtotal.Equal(decimal.RequireFromString("5.50")))
		default:
			t.Fatalf("unexpected item %q", it.ProductID)
		}
	}

	require.Len(t, repo.shipments, 2)
	for _, s := range repo.shipments {
		assert.Equal(t, "alice", s.UserID)
		assert.Equal(t, "12 Main St", s.Address)
		assert.Equal(t, ShipmentPreparing, s.Status)
	}

	assert.Equal(t, 1, pub.events)

	// The cart is cleared; a second checkout finds nothing to buy.
	_, err = svc.Checkout(ctx, "s1", "alice", "12 Main St")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutEmptyCart(t *testing.T) {
	store := &memCartStore{carts: map[string]cart.Cart{}}
	repo := &mockRepo{}
	svc := NewService(store, repo, &mockPublisher{}, zaptest.NewLogger(t))

	_, err := svc.Checkout(context.Background(), "nobody", "alice", "")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, repo.invoice, "nothing written for an empty cart")
}

func TestCheckoutPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	repo := &mockRepo{err: errors.New("db down")}
	pub := &mockPublisher{}
	svc := NewService(store, repo, pub, zaptest.NewLogger(t))

	_, err := svc.Checkout(ctx, "s1", "alice", "12 Main St")
	require.Error(t, err)

	// The cart survives so the user can retry.
	c, getErr := store.Get(ctx, "s1")
	require.NoError(t, getErr)
	assert.Len(t, c, 2)
	assert.Equal(t, 0, pub.events, "no event for a failed checkout")
}

func TestCheckoutPublisherFailureIsNonFatal(t *testing.T) {
	store := seededStore()
	repo := &mockRepo{}
	pub := &mockPublisher{err: errors.New("broker down")}
	svc := NewService(store, repo, pub, zaptest.NewLogger(t))

	inv, err := svc.Checkout(context.Background(), "s1", "alice", "")
	require.NoError(t, err)
	assert.NotNil(t, inv)
}
