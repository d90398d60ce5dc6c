package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaluna/storefront/internal/domain/product"
)

type mockProductRepo struct {
	products map[string]product.Product
}

func (m *mockProductRepo) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) Create(_ context.Context, p *product.Product) error {
	m.products[p.ID] = *p
	return nil
}

func (m *mockProductRepo) Update(_ context.Context, p *product.Product) error {
	m.products[p.ID] = *p
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id string) error {
	delete(m.products, id)
	return nil
}

// memStore is a minimal in-memory cart.Store for service tests.
type memStore struct {
	carts map[string]Cart
}

func newMemStore() *memStore {
	return &memStore{carts: make(map[string]Cart)}
}

func (s *memStore) Get(_ context.Context, sessionID string) (Cart, error) {
	return s.carts[sessionID].Clone(), nil
}

func (s *memStore) Replace(_ context.Context, sessionID string, c Cart) error {
	s.carts[sessionID] = c.Clone()
	return nil
}

func (s *memStore) Clear(_ context.Context, sessionID string) error {
	delete(s.carts, sessionID)
	return nil
}

func newTestService() (*Service, *mockProductRepo, *memStore) {
	repo := &mockProductRepo{products: map[string]product.Product{
		"tee": {ID: "tee", Name: "Classic Tee", Price: decimal.RequireFromString("19.90"), Photo: "tee.jpg"},
		"cap": {ID: "cap", Name: "Logo Cap", Price: decimal.RequireFromString("14.00")},
	}}
	store := newMemStore()
	return NewService(repo, store), repo, store
}

func TestServiceAdd(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestService()

	li, err := svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)
	assert.Equal(t, 1, li.Quantity)
	assert.True(t, li.UnitPrice.Equal(decimal.RequireFromString("19.90")))

	// Same product and variant accumulates quantity.
	li, err = svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)
	assert.Equal(t, 2, li.Quantity)

	// A different variant is a separate line.
	_, err = svc.Add(ctx, "s1", "tee", "L")
	require.NoError(t, err)
	assert.Len(t, store.carts["s1"], 2)

	// A catalog price change does not touch the stored snapshot.
	p := repo.products["tee"]
	p.Price = decimal.RequireFromString("25.00")
	repo.products["tee"] = p

	li, err = svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)
	assert.Equal(t, 3, li.Quantity)
	assert.True(t, li.UnitPrice.Equal(decimal.RequireFromString("19.90")),
		"existing line keeps the price snapshotted on first add")

	// A brand new line snapshots the current price.
	li, err = svc.Add(ctx, "s2", "tee", "M")
	require.NoError(t, err)
	assert.True(t, li.UnitPrice.Equal(decimal.RequireFromString("25.00")))
}

func TestServiceAddErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Add(ctx, "s1", "tee", "")
	assert.ErrorIs(t, err, ErrVariantRequired)

	_, err = svc.Add(ctx, "s1", "ghost", "M")
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService()

	_, err := svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)
	key := Key("tee", "M")

	require.NoError(t, svc.Update(ctx, "s1", key, ActionIncrease))
	assert.Equal(t, 2, store.carts["s1"][key].Quantity)

	require.NoError(t, svc.Update(ctx, "s1", key, ActionDecrease))
	assert.Equal(t, 1, store.carts["s1"][key].Quantity)

	// Decreasing at quantity one is a no-op, never a removal.
	require.NoError(t, svc.Update(ctx, "s1", key, ActionDecrease))
	assert.Equal(t, 1, store.carts["s1"][key].Quantity)

	assert.ErrorIs(t, svc.Update(ctx, "s1", "ghost:M", ActionIncrease), ErrItemNotFound)
	assert.ErrorIs(t, svc.Update(ctx, "s1", key, UpdateAction("double")), ErrUnknownAction)
}

func TestServiceRemove(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService()

	_, err := svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "s1", Key("tee", "M")))
	assert.Empty(t, store.carts["s1"])

	assert.ErrorIs(t, svc.Remove(ctx, "s1", Key("tee", "M")), ErrItemNotFound)
}

func TestServiceClear(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService()

	_, err := svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "s1", "cap", "OS")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "s1"))
	assert.Empty(t, store.carts["s1"])

	// Clearing an already empty cart succeeds.
	require.NoError(t, svc.Clear(ctx, "s1"))
}

func TestServiceView(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	_, err := svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "s1", "tee", "M")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "s1", "cap", "OS")
	require.NoError(t, err)

	v, err := svc.View(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, v.Items, 2)

	// Items come back ordered by key.
	assert.Equal(t, Key("cap", "OS"), v.Items[0].Key)
	assert.Equal(t, Key("tee", "M"), v.Items[1].Key)

	assert.True(t, v.Items[1].Subtotal.Equal(decimal.RequireFromString("39.80")))
	assert.True(t, v.Total.Equal(decimal.RequireFromString("53.80")))

	// The cap has no photo; the tee resolves its catalog photo.
	assert.Equal(t, placeholderImage, v.Items[0].Image)
	assert.Equal(t, "tee.jpg", v.Items[1].Image)

	// Deleting a product from the catalog degrades its image to the
	// placeholder but keeps the line intact.
	require.NoError(t, repo.Delete(ctx, "tee"))

	v, err = svc.View(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, v.Items, 2)
	assert.Equal(t, placeholderImage, v.Items[1].Image)
	assert.True(t, v.Total.Equal(decimal.RequireFromString("53.80")),
		"total still uses price snapshots")
}

func TestServiceViewEmpty(t *testing.T) {
	svc, _, _ := newTestService()

	v, err := svc.View(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, v.Items)
	assert.True(t, v.Total.IsZero())
}

type failingStore struct {
	memStore
	err error
}

func (s *failingStore) Replace(context.Context, string, Cart) error {
	return s.err
}

func TestServiceAddStoreFailure(t *testing.T) {
	repo := &mockProductRepo{products: map[string]product.Product{
		"tee": {ID: "tee", Name: "Classic Tee", Price: decimal.RequireFromString("19.90")},
	}}
	store := &failingStore{memStore: *newMemStore(), err: errors.New("backend down")}
	svc := NewService(repo, store)

	_, err := svc.Add(context.Background(), "s1", "tee", "M")
	assert.Error(t, err)
}
