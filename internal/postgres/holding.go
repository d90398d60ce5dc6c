package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modaluna/storefront/internal/domain/cart"
)

const (
	upsertSavedCartSQL = `INSERT INTO saved_carts (user_id, cart, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET cart = EXCLUDED.cart, updated_at = now()`

	getSavedCartSQL = `SELECT cart FROM saved_carts WHERE user_id = $1`
)

var _ cart.HoldingStore = (*HoldingRepository)(nil)

// HoldingRepository is the durable holding backend: one saved-cart row per
// identity, surviving restarts and shared across instances. Concurrent
// logins race on the row rather than on process memory; last write wins.
type HoldingRepository struct {
	pool *pgxpool.Pool
}

// NewHoldingRepository returns a HoldingRepository that uses the given pool.
func NewHoldingRepository(pool *pgxpool.Pool) *HoldingRepository {
	return &HoldingRepository{pool: pool}
}

// Put upserts the identity's saved cart.
func (r *HoldingRepository) Put(ctx context.Context, identity string, c cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	if _, err := r.pool.Exec(ctx, upsertSavedCartSQL, identity, data); err != nil {
		return errors.Wrapf(err, "save cart for %q", identity)
	}
	return nil
}

// Get returns the identity's saved cart, if any.
func (r *HoldingRepository) Get(ctx context.Context, identity string) (cart.Cart, bool, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, getSavedCartSQL, identity).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "load cart for %q", identity)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal cart")
	}
	return c, true, nil
}
