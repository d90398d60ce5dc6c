// Package redis provides the TTL-bounded redis backend for the cart holding
// store.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/modaluna/storefront/internal/domain/cart"
)

var _ cart.HoldingStore = (*Holding)(nil)

// Holding stores one saved cart per identity under a TTL. The TTL is
// jittered by up to five minutes so entries written in a burst do not all
// expire at once.
type Holding struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewHolding creates a redis-backed holding store.
func NewHolding(client *redis.Client, ttl time.Duration) *Holding {
	return &Holding{client: client, baseTTL: ttl}
}

// Put stores the identity's saved cart with a jittered TTL.
func (h *Holding) Put(ctx context.Context, identity string, c cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := h.client.Set(ctx, holdingKey(identity), data, h.baseTTL+jitter).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Get returns the identity's saved cart, if present and not expired.
func (h *Holding) Get(ctx context.Context, identity string) (cart.Cart, bool, error) {
	data, err := h.client.Get(ctx, holdingKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal cart")
	}
	return c, true, nil
}

func holdingKey(identity string) string {
	return "saved-cart:" + identity
}
