package cart

import (
	"context"
	"sync"
	"time"
)

type holdEntry struct {
	cart    Cart
	savedAt time.Time
}

// MemoryHolding is an in-process HoldingStore bounded by a TTL. It replaces
// the unbounded global map this service descends from: access is guarded by
// a mutex and stale entries are evicted by StartSweep.
type MemoryHolding struct {
	mu      sync.RWMutex
	entries map[string]holdEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryHolding creates a MemoryHolding. A non-positive ttl disables
// expiry.
func NewMemoryHolding(ttl time.Duration) *MemoryHolding {
	return &MemoryHolding{
		entries: make(map[string]holdEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

var _ HoldingStore = (*MemoryHolding)(nil)

// Put stores a snapshot of c under identity.
func (h *MemoryHolding) Put(_ context.Context, identity string, c Cart) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[identity] = holdEntry{cart: c.Clone(), savedAt: h.now()}
	return nil
}

// Get returns the held cart for identity, if present and not expired.
func (h *MemoryHolding) Get(_ context.Context, identity string) (Cart, bool, error) {
	h.mu.RLock()
	e, ok := h.entries[identity]
	h.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if h.expired(e) {
		h.mu.Lock()
		delete(h.entries, identity)
		h.mu.Unlock()
		return nil, false, nil
	}
	return e.cart.Clone(), true, nil
}

func (h *MemoryHolding) expired(e holdEntry) bool {
	return h.ttl > 0 && h.now().Sub(e.savedAt) >= h.ttl
}

// StartSweep launches a background goroutine that evicts expired entries
// every interval. It stops when ctx is cancelled.
func (h *MemoryHolding) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.sweep()
			}
		}
	}()
}

func (h *MemoryHolding) sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for identity, e := range h.entries {
		if h.expired(e) {
			delete(h.entries, identity)
		}
	}
}
