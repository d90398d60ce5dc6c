// Package session provides server-side sessions for the storefront: the
// browser holds a signed token, the process holds the session state (cart,
// identity, pending flash notices).
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/modaluna/storefront/internal/domain/cart"
)

// CookieName is the session cookie set on every response that creates or
// mutates a session.
const CookieName = "storefront_session"

// Flash is a one-shot user notice, consumed by the next view render.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Flash levels, mirroring the notice categories of the UI.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Info is the request-scoped session snapshot stored in the context.
type Info struct {
	SessionID string
	UserID    string
}

type ctxKey struct{}

// FromContext extracts the session info installed by Manager.Middleware.
func FromContext(ctx context.Context) Info {
	if info, ok := ctx.Value(ctxKey{}).(Info); ok {
		return info
	}
	return Info{}
}

type entry struct {
	userID    string
	cart      cart.Cart
	flashes   []Flash
	expiresAt time.Time
}

// claims binds the session ID and, after login, the user ID into the cookie
// token.
type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	UserID    string `json:"uid,omitempty"`
}

// Manager owns all live sessions. It implements cart.Store keyed by session
// ID, and moves carts through the per-identity holding store on login/logout.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	secret  []byte
	ttl     time.Duration
	holding cart.HoldingStore
	now     func() time.Time
}

var _ cart.Store = (*Manager)(nil)

// NewManager creates a session Manager. secret signs the cookie tokens, ttl
// bounds session (and token) lifetime, holding receives cart snapshots on
// logout.
func NewManager(secret []byte, ttl time.Duration, holding cart.HoldingStore) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		secret:  secret,
		ttl:     ttl,
		holding: holding,
		now:     time.Now,
	}
}

// Middleware resolves the request's session, creating one when the cookie is
// absent, expired or tampered with, and installs the session Info into the
// request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, fresh := m.resolve(r)
		if fresh {
			m.issue(w, info)
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve returns the session for the request's cookie, creating a new one
// when necessary. fresh reports whether a new cookie must be issued.
func (m *Manager) resolve(r *http.Request) (Info, bool) {
	if c, err := r.Cookie(CookieName); err == nil {
		if info, ok := m.verify(c.Value); ok {
			m.mu.Lock()
			e, live := m.entries[info.SessionID]
			if live && m.now().Before(e.expiresAt) {
				e.expiresAt = m.now().Add(m.ttl)
				info.UserID = e.userID
				m.mu.Unlock()
				return info, false
			}
			m.mu.Unlock()
		}
	}
	return m.create(), true
}

func (m *Manager) create() Info {
	id := uuid.New().String()
	m.mu.Lock()
	m.entries[id] = &entry{
		cart:      cart.Cart{},
		expiresAt: m.now().Add(m.ttl),
	}
	m.mu.Unlock()
	return Info{SessionID: id}
}

// verify parses and validates the signed cookie token.
func (m *Manager) verify(token string) (Info, bool) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid || cl.SessionID == "" {
		return Info{}, false
	}
	return Info{SessionID: cl.SessionID, UserID: cl.UserID}, true
}

// issue writes a fresh signed session cookie.
func (m *Manager) issue(w http.ResponseWriter, info Info) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		SessionID: info.SessionID,
		UserID:    info.UserID,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		// HMAC signing over in-memory data does not fail in practice.
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Login binds userID to the session and restores the identity's held cart:
// an existing holding entry replaces the session cart, otherwise an empty
// cart is registered in the holding store. A new cookie carrying the user ID
// is issued.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, sessionID, userID string) error {
	held, found, err := m.holding.Get(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "read holding store")
	}
	if !found {
		held = cart.Cart{}
		if err := m.holding.Put(ctx, userID, held); err != nil {
			return errors.Wrap(err, "register holding entry")
		}
	}

	m.mu.Lock()
	e, ok := m.entries[sessionID]
	if !ok {
		m.mu.Unlock()
		return errors.New("session not found")
	}
	e.userID = userID
	e.cart = held.Clone()
	m.mu.Unlock()

	m.issue(w, Info{SessionID: sessionID, UserID: userID})
	return nil
}

// Logout snapshots the session cart into the identity's holding slot, then
// clears the cart and detaches the identity from the session.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	m.mu.Lock()
	e, ok := m.entries[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	userID := e.userID
	snapshot := e.cart.Clone()
	e.userID = ""
	e.cart = cart.Cart{}
	m.mu.Unlock()

	if userID != "" {
		if err := m.holding.Put(ctx, userID, snapshot); err != nil {
			return errors.Wrap(err, "write holding store")
		}
	}

	m.issue(w, Info{SessionID: sessionID})
	return nil
}

// Get returns the session cart, or an empty cart when the session is gone.
func (m *Manager) Get(_ context.Context, sessionID string) (cart.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return cart.Cart{}, nil
	}
	return e.cart.Clone(), nil
}

// Replace overwrites the session cart.
func (m *Manager) Replace(_ context.Context, sessionID string, c cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	e.cart = c.Clone()
	return nil
}

// Clear empties the session cart.
func (m *Manager) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[sessionID]; ok {
		e.cart = cart.Cart{}
	}
	return nil
}

// Flash queues a one-shot notice on the session.
func (m *Manager) Flash(sessionID, level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[sessionID]; ok {
		e.flashes = append(e.flashes, Flash{Level: level, Message: message})
	}
}

// Flashes returns and clears the session's pending notices.
func (m *Manager) Flashes(sessionID string) []Flash {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok || len(e.flashes) == 0 {
		return nil
	}
	out := e.flashes
	e.flashes = nil
	return out
}

// StartSweep launches a background goroutine that drops expired sessions
// every interval. It stops when ctx is cancelled.
func (m *Manager) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
		}
	}
}
