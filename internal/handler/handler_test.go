package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/modaluna/storefront/internal/domain/cart"
	"github.com/modaluna/storefront/internal/domain/checkout"
	"github.com/modaluna/storefront/internal/domain/product"
	"github.com/modaluna/storefront/internal/domain/user"
	"github.com/modaluna/storefront/internal/events"
	"github.com/modaluna/storefront/internal/session"
)

type memProductRepo struct {
	products map[string]product.Product
}

func (m *memProductRepo) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProductRepo) Create(_ context.Context, p *product.Product) error {
	m.products[p.ID] = *p
	return nil
}

func (m *memProductRepo) Update(_ context.Context, p *product.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	m.products[p.ID] = *p
	return nil
}

func (m *memProductRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

type memUserRepo struct {
	users map[string]user.User
	roles map[int]string
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.RoleName = m.roles[u.RoleID]
	return &u, nil
}

func (m *memUserRepo) Create(_ context.Context, u *user.User) error {
	if _, ok := m.users[u.ID]; ok {
		return user.ErrDuplicateID
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memUserRepo) List(context.Context) ([]user.User, error) {
	out := make([]user.User, 0, len(m.users))
	for _, u := range m.users {
		u.RoleName = m.roles[u.RoleID]
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUserRepo) SetRole(_ context.Context, id string, roleID int) error {
	u, ok := m.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.RoleID = roleID
	m.users[id] = u
	return nil
}

type memRoleRepo struct {
	byName map[string]user.Role
	users  *memUserRepo
}

func (m *memRoleRepo) FindOrCreate(_ context.Context, name string) (*user.Role, error) {
	if r, ok := m.byName[name]; ok {
		return &r, nil
	}
	r := user.Role{ID: len(m.byName) + 1, Name: name}
	m.byName[name] = r
	m.users.roles[r.ID] = name
	return &r, nil
}

func (m *memRoleRepo) List(context.Context) ([]user.Role, error) {
	out := make([]user.Role, 0, len(m.byName))
	for _, r := range m.byName {
		out = append(out, r)
	}
	return out, nil
}

type memCheckoutRepo struct {
	invoices  map[string]checkout.Invoice
	items     map[string][]checkout.InvoiceItem
	shipments []checkout.Shipment
}

func (m *memCheckoutRepo) CreateInvoice(_ context.Context, inv *checkout.Invoice, items []checkout.InvoiceItem, shipments []checkout.Shipment) error {
	inv.CreatedAt = time.Now()
	m.invoices[inv.ID] = *inv
	m.items[inv.ID] = items
	m.shipments = append(m.shipments, shipments...)
	return nil
}

func (m *memCheckoutRepo) GetInvoice(_ context.Context, id string) (*checkout.Invoice, []checkout.InvoiceItem, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil, checkout.ErrInvoiceNotFound
	}
	return &inv, m.items[id], nil
}

func (m *memCheckoutRepo) ListInvoices(context.Context) ([]checkout.Invoice, error) {
	out := make([]checkout.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (m *memCheckoutRepo) ListShipments(context.Context) ([]checkout.Shipment, error) {
	return m.shipments, nil
}

type fixture struct {
	server   http.Handler
	sessions *session.Manager
	products *memProductRepo
	users    *memUserRepo
	invoices *memCheckoutRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &memProductRepo{products: map[string]product.Product{
		"tee": {ID: "tee", Name: "Classic Tee", Price: decimal.RequireFromString("19.90"), Available: true, Photo: "tee.jpg"},
		"cap": {ID: "cap", Name: "Logo Cap", Price: decimal.RequireFromString("14.00"), Available: true},
	}}
	users := &memUserRepo{users: map[string]user.User{}, roles: map[int]string{}}
	roles := &memRoleRepo{byName: map[string]user.Role{}, users: users}
	invoices := &memCheckoutRepo{
		invoices: map[string]checkout.Invoice{},
		items:    map[string][]checkout.InvoiceItem{},
	}

	sessions := session.NewManager([]byte("test-secret"), time.Hour, cart.NewMemoryHolding(time.Hour))
	cartSvc := cart.NewService(products, sessions)
	checkoutSvc := checkout.NewService(sessions, invoices, events.Noop{}, zaptest.NewLogger(t))

	h := New(Config{}, Deps{
		Sessions: sessions,
		Carts:    cartSvc,
		Checkout: checkoutSvc,
		Products: products,
		Users:    users,
		Roles:    roles,
		Invoices: invoices,
	})

	return &fixture{
		server:   sessions.Middleware(h.Routes()),
		sessions: sessions,
		products: products,
		users:    users,
		invoices: invoices,
	}
}

// do performs one request, carrying cookie when set, and returns the recorder
// plus the session cookie from the response (or the one passed in).
func (f *fixture) do(t *testing.T, method, path string, form url.Values, cookie *http.Cookie) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	// Login and logout reissue the cookie after the middleware's initial one;
	// the last Set-Cookie wins.
	out := cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			out = c
		}
	}
	return rec, out
}

// register creates an account through the HTTP surface and returns the
// logged-in session cookie.
func (f *fixture) register(t *testing.T, id string) *http.Cookie {
	t.Helper()

	rec, cookie := f.do(t, http.MethodPost, "/register", url.Values{
		"id":       {id},
		"name":     {"Test " + id},
		"email":    {id + "@example.com"},
		"password": {"hunter22"},
		"confirm":  {"hunter22"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/products", rec.Header().Get("Location"))
	require.NotNil(t, cookie)
	return cookie
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Classic Tee"`)

	rec, _ = f.do(t, http.MethodGet, "/products/tee", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":"19.90"`)

	rec, _ = f.do(t, http.MethodGet, "/products/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartRequiresLogin(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/cart", nil, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestAddToCartMissingVariant(t *testing.T) {
	f := newFixture(t)
	cookie := f.register(t, "alice")

	rec, _ := f.do(t, http.MethodPost, "/cart/add/tee", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/products/tee", rec.Header().Get("Location"))

	// The warning flash shows up on the next view.
	rec, _ = f.do(t, http.MethodGet, "/cart", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "please choose a size first")
}

func TestCartFlow(t *testing.T) {
	f := newFixture(t)
	cookie := f.register(t, "alice")

	rec, _ := f.do(t, http.MethodPost, "/cart/add/tee", url.Values{"talla": {"M"}}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/cart", rec.Header().Get("Location"))

	rec, _ = f.do(t, http.MethodPost, "/cart/add/tee", url.Values{"talla": {"M"}}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/cart", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"quantity":2`)
	assert.Contains(t, body, `"total":"39.80"`)
	assert.Contains(t, body, `"total_display":"$39.80"`)

	// Decrease, then remove.
	rec, _ = f.do(t, http.MethodPost, "/cart/update", url.Values{
		"key":    {"tee:M"},
		"action": {"decrease"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/cart", nil, cookie)
	assert.Contains(t, rec.Body.String(), `"quantity":1`)

	rec, _ = f.do(t, http.MethodPost, "/cart/remove", url.Values{"key": {"tee:M"}}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/cart", nil, cookie)
	assert.Contains(t, rec.Body.String(), `"total":"0.00"`)
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	cookie := f.register(t, "alice")

	// Empty cart bounces back.
	rec, _ := f.do(t, http.MethodPost, "/cart/checkout", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get("Location"))

	f.do(t, http.MethodPost, "/cart/add/tee", url.Values{"talla": {"M"}}, cookie)
	f.do(t, http.MethodPost, "/cart/add/cap", url.Values{"talla": {"OS"}}, cookie)

	rec, _ = f.do(t, http.MethodPost, "/cart/checkout", url.Values{
		"direccion_envio": {"12 Main St"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/invoices/"), "got %q", location)

	// The receipt is visible to its owner.
	rec, _ = f.do(t, http.MethodGet, location, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"status":"paid"`)
	assert.Contains(t, body, `"total":"33.90"`)
	assert.Contains(t, body, `"shipping_address":"12 Main St"`)

	// Another user gets a 403 for the same receipt.
	other := f.register(t, "bob")
	rec, _ = f.do(t, http.MethodGet, location, nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The cart is empty afterwards.
	rec, _ = f.do(t, http.MethodGet, "/cart", nil, cookie)
	assert.Contains(t, rec.Body.String(), `"total":"0.00"`)
}

func TestHoldingAcrossLogout(t *testing.T) {
	f := newFixture(t)
	cookie := f.register(t, "alice")

	f.do(t, http.MethodPost, "/cart/add/tee", url.Values{"talla": {"M"}}, cookie)

	rec, loggedOut := f.do(t, http.MethodGet, "/logout", nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec, loggedIn := f.do(t, http.MethodPost, "/login", url.Values{
		"id":       {"alice"},
		"password": {"hunter22"},
	}, loggedOut)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/products", rec.Header().Get("Location"))

	rec, _ = f.do(t, http.MethodGet, "/cart", nil, loggedIn)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"quantity":1`)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	rec, _ := f.do(t, http.MethodPost, "/login", url.Values{
		"id":       {"alice"},
		"password": {"wrong"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/register", url.Values{
		"id":       {"alice"},
		"name":     {"Alice"},
		"email":    {"alice@example.com"},
		"password": {"hunter22"},
		"confirm":  {"different"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/register", rec.Header().Get("Location"))

	f.register(t, "alice")

	rec, _ = f.do(t, http.MethodPost, "/register", url.Values{
		"id":       {"alice"},
		"name":     {"Alice Again"},
		"email":    {"alice2@example.com"},
		"password": {"hunter22"},
		"confirm":  {"hunter22"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/register", rec.Header().Get("Location"))
}

func TestAdminAccess(t *testing.T) {
	f := newFixture(t)
	cookie := f.register(t, "alice")

	rec, _ := f.do(t, http.MethodGet, "/admin/users", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Promote alice to admin directly in the store.
	u := f.users.users["alice"]
	u.RoleID = 99
	f.users.users["alice"] = u
	f.users.roles[99] = user.RoleAdmin

	rec, _ = f.do(t, http.MethodGet, "/admin/users", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alice@example.com"`)
}

func TestAdminProductCRUD(t *testing.T) {
	f := newFixture(t)
	cookie := f.register(t, "root")
	u := f.users.users["root"]
	u.RoleID = 99
	f.users.users["root"] = u
	f.users.roles[99] = user.RoleAdmin

	rec, _ := f.do(t, http.MethodPost, "/admin/products", url.Values{
		"id":    {"scarf"},
		"name":  {"Wool Scarf"},
		"price": {"24.90"},
		"stock": {"10"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, f.products.products, "scarf")
	assert.True(t, f.products.products["scarf"].Price.Equal(decimal.RequireFromString("24.90")))

	// A malformed price is coerced to zero rather than rejected.
	rec, _ = f.do(t, http.MethodPost, "/admin/products/scarf", url.Values{
		"name":  {"Wool Scarf"},
		"price": {"not-a-number"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, f.products.products["scarf"].Price.IsZero())

	rec, _ = f.do(t, http.MethodPost, "/admin/products/scarf/delete", nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, f.products.products, "scarf")
}
