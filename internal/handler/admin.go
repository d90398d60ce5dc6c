package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/modaluna/storefront/internal/domain/product"
	"github.com/modaluna/storefront/internal/domain/user"
	"github.com/modaluna/storefront/internal/session"
)

// parsePrice reads the posted price, falling back to zero on malformed input
// so a typo never blocks a catalog save.
func parsePrice(r *http.Request) decimal.Decimal {
	raw := strings.TrimSpace(r.PostFormValue("price"))
	price, err := decimal.NewFromString(raw)
	if err != nil {
		zctx.From(r.Context()).Warn("malformed price, storing zero", zap.String("price", raw))
		return decimal.Zero
	}
	return price
}

func productFromForm(r *http.Request) *product.Product {
	stock, _ := strconv.Atoi(r.PostFormValue("stock"))
	available := r.PostFormValue("available")
	return &product.Product{
		ID:          strings.TrimSpace(r.PostFormValue("id")),
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: r.PostFormValue("description"),
		Category:    r.PostFormValue("category"),
		Sizes:       r.PostFormValue("sizes"),
		Color:       r.PostFormValue("color"),
		Price:       parsePrice(r),
		Available:   available == "on" || available == "true",
		Stock:       stock,
		Photo:       r.PostFormValue("photo"),
	}
}

// adminListProducts renders the full catalog, including unavailable items.
func (h *Handler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r)
}

func (h *Handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	p := productFromForm(r)
	if p.Name == "" {
		h.redirect(w, r, "/admin/products", session.FlashWarning, "product name is required")
		return
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	if err := h.products.Create(r.Context(), p); err != nil {
		h.serverError(w, r, "/admin/products", err)
		return
	}
	h.redirect(w, r, "/admin/products", session.FlashSuccess, p.Name+" created")
}

func (h *Handler) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	p := productFromForm(r)
	p.ID = chi.URLParam(r, "productID")

	err := h.products.Update(r.Context(), p)
	switch {
	case errors.Is(err, product.ErrNotFound):
		h.redirect(w, r, "/admin/products", session.FlashWarning, "product not found")
	case err != nil:
		h.serverError(w, r, "/admin/products", err)
	default:
		h.redirect(w, r, "/admin/products", session.FlashSuccess, p.Name+" updated")
	}
}

func (h *Handler) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.products.Delete(r.Context(), chi.URLParam(r, "productID"))
	switch {
	case errors.Is(err, product.ErrNotFound):
		h.redirect(w, r, "/admin/products", session.FlashWarning, "product not found")
	case err != nil:
		h.serverError(w, r, "/admin/products", err)
	default:
		h.redirect(w, r, "/admin/products", session.FlashInfo, "product deleted")
	}
}

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load users")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("users")
	e.ArrStart()
	for _, u := range users {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(u.ID)
		e.FieldStart("name")
		e.Str(u.Name)
		e.FieldStart("email")
		e.Str(u.Email)
		e.FieldStart("address")
		e.Str(u.Address)
		e.FieldStart("role")
		e.Str(u.RoleName)
		e.FieldStart("created_at")
		e.Str(u.CreatedAt.Format(time.RFC3339))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	writeJSON(w, http.StatusOK, &e)
}

// adminSetUserRole assigns the posted role, creating it on first use.
func (h *Handler) adminSetUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	roleName := strings.TrimSpace(r.PostFormValue("role"))
	if roleName == "" {
		h.redirect(w, r, "/admin/users", session.FlashWarning, "role name is required")
		return
	}

	role, err := h.roles.FindOrCreate(r.Context(), roleName)
	if err != nil {
		h.serverError(w, r, "/admin/users", err)
		return
	}

	err = h.users.SetRole(r.Context(), userID, role.ID)
	switch {
	case errors.Is(err, user.ErrNotFound):
		h.redirect(w, r, "/admin/users", session.FlashWarning, "user not found")
	case err != nil:
		h.serverError(w, r, "/admin/users", err)
	default:
		h.redirect(w, r, "/admin/users", session.FlashSuccess, "role updated")
	}
}

func (h *Handler) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == session.FromContext(r.Context()).UserID {
		h.redirect(w, r, "/admin/users", session.FlashWarning, "you cannot delete your own account")
		return
	}

	err := h.users.Delete(r.Context(), userID)
	switch {
	case errors.Is(err, user.ErrNotFound):
		h.redirect(w, r, "/admin/users", session.FlashWarning, "user not found")
	case err != nil:
		h.serverError(w, r, "/admin/users", err)
	default:
		h.redirect(w, r, "/admin/users", session.FlashInfo, "user deleted")
	}
}

func (h *Handler) adminListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load roles")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("roles")
	e.ArrStart()
	for _, role := range roles {
		e.ObjStart()
		e.FieldStart("id")
		e.Int(role.ID)
		e.FieldStart("name")
		e.Str(role.Name)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) adminCreateRole(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		h.redirect(w, r, "/admin/roles", session.FlashWarning, "role name is required")
		return
	}
	if _, err := h.roles.FindOrCreate(r.Context(), name); err != nil {
		h.serverError(w, r, "/admin/roles", err)
		return
	}
	h.redirect(w, r, "/admin/roles", session.FlashSuccess, "role "+name+" ready")
}

// adminListShipments renders all fulfilment records, newest first.
func (h *Handler) adminListShipments(w http.ResponseWriter, r *http.Request) {
	shipments, err := h.invoices.ListShipments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load shipments")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("shipments")
	e.ArrStart()
	for _, s := range shipments {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(s.ID)
		e.FieldStart("product_name")
		e.Str(s.ProductName)
		e.FieldStart("variant")
		e.Str(s.Variant)
		e.FieldStart("address")
		e.Str(s.Address)
		e.FieldStart("user_id")
		e.Str(s.UserID)
		e.FieldStart("status")
		e.Str(s.Status)
		e.FieldStart("created_at")
		e.Str(s.CreatedAt.Format(time.RFC3339))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	writeJSON(w, http.StatusOK, &e)
}

// adminListInvoices renders all invoices without their line items.
func (h *Handler) adminListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.ListInvoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load invoices")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("invoices")
	e.ArrStart()
	for i := range invoices {
		encodeInvoice(&e, &invoices[i], nil)
	}
	e.ArrEnd()
	e.ObjEnd()

	writeJSON(w, http.StatusOK, &e)
}
