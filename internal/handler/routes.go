package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modaluna/storefront/internal/session"
)

// Routes builds the storefront router. The session middleware is applied by
// the server around the whole mux, so every handler can assume a session.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Public catalog and auth.
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Get("/logout", h.logout)

	// Cart, checkout and receipts require a logged-in session.
	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Get("/cart", h.viewCart)
		r.Post("/cart/add/{productID}", h.addToCart)
		r.Post("/cart/update", h.updateCart)
		r.Post("/cart/remove", h.removeFromCart)
		r.Get("/cart/clear", h.clearCart)
		r.Post("/cart/checkout", h.checkoutCart)
		r.Get("/invoices/{invoiceID}", h.getInvoice)
	})

	// Back office.
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/products", h.adminListProducts)
		r.Post("/products", h.adminCreateProduct)
		r.Post("/products/{productID}", h.adminUpdateProduct)
		r.Post("/products/{productID}/delete", h.adminDeleteProduct)
		r.Get("/users", h.adminListUsers)
		r.Post("/users/{userID}/role", h.adminSetUserRole)
		r.Post("/users/{userID}/delete", h.adminDeleteUser)
		r.Get("/roles", h.adminListRoles)
		r.Post("/roles", h.adminCreateRole)
		r.Get("/orders", h.adminListShipments)
		r.Get("/invoices", h.adminListInvoices)
	})

	return r
}

// requireUser redirects anonymous sessions to the login flow.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := session.FromContext(r.Context())
		if info.UserID == "" {
			h.redirect(w, r, "/login", session.FlashWarning, "please log in first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin loads the session user and rejects non-admins.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := session.FromContext(r.Context())
		if info.UserID == "" {
			h.redirect(w, r, "/login", session.FlashWarning, "please log in first")
			return
		}
		u, err := h.users.GetByID(r.Context(), info.UserID)
		if err != nil || !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
