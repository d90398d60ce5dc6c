package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/modaluna/storefront/internal/domain/cart"
	"github.com/modaluna/storefront/internal/domain/checkout"
	"github.com/modaluna/storefront/internal/domain/product"
	"github.com/modaluna/storefront/internal/session"
	"github.com/modaluna/storefront/pkg/currency"
)

// addToCart puts one unit of the posted product/variant into the cart. The
// variant comes from the "talla" form field ("size" is accepted as an alias).
func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	info := session.FromContext(r.Context())

	variant := r.PostFormValue("talla")
	if variant == "" {
		variant = r.PostFormValue("size")
	}

	li, err := h.carts.Add(r.Context(), info.SessionID, productID, variant)
	switch {
	case errors.Is(err, cart.ErrVariantRequired):
		h.redirect(w, r, "/products/"+productID, session.FlashWarning, "please choose a size first")
	case errors.Is(err, product.ErrNotFound):
		h.redirect(w, r, "/products", session.FlashWarning, "that product is no longer available")
	case err != nil:
		h.serverError(w, r, "/products", err)
	default:
		h.redirect(w, r, "/cart", session.FlashSuccess, li.Name+" added to cart")
	}
}

// viewCart renders the session cart with per-line subtotals and the total.
func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())

	v, err := h.carts.View(r.Context(), info.SessionID)
	if err != nil {
		h.serverError(w, r, "/products", err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range v.Items {
		e.ObjStart()
		e.FieldStart("key")
		e.Str(it.Key)
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("variant")
		e.Str(it.Variant)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice.StringFixed(2))
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("subtotal")
		e.Str(it.Subtotal.StringFixed(2))
		e.FieldStart("subtotal_display")
		e.Str(currency.Format(it.Subtotal))
		e.FieldStart("image")
		e.Str(h.imageURL(it.Image))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Str(v.Total.StringFixed(2))
	e.FieldStart("total_display")
	e.Str(currency.Format(v.Total))
	encodeFlashes(&e, h.sessions.Flashes(info.SessionID))
	e.ObjEnd()

	writeJSON(w, http.StatusOK, &e)
}

// updateCart adjusts one line's quantity by the posted action.
func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())
	key := r.PostFormValue("key")
	action := cart.UpdateAction(r.PostFormValue("action"))

	err := h.carts.Update(r.Context(), info.SessionID, key, action)
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		h.redirect(w, r, "/cart", session.FlashWarning, "that item is not in your cart")
	case errors.Is(err, cart.ErrUnknownAction):
		h.redirect(w, r, "/cart", session.FlashWarning, "unknown cart action")
	case err != nil:
		h.serverError(w, r, "/cart", err)
	default:
		h.redirect(w, r, "/cart", "", "")
	}
}

// removeFromCart deletes the posted line from the cart.
func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())

	err := h.carts.Remove(r.Context(), info.SessionID, r.PostFormValue("key"))
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		h.redirect(w, r, "/cart", session.FlashWarning, "that item is not in your cart")
	case err != nil:
		h.serverError(w, r, "/cart", err)
	default:
		h.redirect(w, r, "/cart", session.FlashInfo, "item removed")
	}
}

// clearCart empties the cart. Clearing an already empty cart succeeds.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())
	if err := h.carts.Clear(r.Context(), info.SessionID); err != nil {
		h.serverError(w, r, "/cart", err)
		return
	}
	h.redirect(w, r, "/cart", session.FlashInfo, "cart cleared")
}

// checkoutCart converts the cart into an invoice and redirects to its
// receipt. The shipping address comes from the "direccion_envio" form field
// ("shipping_address" is accepted as an alias) and may be empty.
func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())

	address := r.PostFormValue("direccion_envio")
	if address == "" {
		address = r.PostFormValue("shipping_address")
	}

	inv, err := h.checkout.Checkout(r.Context(), info.SessionID, info.UserID, address)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		h.redirect(w, r, "/cart", session.FlashWarning, "your cart is empty")
	case err != nil:
		h.serverError(w, r, "/cart", err)
	default:
		h.redirect(w, r, "/invoices/"+inv.ID, session.FlashSuccess, "purchase complete")
	}
}
