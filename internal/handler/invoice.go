package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/modaluna/storefront/internal/domain/checkout"
	"github.com/modaluna/storefront/internal/session"
	"github.com/modaluna/storefront/pkg/currency"
)

func encodeInvoice(e *jx.Encoder, inv *checkout.Invoice, items []checkout.InvoiceItem) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(inv.ID)
	e.FieldStart("user_id")
	e.Str(inv.UserID)
	e.FieldStart("shipping_address")
	e.Str(inv.ShippingAddress)
	e.FieldStart("status")
	e.Str(string(inv.Status))
	e.FieldStart("total")
	e.Str(inv.Total.StringFixed(2))
	e.FieldStart("total_display")
	e.Str(currency.Format(inv.Total))
	e.FieldStart("created_at")
	e.Str(inv.CreatedAt.Format(time.RFC3339))
	if items != nil {
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range items {
			e.ObjStart()
			e.FieldStart("product_id")
			e.Str(it.ProductID)
			e.FieldStart("product_name")
			e.Str(it.ProductName)
			e.FieldStart("variant")
			e.Str(it.Variant)
			e.FieldStart("quantity")
			e.Int(it.Quantity)
			e.FieldStart("unit_price")
			e.Str(it.UnitPrice.StringFixed(2))
			e.FieldStart("subtotal")
			e.Str(it.Subtotal.StringFixed(2))
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

// getInvoice renders a receipt. Only the invoice's owner and admins may see
// it.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())

	inv, items, err := h.invoices.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	switch {
	case errors.Is(err, checkout.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load invoice")
		return
	}

	if inv.UserID != info.UserID {
		u, err := h.users.GetByID(r.Context(), info.UserID)
		if err != nil || !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "not your invoice")
			return
		}
	}

	var e jx.Encoder
	encodeInvoice(&e, inv, items)
	writeJSON(w, http.StatusOK, &e)
}
