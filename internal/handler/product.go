package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/modaluna/storefront/internal/domain/product"
	"github.com/modaluna/storefront/internal/session"
)

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("sizes")
	e.Str(p.Sizes)
	e.FieldStart("color")
	e.Str(p.Color)
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	e.FieldStart("available")
	e.Bool(p.Available)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("image")
	e.Str(h.imageURL(p.Photo))
	e.ObjEnd()
}

// listProducts renders the catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}

	info := session.FromContext(r.Context())

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for i := range products {
		h.encodeProduct(&e, &products[i])
	}
	e.ArrEnd()
	encodeFlashes(&e, h.sessions.Flashes(info.SessionID))
	e.ObjEnd()

	writeJSON(w, http.StatusOK, &e)
}

// getProduct renders one product.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	var e jx.Encoder
	h.encodeProduct(&e, p)
	writeJSON(w, http.StatusOK, &e)
}
