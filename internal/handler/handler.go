// Package handler exposes the storefront over HTTP: catalog browsing, the
// session cart, checkout, auth and the admin back office.
//
// Mutating routes follow a form-post-then-redirect flow: domain errors become
// flash notices on the session and a 303 redirect, read routes render JSON.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/modaluna/storefront/internal/domain/cart"
	"github.com/modaluna/storefront/internal/domain/checkout"
	"github.com/modaluna/storefront/internal/domain/product"
	"github.com/modaluna/storefront/internal/domain/user"
	"github.com/modaluna/storefront/internal/session"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Deps are the domain dependencies of the Handler.
type Deps struct {
	Sessions *session.Manager
	Carts    *cart.Service
	Checkout *checkout.Service
	Products product.Repository
	Users    user.Repository
	Roles    user.RoleRepository
	Invoices checkout.Repository
}

// Handler routes HTTP requests into the domain services.
type Handler struct {
	sessions *session.Manager
	carts    *cart.Service
	checkout *checkout.Service
	products product.Repository
	users    user.Repository
	roles    user.RoleRepository
	invoices checkout.Repository

	imageBaseURL string
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	return &Handler{
		sessions:     deps.Sessions,
		carts:        deps.Carts,
		checkout:     deps.Checkout,
		products:     deps.Products,
		users:        deps.Users,
		roles:        deps.Roles,
		invoices:     deps.Invoices,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// imageURL resolves a stored image path against the configured base URL.
// Absolute URLs pass through unchanged.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// writeJSON writes an encoded jx document with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// redirect flashes a notice on the session and issues a 303 See Other, the
// post/redirect/get flow of the storefront UI.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, location, level, message string) {
	if message != "" {
		info := session.FromContext(r.Context())
		h.sessions.Flash(info.SessionID, level, message)
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// serverError logs err and responds with a danger flash redirecting back to
// fallback. The underlying message rides along in the notice.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	zctx.From(r.Context()).Error("handler error", zap.Error(err))
	h.redirect(w, r, fallback, session.FlashDanger, "something went wrong: "+err.Error())
}

// encodeFlashes appends the session's pending notices under a "notices" field.
func encodeFlashes(e *jx.Encoder, flashes []session.Flash) {
	if len(flashes) == 0 {
		return
	}
	e.FieldStart("notices")
	e.ArrStart()
	for _, f := range flashes {
		e.ObjStart()
		e.FieldStart("level")
		e.Str(f.Level)
		e.FieldStart("message")
		e.Str(f.Message)
		e.ObjEnd()
	}
	e.ArrEnd()
}
