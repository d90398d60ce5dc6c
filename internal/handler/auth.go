package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/modaluna/storefront/internal/domain/user"
	"github.com/modaluna/storefront/internal/session"
)

// register creates an account with the default user role and logs it in.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())

	id := strings.TrimSpace(r.PostFormValue("id"))
	name := strings.TrimSpace(r.PostFormValue("name"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	address := strings.TrimSpace(r.PostFormValue("address"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm")

	switch {
	case id == "" || name == "" || email == "" || password == "":
		h.redirect(w, r, "/register", session.FlashWarning, "id, name, email and password are required")
		return
	case password != confirm:
		h.redirect(w, r, "/register", session.FlashWarning, "passwords do not match")
		return
	}

	role, err := h.roles.FindOrCreate(r.Context(), user.RoleUser)
	if err != nil {
		h.serverError(w, r, "/register", err)
		return
	}

	u := &user.User{
		ID:      id,
		Name:    name,
		Email:   email,
		Address: address,
		RoleID:  role.ID,
	}
	if err := u.SetPassword(password); err != nil {
		h.serverError(w, r, "/register", err)
		return
	}

	err = h.users.Create(r.Context(), u)
	switch {
	case errors.Is(err, user.ErrDuplicateID):
		h.redirect(w, r, "/register", session.FlashWarning, "that user id is already taken")
		return
	case errors.Is(err, user.ErrDuplicateEmail):
		h.redirect(w, r, "/register", session.FlashWarning, "that email is already registered")
		return
	case err != nil:
		h.serverError(w, r, "/register", err)
		return
	}

	if err := h.sessions.Login(r.Context(), w, info.SessionID, u.ID); err != nil {
		h.serverError(w, r, "/login", err)
		return
	}
	h.redirect(w, r, "/products", session.FlashSuccess, "welcome, "+u.Name)
}

// login verifies credentials and binds the user to the session, restoring any
// cart held for that identity.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())

	id := strings.TrimSpace(r.PostFormValue("id"))
	password := r.PostFormValue("password")

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		h.serverError(w, r, "/login", err)
		return
	}
	if err != nil || !u.CheckPassword(password) {
		h.redirect(w, r, "/login", session.FlashDanger, "invalid credentials")
		return
	}

	if err := h.sessions.Login(r.Context(), w, info.SessionID, u.ID); err != nil {
		h.serverError(w, r, "/login", err)
		return
	}
	h.redirect(w, r, "/products", session.FlashSuccess, "welcome back, "+u.Name)
}

// logout snapshots the cart into the holding store and detaches the user.
// Logging out of an anonymous session is a no-op.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	info := session.FromContext(r.Context())
	if err := h.sessions.Logout(r.Context(), w, info.SessionID); err != nil {
		h.serverError(w, r, "/products", err)
		return
	}
	h.redirect(w, r, "/products", session.FlashInfo, "logged out")
}
