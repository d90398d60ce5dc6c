package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// Well-known role names. RoleUser is assigned on registration; RoleAdmin
// gates the back-office routes.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Sentinel errors for user persistence.
var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateID    = errors.New("user id already registered")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Role is a named permission group.
type Role struct {
	ID        int
	Name      string
	CreatedAt time.Time
}

// User represents a registered account. RoleName is resolved from the roles
// table when the user is loaded; it is empty on unsaved users.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Address      string
	RoleID       int
	RoleName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetPassword hashes raw with bcrypt and stores the hash.
func (u *User) SetPassword(raw string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether raw matches the stored hash.
func (u *User) CheckPassword(raw string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(raw)) == nil
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.RoleName == RoleAdmin
}

// Repository defines persistence operations for user accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
	List(ctx context.Context) ([]User, error)
	Delete(ctx context.Context, id string) error
	SetRole(ctx context.Context, id string, roleID int) error
}

// RoleRepository defines persistence operations for roles.
type RoleRepository interface {
	FindOrCreate(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
}
