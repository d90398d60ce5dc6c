package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modaluna/storefront/internal/domain/user"
)

const (
	userColumns = `u.id, u.name, COALESCE(u.email, ''), u.password_hash, u.address,
		COALESCE(u.role_id, 0), COALESCE(r.name, ''), u.created_at, u.updated_at`

	getUserByIDSQL = `SELECT ` + userColumns + `
		FROM users u LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`

	listUsersSQL = `SELECT ` + userColumns + `
		FROM users u LEFT JOIN roles r ON r.id = u.role_id
		ORDER BY u.created_at DESC, u.id`

	insertUserSQL = `INSERT INTO users (id, name, email, password_hash, address, role_id)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`

	deleteUserSQL = `DELETE FROM users WHERE id = $1`

	setUserRoleSQL = `UPDATE users SET role_id = $2, updated_at = now() WHERE id = $1`

	findRoleSQL   = `SELECT id, name, created_at FROM roles WHERE name = $1`
	insertRoleSQL = `INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	listRolesSQL  = `SELECT id, name, created_at FROM roles ORDER BY id`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

var (
	_ user.Repository     = (*UserRepository)(nil)
	_ user.RoleRepository = (*RoleRepository)(nil)
)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns a user with their role name resolved.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get user %q", id)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get user %q", id)
	}
	return &u, nil
}

// Create persists a new user. Duplicate IDs and emails map to the domain's
// sentinel errors so handlers can warn precisely.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, insertUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Address, u.RoleID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "users_email_key" {
				return user.ErrDuplicateEmail
			}
			return user.ErrDuplicateID
		}
		return errors.Wrapf(err, "create user %q", u.ID)
	}
	return nil
}

// List returns all users, newest first.
func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return pgx.CollectRows(rows, scanUser)
}

// Delete removes a user account.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete user %q", id)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetRole assigns a role to a user.
func (r *UserRepository) SetRole(ctx context.Context, id string, roleID int) error {
	tag, err := r.pool.Exec(ctx, setUserRoleSQL, id, roleID)
	if err != nil {
		return errors.Wrapf(err, "set role for user %q", id)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Address,
		&u.RoleID, &u.RoleName, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// RoleRepository implements user.RoleRepository backed by PostgreSQL.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository returns a RoleRepository that uses the given pool.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// FindOrCreate returns the role named name, creating it when absent.
func (r *RoleRepository) FindOrCreate(ctx context.Context, name string) (*user.Role, error) {
	if _, err := r.pool.Exec(ctx, insertRoleSQL, name); err != nil {
		return nil, errors.Wrapf(err, "create role %q", name)
	}

	var role user.Role
	err := r.pool.QueryRow(ctx, findRoleSQL, name).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "find role %q", name)
	}
	return &role, nil
}

// List returns all roles.
func (r *RoleRepository) List(ctx context.Context) ([]user.Role, error) {
	rows, err := r.pool.Query(ctx, listRolesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list roles")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.Role, error) {
		var role user.Role
		err := row.Scan(&role.ID, &role.Name, &role.CreatedAt)
		return role, err
	})
}
