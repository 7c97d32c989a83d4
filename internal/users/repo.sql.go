package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, password_hash, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, role, password_hash, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,TRUE,NOW(),NOW()) RETURNING `+userColumns, u.Email, u.Name, u.Role, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("email %q: %w", u.Email, shared.ErrDuplicate)
		}
		return User{}, err
	}
	return created, nil
}

// Get returns a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}

// FindByEmail returns a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %s: %w", email, shared.ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}

// ListAdmins returns active administrators, the default alert recipients.
func (r *Repository) ListAdmins(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 AND is_active ORDER BY id`, RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var admins []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return admins, nil
}
