package users

import (
	"errors"
	"time"
)

// Role names recognised by the service.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User represents an account that can act on the ledger and receive alerts.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// ErrInvalidCredentials indicates login failure.
var ErrInvalidCredentials = errors.New("invalid credentials")
