package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	ListAdmins(ctx context.Context) ([]User, error)
}

// Service wraps account business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	if strings.TrimSpace(input.Email) == "" {
		return User{}, fmt.Errorf("%w: email is required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return User{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}
	role := input.Role
	if role == "" {
		role = RoleStaff
	}
	if role != RoleAdmin && role != RoleStaff {
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         input.Name,
		Role:         role,
		PasswordHash: string(hash),
	})
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// ListAdmins returns active administrators.
func (s *Service) ListAdmins(ctx context.Context) ([]User, error) {
	return s.repo.ListAdmins(ctx)
}
