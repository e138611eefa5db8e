package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/expensa-app/expensa/internal/rbac"
	"github.com/expensa-app/expensa/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, companyID int64) ([]User, error)
	CreateUser(ctx context.Context, u User) (int64, error)
	UpdateUser(ctx context.Context, id int64, in UpdateUserInput) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns accounts, optionally scoped to a company.
func (s *Service) ListUsers(ctx context.Context, companyID int64) ([]User, error) {
	return s.repo.ListUsers(ctx, companyID)
}

// GetUser returns a single account.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser validates and registers a new account.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	verr := &shared.ValidationError{}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		verr.Add("email", "email", "a valid email address is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "required", "name is required")
	}
	role, err := rbac.ParseRole(string(in.Role))
	if err != nil {
		verr.Add("role", "oneof", "unknown role")
	}
	if len(in.Password) < 8 {
		verr.Add("password", "min", "password must be at least 8 characters")
	}
	if role == rbac.RoleGlobalApprover && in.GlobalOrder == nil {
		verr.Add("global_order", "required", "global approvers need an approval order")
	}
	if in.GlobalOrder != nil && *in.GlobalOrder < 0 {
		verr.Add("global_order", "gte", "approval order cannot be negative")
	}
	if verr.HasViolations() {
		return User{}, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		CompanyID:    in.CompanyID,
		GlobalOrder:  in.GlobalOrder,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.ID = id
	return user, nil
}

// UpdateUser applies account changes.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) error {
	if in.Role != "" {
		if _, err := rbac.ParseRole(string(in.Role)); err != nil {
			verr := &shared.ValidationError{}
			verr.Add("role", "oneof", "unknown role")
			return verr
		}
	}
	return s.repo.UpdateUser(ctx, id, in)
}
