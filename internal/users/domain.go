package users

import (
	"time"

	"github.com/expensa-app/expensa/internal/rbac"
)

// User represents a platform account.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         rbac.Role
	CompanyID    int64
	GlobalOrder  *int
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput carries the fields accepted when registering an account.
type CreateUserInput struct {
	Email       string
	Name        string
	Role        rbac.Role
	CompanyID   int64
	GlobalOrder *int
	Password    string
}

// UpdateUserInput carries mutable account fields.
type UpdateUserInput struct {
	Name        string
	Role        rbac.Role
	GlobalOrder *int
	IsActive    *bool
}
