package auth

import "time"

// Account is the credential view of a platform user.
type Account struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	CompanyID    int64
	GlobalOrder  *int
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
