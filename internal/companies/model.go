package companies

import "time"

// Company represents a corporation using the platform.
type Company struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	RUC       string    `json:"ruc"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters narrows company listings.
type ListFilters struct {
	Search string
	Page   int
	Limit  int
}
