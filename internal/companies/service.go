package companies

import (
	"context"
	"errors"
)

// Service wraps company master data rules.
type Service struct {
	repo Repository
}

// NewService constructs the company service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns companies matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Company, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns a single company.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	if id <= 0 {
		return Company{}, errors.New("invalid company ID")
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new company.
func (s *Service) Create(ctx context.Context, company Company) (Company, error) {
	if err := s.validate(company); err != nil {
		return Company{}, err
	}
	return s.repo.Create(ctx, company)
}

// Update applies company changes.
func (s *Service) Update(ctx context.Context, id int64, company Company) error {
	if id <= 0 {
		return errors.New("invalid company ID")
	}
	if err := s.validate(company); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, company)
}

// Deactivate soft deletes a company.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid company ID")
	}
	return s.repo.Deactivate(ctx, id)
}
