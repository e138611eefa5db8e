package rbac

import (
	"context"

	"github.com/expensa-app/expensa/internal/shared"
)

// DirectoryPort resolves user identities. Implemented by the users package.
type DirectoryPort interface {
	FindActor(ctx context.Context, userID int64) (shared.Actor, error)
}

// Service resolves actors and their effective permissions.
type Service struct {
	directory DirectoryPort
}

// NewService constructs the rbac service.
func NewService(directory DirectoryPort) *Service {
	return &Service{directory: directory}
}

// ResolveActor loads the actor record for a user id.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (*shared.Actor, error) {
	actor, err := s.directory.FindActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// EffectivePermissions returns the capability set granted to a user's role.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	actor, err := s.directory.FindActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(actor.Role)
	if err != nil {
		return nil, err
	}
	return Capabilities(role), nil
}
