package areas

import (
	"context"
	"strconv"
	"strings"

	"github.com/expensa-app/expensa/internal/shared"
)

// AuditPort records administrative changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages areas and their approver chains.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the area service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// GetArea returns an area with its chain.
func (s *Service) GetArea(ctx context.Context, id int64) (Area, error) {
	return s.repo.GetArea(ctx, id)
}

// ListAreas returns all areas for a company.
func (s *Service) ListAreas(ctx context.Context, companyID int64) ([]Area, error) {
	return s.repo.ListAreas(ctx, companyID)
}

// CreateArea registers a new routing area.
func (s *Service) CreateArea(ctx context.Context, name string, companyID int64, actorID int64) (Area, error) {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "required", "area name is required")
	}
	if companyID <= 0 {
		verr.Add("company_id", "required", "company is required")
	}
	if verr.HasViolations() {
		return Area{}, verr
	}
	area := Area{Name: strings.TrimSpace(name), CompanyID: companyID, Status: AreaStatusActive}
	id, err := s.repo.CreateArea(ctx, area)
	if err != nil {
		return Area{}, err
	}
	area.ID = id
	s.recordAudit(ctx, actorID, "AREA_CREATE", id, map[string]any{"name": area.Name})
	return area, nil
}

// UpdateArea renames or deactivates an area.
func (s *Service) UpdateArea(ctx context.Context, id int64, name string, status AreaStatus, actorID int64) error {
	if status != "" && status != AreaStatusActive && status != AreaStatusInactive {
		verr := &shared.ValidationError{}
		verr.Add("status", "oneof", "status must be ACTIVE or INACTIVE")
		return verr
	}
	if err := s.repo.UpdateArea(ctx, id, strings.TrimSpace(name), status); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "AREA_UPDATE", id, map[string]any{"name": name, "status": string(status)})
	return nil
}

// AddApprover appends a user to the end of the area's chain. The new slot
// gets max(existing orders)+1, or 0 when the chain is empty.
func (s *Service) AddApprover(ctx context.Context, areaID, userID int64, actorID int64) (ApproverSlot, error) {
	area, err := s.repo.GetArea(ctx, areaID)
	if err != nil {
		return ApproverSlot{}, err
	}
	if area.Approvers.Contains(userID) {
		return ApproverSlot{}, &shared.DuplicateApproverError{AreaID: areaID, UserID: userID}
	}
	slot := ApproverSlot{Order: area.Approvers.NextFreeOrder(), ApproverID: userID}
	if err := s.repo.InsertApprover(ctx, areaID, slot); err != nil {
		return ApproverSlot{}, err
	}
	s.recordAudit(ctx, actorID, "AREA_APPROVER_ADD", areaID, map[string]any{"approver_id": userID, "order": slot.Order})
	return slot, nil
}

// RemoveApprover deletes a chain entry. Remaining order values stay as they
// are: downstream code keys off order as a stable identifier, not a position.
func (s *Service) RemoveApprover(ctx context.Context, areaID, userID int64, actorID int64) error {
	removed, err := s.repo.DeleteApprover(ctx, areaID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return shared.ErrNotFound
	}
	s.recordAudit(ctx, actorID, "AREA_APPROVER_REMOVE", areaID, map[string]any{"approver_id": userID})
	return nil
}

// ListApprovers returns the chain sorted ascending by order.
func (s *Service) ListApprovers(ctx context.Context, areaID int64) (Chain, error) {
	area, err := s.repo.GetArea(ctx, areaID)
	if err != nil {
		return nil, err
	}
	return area.Approvers.Sorted(), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, areaID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "area",
		EntityID: strconv.FormatInt(areaID, 10),
		Meta:     meta,
	})
}
