package areas

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/expensa-app/expensa/internal/shared"
)

type memoryRepo struct {
	areas  map[int64]Area
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{areas: make(map[int64]Area), nextID: 1}
}

func (m *memoryRepo) GetArea(_ context.Context, id int64) (Area, error) {
	area, ok := m.areas[id]
	if !ok {
		return Area{}, shared.ErrNotFound
	}
	return area, nil
}

func (m *memoryRepo) ListAreas(_ context.Context, companyID int64) ([]Area, error) {
	var out []Area
	for _, area := range m.areas {
		if area.CompanyID == companyID {
			out = append(out, area)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateArea(_ context.Context, area Area) (int64, error) {
	id := m.nextID
	m.nextID++
	area.ID = id
	m.areas[id] = area
	return id, nil
}

func (m *memoryRepo) UpdateArea(_ context.Context, id int64, name string, status AreaStatus) error {
	area, ok := m.areas[id]
	if !ok {
		return shared.ErrNotFound
	}
	if name != "" {
		area.Name = name
	}
	if status != "" {
		area.Status = status
	}
	m.areas[id] = area
	return nil
}

func (m *memoryRepo) InsertApprover(_ context.Context, areaID int64, slot ApproverSlot) error {
	area, ok := m.areas[areaID]
	if !ok {
		return shared.ErrNotFound
	}
	if area.Approvers.Contains(slot.ApproverID) {
		return &shared.DuplicateApproverError{AreaID: areaID, UserID: slot.ApproverID}
	}
	area.Approvers = append(area.Approvers, slot)
	m.areas[areaID] = area
	return nil
}

func (m *memoryRepo) DeleteApprover(_ context.Context, areaID, approverID int64) (bool, error) {
	area, ok := m.areas[areaID]
	if !ok {
		return false, shared.ErrNotFound
	}
	for i, slot := range area.Approvers {
		if slot.ApproverID == approverID {
			area.Approvers = append(area.Approvers[:i], area.Approvers[i+1:]...)
			m.areas[areaID] = area
			return true, nil
		}
	}
	return false, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	return NewService(repo, nil), repo
}

func TestCreateAreaValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateArea(context.Background(), "  ", 0, 1)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 2)
}

func TestAddApproverAssignsSequentialOrders(t *testing.T) {
	svc, _ := newTestService(t)
	area, err := svc.CreateArea(context.Background(), "Finanzas", 10, 1)
	require.NoError(t, err)

	first, err := svc.AddApprover(context.Background(), area.ID, 101, 1)
	require.NoError(t, err)
	require.Equal(t, 0, first.Order)

	second, err := svc.AddApprover(context.Background(), area.ID, 102, 1)
	require.NoError(t, err)
	require.Equal(t, 1, second.Order)
}

func TestAddApproverRejectsDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	area, err := svc.CreateArea(context.Background(), "Finanzas", 10, 1)
	require.NoError(t, err)

	_, err = svc.AddApprover(context.Background(), area.ID, 101, 1)
	require.NoError(t, err)

	_, err = svc.AddApprover(context.Background(), area.ID, 101, 1)
	var dup *shared.DuplicateApproverError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, area.ID, dup.AreaID)
	require.Equal(t, int64(101), dup.UserID)
}

func TestRemoveApproverKeepsGaps(t *testing.T) {
	svc, _ := newTestService(t)
	area, err := svc.CreateArea(context.Background(), "Finanzas", 10, 1)
	require.NoError(t, err)

	for _, userID := range []int64{101, 102, 103} {
		_, err := svc.AddApprover(context.Background(), area.ID, userID, 1)
		require.NoError(t, err)
	}

	require.NoError(t, svc.RemoveApprover(context.Background(), area.ID, 102, 1))

	chain, err := svc.ListApprovers(context.Background(), area.ID)
	require.NoError(t, err)
	require.Equal(t, Chain{{Order: 0, ApproverID: 101}, {Order: 2, ApproverID: 103}}, chain)

	// A later add slots in after the surviving maximum, not into the gap.
	slot, err := svc.AddApprover(context.Background(), area.ID, 104, 1)
	require.NoError(t, err)
	require.Equal(t, 3, slot.Order)
}

func TestRemoveApproverMissing(t *testing.T) {
	svc, _ := newTestService(t)
	area, err := svc.CreateArea(context.Background(), "Finanzas", 10, 1)
	require.NoError(t, err)

	err = svc.RemoveApprover(context.Background(), area.ID, 999, 1)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestChainNextOrderSkipsGapsAndDuplicates(t *testing.T) {
	chain := Chain{
		{Order: 0, ApproverID: 1},
		{Order: 2, ApproverID: 2},
		{Order: 2, ApproverID: 3},
		{Order: 5, ApproverID: 4},
	}

	first, ok := chain.FirstOrder()
	require.True(t, ok)
	require.Equal(t, 0, first)

	next, ok := chain.NextOrder(0)
	require.True(t, ok)
	require.Equal(t, 2, next)

	require.True(t, chain.EntitledAt(2, 2))
	require.True(t, chain.EntitledAt(2, 3))
	require.False(t, chain.EntitledAt(2, 4))

	next, ok = chain.NextOrder(2)
	require.True(t, ok)
	require.Equal(t, 5, next)

	_, ok = chain.NextOrder(5)
	require.False(t, ok)
}

func TestUpdateAreaStatusValidation(t *testing.T) {
	svc, _ := newTestService(t)
	area, err := svc.CreateArea(context.Background(), "Finanzas", 10, 1)
	require.NoError(t, err)

	err = svc.UpdateArea(context.Background(), area.ID, "", AreaStatus("ARCHIVED"), 1)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, svc.UpdateArea(context.Background(), area.ID, "Tesoreria", AreaStatusInactive, 1))
	got, err := svc.GetArea(context.Background(), area.ID)
	require.NoError(t, err)
	require.Equal(t, "Tesoreria", got.Name)
	require.Equal(t, AreaStatusInactive, got.Status)
}
