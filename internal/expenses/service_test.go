package expenses

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/expensa-app/expensa/internal/shared"
)

type memoryRepo struct {
	expenses map[int64]Expense
	history  map[int64][]HistoryEntry
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{expenses: make(map[int64]Expense), history: make(map[int64][]HistoryEntry), nextID: 1}
}

func (m *memoryRepo) Create(_ context.Context, e Expense) (int64, error) {
	id := m.nextID
	m.nextID++
	e.ID = id
	m.expenses[id] = e
	return id, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Expense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return Expense{}, shared.ErrNotFound
	}
	e.History = append([]HistoryEntry(nil), m.history[id]...)
	return e, nil
}

func (m *memoryRepo) GetMany(_ context.Context, ids []int64) ([]Expense, error) {
	var out []Expense
	for _, id := range ids {
		if e, ok := m.expenses[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByOwner(_ context.Context, ownerID int64, status ExpenseStatus) ([]Expense, error) {
	var out []Expense
	for _, e := range m.expenses {
		if e.OwnerID != ownerID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryRepo) ListByReport(_ context.Context, reportID int64) ([]Expense, error) {
	var out []Expense
	for _, e := range m.expenses {
		if e.ReportID != nil && *e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateFields(_ context.Context, id int64, in ExpenseInput) error {
	e, ok := m.expenses[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.RUC, e.CompanyName, e.Description, e.Category = in.RUC, in.CompanyName, in.Description, in.Category
	e.Total, e.Retention, e.Currency, e.Date = in.Total, in.Retention, in.Currency, in.Date
	e.TypeDocument, e.Serie, e.Files = in.TypeDocument, in.Serie, in.Files
	m.expenses[id] = e
	return nil
}

func (m *memoryRepo) SetStatus(_ context.Context, id int64, status ExpenseStatus) error {
	e, ok := m.expenses[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.Status = status
	m.expenses[id] = e
	return nil
}

func (m *memoryRepo) AppendHistory(_ context.Context, expenseID int64, entry HistoryEntry) error {
	m.history[expenseID] = append(m.history[expenseID], entry)
	return nil
}

var submitter = shared.Actor{ID: 7, Role: "SUBMITTER", CompanyID: 3}

func TestCreateExpenseStartsInDraftWithHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	e, err := svc.Create(context.Background(), submitter, validInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, e.Status)
	require.Equal(t, submitter.ID, e.OwnerID)
	require.Equal(t, submitter.CompanyID, e.CompanyID)
	require.Len(t, e.History, 1)
	require.Equal(t, StatusDraft, e.History[0].Status)
}

func TestCreateExpenseRejectsInvalidPayload(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	in := validInput()
	in.RUC = "not-a-ruc"
	_, err := svc.Create(context.Background(), submitter, in)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, repo.expenses)
}

func TestEditInReviewResubmitsToReport(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	e, err := svc.Create(context.Background(), submitter, validInput())
	require.NoError(t, err)

	// Simulate the router sending the expense back for correction.
	reportID := int64(42)
	stored := repo.expenses[e.ID]
	stored.Status = StatusInReview
	stored.ReportID = &reportID
	repo.expenses[e.ID] = stored

	in := validInput()
	in.Description = "Almuerzo con cliente (corregido)"
	updated, err := svc.Edit(context.Background(), submitter, e.ID, in)
	require.NoError(t, err)
	require.Equal(t, StatusInReport, updated.Status)
	require.Equal(t, in.Description, updated.Description)

	// Correction appends, never rewrites, the trail.
	last := updated.History[len(updated.History)-1]
	require.Equal(t, StatusInReport, last.Status)
}

func TestEditInReviewWithoutReportFallsBackToDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	e, err := svc.Create(context.Background(), submitter, validInput())
	require.NoError(t, err)

	// Sent back for correction, then dropped from its report.
	stored := repo.expenses[e.ID]
	stored.Status = StatusInReview
	stored.ReportID = nil
	repo.expenses[e.ID] = stored

	updated, err := svc.Edit(context.Background(), submitter, e.ID, validInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, updated.Status)
	require.Nil(t, updated.ReportID)

	last := updated.History[len(updated.History)-1]
	require.Equal(t, StatusDraft, last.Status)
}

func TestEditForbiddenForOtherUsers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	e, err := svc.Create(context.Background(), submitter, validInput())
	require.NoError(t, err)

	other := shared.Actor{ID: 99, Role: "SUBMITTER", CompanyID: 3}
	_, err = svc.Edit(context.Background(), other, e.ID, validInput())
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, other.ID, forbidden.ActorID)
}

func TestEditForbiddenOnceApproved(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	e, err := svc.Create(context.Background(), submitter, validInput())
	require.NoError(t, err)

	stored := repo.expenses[e.ID]
	stored.Status = StatusApproved
	repo.expenses[e.ID] = stored

	_, err = svc.Edit(context.Background(), submitter, e.ID, validInput())
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)
}

func TestDirectTransitionForbidden(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	e, err := svc.Create(context.Background(), submitter, validInput())
	require.NoError(t, err)

	err = svc.Transition(context.Background(), submitter, e.ID, StatusApproved)
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, StatusDraft, repo.expenses[e.ID].Status)
}
