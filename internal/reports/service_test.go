package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/expensa-app/expensa/internal/areas"
	"github.com/expensa-app/expensa/internal/expenses"
	"github.com/expensa-app/expensa/internal/shared"
)

// memoryStore implements Store/TxStore with copy-on-begin rollback so the
// atomicity guarantees of the real repository hold in tests too.
type memoryStore struct {
	reports     map[int64]Report
	expenses    map[int64]expenses.Expense
	history     map[int64][]expenses.HistoryEntry
	nextReport  int64
	nextExpense int64

	// versionSkew makes transactional reads return a stale report version,
	// standing in for a concurrent writer.
	versionSkew int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		reports:     make(map[int64]Report),
		expenses:    make(map[int64]expenses.Expense),
		history:     make(map[int64][]expenses.HistoryEntry),
		nextReport:  1,
		nextExpense: 1,
	}
}

func (m *memoryStore) snapshot() (map[int64]Report, map[int64]expenses.Expense, map[int64][]expenses.HistoryEntry) {
	reports := make(map[int64]Report, len(m.reports))
	for k, v := range m.reports {
		reports[k] = v
	}
	exps := make(map[int64]expenses.Expense, len(m.expenses))
	for k, v := range m.expenses {
		exps[k] = v
	}
	history := make(map[int64][]expenses.HistoryEntry, len(m.history))
	for k, v := range m.history {
		history[k] = append([]expenses.HistoryEntry(nil), v...)
	}
	return reports, exps, history
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	reports, exps, history := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.reports, m.expenses, m.history = reports, exps, history
		return err
	}
	return nil
}

func (m *memoryStore) GetReport(_ context.Context, id int64) (Report, error) {
	rep, ok := m.reports[id]
	if !ok {
		return Report{}, shared.ErrNotFound
	}
	rep.Version -= m.versionSkew
	return rep, nil
}

func (m *memoryStore) CreateReport(_ context.Context, rep Report) (int64, error) {
	id := m.nextReport
	m.nextReport++
	rep.ID = id
	m.reports[id] = rep
	return id, nil
}

func (m *memoryStore) UpdateReportName(_ context.Context, id int64, name string, expectedVersion int) error {
	rep, ok := m.reports[id]
	if !ok {
		return shared.ErrNotFound
	}
	if rep.Version != expectedVersion {
		return &shared.ConflictError{Entity: "report", ID: id}
	}
	rep.Name = name
	rep.Version++
	m.reports[id] = rep
	return nil
}

func (m *memoryStore) SetReportState(_ context.Context, id int64, status ReportStatus, index *int, expectedVersion int) error {
	rep, ok := m.reports[id]
	if !ok {
		return shared.ErrNotFound
	}
	if rep.Version != expectedVersion {
		return &shared.ConflictError{Entity: "report", ID: id}
	}
	rep.Status = status
	rep.Index = index
	rep.Version++
	m.reports[id] = rep
	return nil
}

func (m *memoryStore) ListReports(_ context.Context, filters ListFilters) ([]Report, int, error) {
	var out []Report
	for _, rep := range m.reports {
		if filters.CompanyID > 0 && rep.CompanyID != filters.CompanyID {
			continue
		}
		if filters.CreatedBy > 0 && rep.CreatedBy != filters.CreatedBy {
			continue
		}
		if filters.Status != "" && rep.Status != filters.Status {
			continue
		}
		out = append(out, rep)
	}
	return out, len(out), nil
}

func (m *memoryStore) ExpensesByIDs(_ context.Context, ids []int64) ([]expenses.Expense, error) {
	var out []expenses.Expense
	for _, id := range ids {
		if e, ok := m.expenses[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) ExpensesByReport(_ context.Context, reportID int64) ([]expenses.Expense, error) {
	var out []expenses.Expense
	for _, e := range m.expenses {
		if e.ReportID != nil && *e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) SetExpenseStatus(_ context.Context, id int64, status expenses.ExpenseStatus) error {
	e, ok := m.expenses[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.Status = status
	m.expenses[id] = e
	return nil
}

func (m *memoryStore) SetExpenseReport(_ context.Context, id int64, reportID *int64) error {
	e, ok := m.expenses[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.ReportID = reportID
	m.expenses[id] = e
	return nil
}

func (m *memoryStore) AppendExpenseHistory(_ context.Context, expenseID int64, entry expenses.HistoryEntry) error {
	m.history[expenseID] = append(m.history[expenseID], entry)
	return nil
}

func (m *memoryStore) addExpense(ownerID int64) int64 {
	id := m.nextExpense
	m.nextExpense++
	m.expenses[id] = expenses.Expense{
		ID:      id,
		Status:  expenses.StatusDraft,
		OwnerID: ownerID,
		Total:   100,
		Date:    time.Now(),
	}
	return id
}

type areaFake struct {
	areas map[int64]areas.Area
}

func (f *areaFake) GetArea(_ context.Context, id int64) (areas.Area, error) {
	area, ok := f.areas[id]
	if !ok {
		return areas.Area{}, shared.ErrNotFound
	}
	return area, nil
}

const (
	companyID = int64(1)
	areaID    = int64(10)
)

var (
	submitter = shared.Actor{ID: 1, Role: "SUBMITTER", CompanyID: companyID}
	actorA    = shared.Actor{ID: 2, Role: "APPROVER", CompanyID: companyID}
	actorB    = shared.Actor{ID: 3, Role: "APPROVER", CompanyID: companyID}
)

func newRouter(t *testing.T, chain areas.Chain) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	areaPort := &areaFake{areas: map[int64]areas.Area{
		areaID: {ID: areaID, Name: "Finanzas", CompanyID: companyID, Status: areas.AreaStatusActive, Approvers: chain},
	}}
	return NewService(store, areaPort, nil, nil, nil), store
}

func makeSubmitted(t *testing.T, svc *Service, store *memoryStore, expenseCount int) (Report, []int64) {
	t.Helper()
	var ids []int64
	for i := 0; i < expenseCount; i++ {
		ids = append(ids, store.addExpense(submitter.ID))
	}
	report, err := svc.Create(context.Background(), submitter, "Gastos agosto", areaID, ids)
	require.NoError(t, err)
	report, err = svc.Submit(context.Background(), submitter, report.ID)
	require.NoError(t, err)
	return report, ids
}

func TestRoundTripSingleApproverCloses(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 2)
	require.Equal(t, StatusInProcess, report.Status)
	require.Equal(t, 0, *report.Index)
	for _, id := range ids {
		require.Equal(t, expenses.StatusInReport, store.expenses[id].Status)
	}

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids, ""))
	final, err := svc.Advance(context.Background(), actorA, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, final.Status)
	require.Nil(t, final.Index)
	for _, id := range ids {
		require.Equal(t, expenses.StatusApproved, store.expenses[id].Status)
	}
}

func TestTwoStepChainHandsOff(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{
		{Order: 0, ApproverID: actorA.ID},
		{Order: 1, ApproverID: actorB.ID},
	})
	report, ids := makeSubmitted(t, svc, store, 1)
	require.Equal(t, 0, *report.Index)

	// B is in the chain but not at the active order.
	err := svc.Decide(context.Background(), actorB, report.ID, ActionApprove, ids, "")
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids, ""))
	advanced, err := svc.Advance(context.Background(), actorA, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProcess, advanced.Status)
	require.Equal(t, 1, *advanced.Index)

	// A already decided; hand-off did not reset per-expense statuses.
	require.Equal(t, expenses.StatusApproved, store.expenses[ids[0]].Status)

	require.NoError(t, svc.Decide(context.Background(), actorB, report.ID, ActionApprove, ids, ""))
	closed, err := svc.Advance(context.Background(), actorB, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
}

func TestApproveIsIdempotent(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 1)

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids, ""))
	before := len(store.history[ids[0]])

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids, ""))
	require.Equal(t, before, len(store.history[ids[0]]))
	require.Equal(t, expenses.StatusApproved, store.expenses[ids[0]].Status)
}

func TestRejectRequiresSingleExpenseAndComment(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 2)

	err := svc.Decide(context.Background(), actorA, report.ID, ActionReject, ids, "demasiado caro")
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "expenses", verr.Violations[0].Field)

	err = svc.Decide(context.Background(), actorA, report.ID, ActionReject, ids[:1], "  ")
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "comment", verr.Violations[0].Field)

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionReject, ids[:1], "demasiado caro"))
	require.Equal(t, expenses.StatusRejected, store.expenses[ids[0]].Status)
}

func TestRejectedExpenseCannotBeReapproved(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 1)

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionReject, ids, "sin sustento"))
	err := svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids, "")
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, expenses.StatusRejected, store.expenses[ids[0]].Status)
}

func TestRequestReviewRoundTrip(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 2)

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionRequestReview, ids[:1], "falta RUC"))
	require.Equal(t, expenses.StatusInReview, store.expenses[ids[0]].Status)

	// An expense with the submitter blocks the hand-off.
	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids[1:], ""))
	_, err := svc.Advance(context.Background(), actorA, report.ID)
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)

	// Correction resubmits into the same step without moving the index.
	require.NoError(t, store.SetExpenseStatus(context.Background(), ids[0], expenses.StatusInReport))
	current, err := store.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	require.Equal(t, 0, *current.Index)

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids[:1], ""))
	closed, err := svc.Advance(context.Background(), actorA, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
}

func TestSubmitEmptyReportBlocked(t *testing.T) {
	svc, _ := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, err := svc.Create(context.Background(), submitter, "Vacio", areaID, nil)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), submitter, report.ID)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSubmitWithoutApproversFails(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{})
	id := store.addExpense(submitter.ID)
	report, err := svc.Create(context.Background(), submitter, "Gastos", areaID, []int64{id})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), submitter, report.ID)
	var noChain *shared.NoApproversConfiguredError
	require.ErrorAs(t, err, &noChain)
	require.Equal(t, areaID, noChain.AreaID)

	// Nothing moved: the expense is still a draft attached to the report.
	require.Equal(t, expenses.StatusDraft, store.expenses[id].Status)
}

func TestDuplicateOrdersActTogether(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{
		{Order: 0, ApproverID: actorA.ID},
		{Order: 0, ApproverID: actorB.ID},
		{Order: 1, ApproverID: 4},
	})
	report, ids := makeSubmitted(t, svc, store, 1)

	// Either holder of order 0 may act; advancing skips the whole order.
	require.NoError(t, svc.Decide(context.Background(), actorB, report.ID, ActionApprove, ids, ""))
	advanced, err := svc.Advance(context.Background(), actorA, report.ID)
	require.NoError(t, err)
	require.Equal(t, 1, *advanced.Index)
}

func TestGlobalApproverMatchesIndexOnly(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{
		{Order: 0, ApproverID: actorA.ID},
		{Order: 1, ApproverID: actorB.ID},
	})
	report, ids := makeSubmitted(t, svc, store, 1)

	order0, order1 := 0, 1
	outsider := shared.Actor{ID: 77, Role: "GLOBAL_APPROVER", CompanyID: companyID, GlobalOrder: &order1}

	// Routing order 1 does not match the active step.
	err := svc.Decide(context.Background(), outsider, report.ID, ActionApprove, ids, "")
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)

	outsider.GlobalOrder = &order0
	require.NoError(t, svc.Decide(context.Background(), outsider, report.ID, ActionApprove, ids, ""))
}

func TestConcurrentDecisionConflicts(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 1)

	store.versionSkew = 1
	err := svc.Decide(context.Background(), actorA, report.ID, ActionApprove, ids, "")
	var conflict *shared.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, report.ID, conflict.ID)

	// The losing call left no partial state behind.
	require.Equal(t, expenses.StatusInReport, store.expenses[ids[0]].Status)
	require.Len(t, store.history[ids[0]], 1)
}

func TestDecideIsAtomicAcrossSelection(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 1)
	foreign := store.addExpense(submitter.ID)

	err := svc.Decide(context.Background(), actorA, report.ID, ActionApprove, []int64{ids[0], foreign}, "")
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	// The valid expense in the same selection was rolled back too.
	require.Equal(t, expenses.StatusInReport, store.expenses[ids[0]].Status)
}

func TestApproveAllThenClose(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 3)

	final, err := svc.ApproveAll(context.Background(), actorA, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, final.Status)
	for _, id := range ids {
		require.Equal(t, expenses.StatusApproved, store.expenses[id].Status)
	}
}

func TestReturnAndResubmitReentersAtFirstOrder(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{
		{Order: 0, ApproverID: actorA.ID},
		{Order: 1, ApproverID: actorB.ID},
	})
	report, ids := makeSubmitted(t, svc, store, 1)

	_, err := svc.Return(context.Background(), actorA, report.ID, "")
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	observed, err := svc.Return(context.Background(), actorA, report.ID, "revisar categorias")
	require.NoError(t, err)
	require.Equal(t, StatusObserved, observed.Status)
	require.Nil(t, observed.Index)

	historyBefore := len(store.history[ids[0]])
	resubmitted, err := svc.Submit(context.Background(), submitter, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProcess, resubmitted.Status)
	require.Equal(t, 0, *resubmitted.Index)

	// Resubmission appends history, it never rewrites it.
	require.GreaterOrEqual(t, len(store.history[ids[0]]), historyBefore)
}

func TestEditDetachResetsSentBackExpenseToDraft(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 2)

	require.NoError(t, svc.Decide(context.Background(), actorA, report.ID, ActionRequestReview, ids[:1], "falta RUC"))
	_, err := svc.Return(context.Background(), actorA, report.ID, "corregir y reenviar")
	require.NoError(t, err)

	// Dropping the sent-back expense must not strand it in IN_REVIEW.
	require.NoError(t, svc.Edit(context.Background(), submitter, report.ID, "Gastos agosto", ids[1:]))
	dropped := store.expenses[ids[0]]
	require.Equal(t, expenses.StatusDraft, dropped.Status)
	require.Nil(t, dropped.ReportID)

	// The detached expense can join a report again.
	fresh, err := svc.Create(context.Background(), submitter, "Gastos septiembre", areaID, ids[:1])
	require.NoError(t, err)
	require.Equal(t, fresh.ID, *store.expenses[ids[0]].ReportID)
}

func TestCreateRejectsForeignAndAttachedExpenses(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})

	mine := store.addExpense(submitter.ID)
	foreign := store.addExpense(999)
	_, attached := makeSubmitted(t, svc, store, 1)

	_, err := svc.Create(context.Background(), submitter, "Mixto", areaID, []int64{mine, foreign, attached[0], 12345})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 3)

	// Rolled back: the valid expense stayed unattached.
	require.Nil(t, store.expenses[mine].ReportID)
}

func TestSubmitterCannotDecide(t *testing.T) {
	svc, store := newRouter(t, areas.Chain{{Order: 0, ApproverID: actorA.ID}})
	report, ids := makeSubmitted(t, svc, store, 1)

	err := svc.Decide(context.Background(), submitter, report.ID, ActionApprove, ids, "")
	var forbidden *shared.ForbiddenTransitionError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, submitter.ID, forbidden.ActorID)
}
