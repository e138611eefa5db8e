package reports

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/expensa-app/expensa/internal/areas"
	"github.com/expensa-app/expensa/internal/expenses"
	"github.com/expensa-app/expensa/internal/rbac"
	"github.com/expensa-app/expensa/internal/shared"
)

// AreaPort resolves an area and its approver chain.
type AreaPort interface {
	GetArea(ctx context.Context, id int64) (areas.Area, error)
}

// ApprovalPort persists the approval ledger.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditPort records router actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort hands events to the async delivery pipeline. Failures are
// logged by the implementation and never abort an approval action.
type NotifierPort interface {
	ReportPending(ctx context.Context, reportID int64, name string, approverIDs []int64) error
	ReportClosed(ctx context.Context, reportID int64, name string, submitterID int64) error
	ReportReturned(ctx context.Context, reportID int64, name string, submitterID int64, comment string) error
	ExpenseSentBack(ctx context.Context, expenseID, ownerID int64, comment string) error
}

// Service is the approval router: it owns report lifecycle transitions and
// is the only writer of expense statuses during an active report cycle.
type Service struct {
	store     Store
	areas     AreaPort
	approvals ApprovalPort
	audit     AuditPort
	notifier  NotifierPort
}

// NewService constructs the router.
func NewService(store Store, areaPort AreaPort, approvals ApprovalPort, audit AuditPort, notifier NotifierPort) *Service {
	return &Service{store: store, areas: areaPort, approvals: approvals, audit: audit, notifier: notifier}
}

// Create builds a DRAFT report from the submitter's unattached DRAFT
// expenses. An expense belongs to at most one open report.
func (s *Service) Create(ctx context.Context, actor shared.Actor, name string, areaID int64, expenseIDs []int64) (Report, error) {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "required", "report name is required")
	}
	if areaID <= 0 {
		verr.Add("area_id", "required", "area is required")
	}
	if verr.HasViolations() {
		return Report{}, verr
	}
	area, err := s.areas.GetArea(ctx, areaID)
	if err != nil {
		return Report{}, err
	}
	if area.Status != areas.AreaStatusActive || area.CompanyID != actor.CompanyID {
		verr.Add("area_id", "invalid", "area is not available for this company")
		return Report{}, verr
	}

	var report Report
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		attachable, err := s.checkAttachable(ctx, tx, actor, expenseIDs)
		if err != nil {
			return err
		}
		report = Report{
			Name:      strings.TrimSpace(name),
			CompanyID: actor.CompanyID,
			AreaID:    areaID,
			Status:    StatusDraft,
			CreatedBy: actor.ID,
			Version:   1,
		}
		id, err := tx.CreateReport(ctx, report)
		if err != nil {
			return err
		}
		report.ID = id
		for _, e := range attachable {
			if err := tx.SetExpenseReport(ctx, e.ID, &id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.recordAudit(ctx, actor.ID, "REPORT_CREATE", report.ID, map[string]any{"name": report.Name, "expenses": len(expenseIDs)})
	return report, nil
}

// Edit renames a report and replaces its expense set. Valid only while the
// report is DRAFT or OBSERVED.
func (s *Service) Edit(ctx context.Context, actor shared.Actor, id int64, name string, expenseIDs []int64) error {
	if strings.TrimSpace(name) == "" {
		verr := &shared.ValidationError{}
		verr.Add("name", "required", "report name is required")
		return verr
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		report, err := tx.GetReport(ctx, id)
		if err != nil {
			return err
		}
		if report.CreatedBy != actor.ID {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "only the report owner may edit it"}
		}
		if report.Status != StatusDraft && report.Status != StatusObserved {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "report can only be edited while DRAFT or OBSERVED"}
		}
		if err := tx.UpdateReportName(ctx, id, strings.TrimSpace(name), report.Version); err != nil {
			return err
		}

		current, err := tx.ExpensesByReport(ctx, id)
		if err != nil {
			return err
		}
		keep := make(map[int64]bool, len(expenseIDs))
		for _, eid := range expenseIDs {
			keep[eid] = true
		}
		var toAttach []int64
		attached := make(map[int64]bool, len(current))
		for _, e := range current {
			attached[e.ID] = true
			if !keep[e.ID] {
				if err := tx.SetExpenseReport(ctx, e.ID, nil); err != nil {
					return err
				}
				// Both pending and sent-back expenses return to DRAFT so
				// they can join a report again later.
				if e.Status == expenses.StatusInReport || e.Status == expenses.StatusInReview {
					if err := tx.SetExpenseStatus(ctx, e.ID, expenses.StatusDraft); err != nil {
						return err
					}
				}
			}
		}
		for _, eid := range expenseIDs {
			if !attached[eid] {
				toAttach = append(toAttach, eid)
			}
		}
		attachable, err := s.checkAttachable(ctx, tx, actor, toAttach)
		if err != nil {
			return err
		}
		for _, e := range attachable {
			if err := tx.SetExpenseReport(ctx, e.ID, &id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "REPORT_EDIT", id, map[string]any{"name": name, "expenses": len(expenseIDs)})
	return nil
}

// checkAttachable validates that every referenced expense exists, belongs to
// the actor, sits in DRAFT and is not attached to another open report. All
// violations are collected before failing.
func (s *Service) checkAttachable(ctx context.Context, tx TxStore, actor shared.Actor, ids []int64) ([]expenses.Expense, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := tx.ExpensesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]expenses.Expense, len(items))
	for _, e := range items {
		found[e.ID] = e
	}
	verr := &shared.ValidationError{}
	var out []expenses.Expense
	for _, id := range ids {
		e, ok := found[id]
		field := "expenses." + strconv.FormatInt(id, 10)
		switch {
		case !ok:
			verr.Add(field, "exists", "expense not found")
		case e.OwnerID != actor.ID:
			verr.Add(field, "owner", "expense belongs to another submitter")
		case e.Status != expenses.StatusDraft:
			verr.Add(field, "status", "expense must be in DRAFT to join a report")
		case e.ReportID != nil:
			verr.Add(field, "attached", "expense already belongs to an open report")
		default:
			out = append(out, e)
		}
	}
	if verr.HasViolations() {
		return nil, verr
	}
	return out, nil
}

// Submit moves a DRAFT or OBSERVED report into review at the first order of
// its area chain. Expenses enter the pending set; prior approve/reject
// decisions from an earlier cycle are kept, only their history grows.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, id int64) (Report, error) {
	var (
		report    Report
		firstIDs  []int64
		areaChain areas.Chain
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		report, err = tx.GetReport(ctx, id)
		if err != nil {
			return err
		}
		if report.CreatedBy != actor.ID {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "only the report owner may submit it"}
		}
		if report.Status != StatusDraft && report.Status != StatusObserved {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "report can only be submitted from DRAFT or OBSERVED"}
		}
		items, err := tx.ExpensesByReport(ctx, id)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			verr := &shared.ValidationError{}
			verr.Add("expenses", "min", "a report needs at least one expense before review")
			return verr
		}
		area, err := s.areas.GetArea(ctx, report.AreaID)
		if err != nil {
			return err
		}
		areaChain = area.Approvers
		first, ok := areaChain.FirstOrder()
		if !ok {
			return &shared.NoApproversConfiguredError{AreaID: report.AreaID}
		}
		if err := tx.SetReportState(ctx, id, StatusInProcess, &first, report.Version); err != nil {
			return err
		}
		report.Status = StatusInProcess
		report.Index = &first
		report.Version++

		for _, e := range items {
			if e.Status != expenses.StatusDraft && e.Status != expenses.StatusInReview {
				continue
			}
			if err := s.transition(ctx, tx, e.ID, expenses.StatusInReport, actor.ID, "submitted for review", ""); err != nil {
				return err
			}
		}
		for _, slot := range areaChain {
			if slot.Order == first {
				firstIDs = append(firstIDs, slot.ApproverID)
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.recordApproval(ctx, report.ID, actor.ID, shared.ApprovalSubmit, "")
	s.recordAudit(ctx, actor.ID, "REPORT_SUBMIT", report.ID, map[string]any{"index": report.Index})
	if s.notifier != nil {
		_ = s.notifier.ReportPending(ctx, report.ID, report.Name, firstIDs)
	}
	return report, nil
}

// Decide applies one bulk expense-level decision at the report's active
// step. The whole call is atomic: every selected expense transitions and the
// report version bumps, or nothing changes.
func (s *Service) Decide(ctx context.Context, actor shared.Actor, reportID int64, action Action, expenseIDs []int64, comment string) error {
	if err := validateSelection(action, expenseIDs, comment); err != nil {
		return err
	}
	var sentBack *expenses.Expense
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		report, _, err := s.loadGated(ctx, tx, actor, reportID)
		if err != nil {
			return err
		}
		items, err := tx.ExpensesByIDs(ctx, expenseIDs)
		if err != nil {
			return err
		}
		byID := make(map[int64]expenses.Expense, len(items))
		for _, e := range items {
			byID[e.ID] = e
		}
		for _, id := range expenseIDs {
			e, ok := byID[id]
			if !ok || e.ReportID == nil || *e.ReportID != reportID {
				verr := &shared.ValidationError{}
				verr.Add("expenses."+strconv.FormatInt(id, 10), "member", "expense does not belong to this report")
				return verr
			}
			if err := s.applyDecision(ctx, tx, actor, action, e, comment); err != nil {
				return err
			}
			if action == ActionRequestReview {
				copied := e
				sentBack = &copied
			}
		}
		// Bump the version even though status/index are unchanged so two
		// approvers racing on the same snapshot cannot both commit.
		return tx.SetReportState(ctx, reportID, report.Status, report.Index, report.Version)
	})
	if err != nil {
		return err
	}
	s.recordApproval(ctx, reportID, actor.ID, approvalAction(action), comment)
	s.recordAudit(ctx, actor.ID, "REPORT_DECIDE", reportID, map[string]any{"action": string(action), "expenses": expenseIDs})
	if sentBack != nil && s.notifier != nil {
		_ = s.notifier.ExpenseSentBack(ctx, sentBack.ID, sentBack.OwnerID, comment)
	}
	return nil
}

func validateSelection(action Action, expenseIDs []int64, comment string) error {
	verr := &shared.ValidationError{}
	switch action {
	case ActionApprove:
		if len(expenseIDs) == 0 {
			verr.Add("expenses", "min", "approve requires at least one expense")
		}
	case ActionReject:
		if len(expenseIDs) != 1 {
			verr.Add("expenses", "single", "reject requires exactly one expense")
		}
		if strings.TrimSpace(comment) == "" {
			verr.Add("comment", "required", "reject requires a comment")
		}
	case ActionRequestReview:
		if len(expenseIDs) != 1 {
			verr.Add("expenses", "single", "review request requires exactly one expense")
		}
		if strings.TrimSpace(comment) == "" {
			verr.Add("comment", "required", "review request requires a comment")
		}
	default:
		verr.Add("action", "oneof", "action must be APPROVE, REJECT or REQUEST_REVIEW")
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

func (s *Service) applyDecision(ctx context.Context, tx TxStore, actor shared.Actor, action Action, e expenses.Expense, comment string) error {
	switch action {
	case ActionApprove:
		if e.Status == expenses.StatusApproved {
			// Idempotent: no new history entry, no error.
			return nil
		}
		if e.Status != expenses.StatusInReport {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "only pending expenses can be approved"}
		}
		return s.transition(ctx, tx, e.ID, expenses.StatusApproved, actor.ID, "approved", comment)
	case ActionReject:
		if e.Status != expenses.StatusInReport {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "only pending expenses can be rejected"}
		}
		return s.transition(ctx, tx, e.ID, expenses.StatusRejected, actor.ID, "rejected", comment)
	case ActionRequestReview:
		if e.Status != expenses.StatusInReport {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "only pending expenses can be sent back for review"}
		}
		return s.transition(ctx, tx, e.ID, expenses.StatusInReview, actor.ID, "sent back to submitter", comment)
	}
	return nil
}

// Advance hands the report to the next approver order or closes it. Blocked
// until every expense has been approved or rejected at the current step.
func (s *Service) Advance(ctx context.Context, actor shared.Actor, reportID int64) (Report, error) {
	var (
		report  Report
		nextIDs []int64
		closed  bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var chain areas.Chain
		var err error
		report, chain, err = s.loadGated(ctx, tx, actor, reportID)
		if err != nil {
			return err
		}
		items, err := tx.ExpensesByReport(ctx, reportID)
		if err != nil {
			return err
		}
		if !resolved(items) {
			return &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "every expense must be approved or rejected before advancing"}
		}
		next, ok := chain.NextOrder(*report.Index)
		if !ok {
			closed = true
			if err := tx.SetReportState(ctx, reportID, StatusClosed, nil, report.Version); err != nil {
				return err
			}
			report.Status = StatusClosed
			report.Index = nil
			report.Version++
			return nil
		}
		if err := tx.SetReportState(ctx, reportID, StatusInProcess, &next, report.Version); err != nil {
			return err
		}
		report.Index = &next
		report.Version++
		for _, slot := range chain {
			if slot.Order == next {
				nextIDs = append(nextIDs, slot.ApproverID)
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	if closed {
		s.recordApproval(ctx, reportID, actor.ID, shared.ApprovalClose, "")
		s.recordAudit(ctx, actor.ID, "REPORT_CLOSE", reportID, nil)
		if s.notifier != nil {
			_ = s.notifier.ReportClosed(ctx, reportID, report.Name, report.CreatedBy)
		}
		return report, nil
	}
	s.recordApproval(ctx, reportID, actor.ID, shared.ApprovalAdvance, "")
	s.recordAudit(ctx, actor.ID, "REPORT_ADVANCE", reportID, map[string]any{"index": report.Index})
	if s.notifier != nil {
		_ = s.notifier.ReportPending(ctx, reportID, report.Name, nextIDs)
	}
	return report, nil
}

// ApproveAll approves every pending expense and then advances, as one
// atomic action. Expenses already decided keep their decisions.
func (s *Service) ApproveAll(ctx context.Context, actor shared.Actor, reportID int64) (Report, error) {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		report, _, err := s.loadGated(ctx, tx, actor, reportID)
		if err != nil {
			return err
		}
		items, err := tx.ExpensesByReport(ctx, reportID)
		if err != nil {
			return err
		}
		for _, e := range items {
			if e.Status != expenses.StatusInReport {
				continue
			}
			if err := s.transition(ctx, tx, e.ID, expenses.StatusApproved, actor.ID, "approved", ""); err != nil {
				return err
			}
		}
		return tx.SetReportState(ctx, reportID, report.Status, report.Index, report.Version)
	})
	if err != nil {
		return Report{}, err
	}
	s.recordApproval(ctx, reportID, actor.ID, shared.ApprovalApprove, "all expenses")
	return s.Advance(ctx, actor, reportID)
}

// Return sends the whole report back to its submitter as OBSERVED. The
// submitter may edit and resubmit; the next cycle re-enters at the first
// order.
func (s *Service) Return(ctx context.Context, actor shared.Actor, reportID int64, comment string) (Report, error) {
	if strings.TrimSpace(comment) == "" {
		verr := &shared.ValidationError{}
		verr.Add("comment", "required", "returning a report requires a comment")
		return Report{}, verr
	}
	var report Report
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		report, _, err = s.loadGated(ctx, tx, actor, reportID)
		if err != nil {
			return err
		}
		if err := tx.SetReportState(ctx, reportID, StatusObserved, nil, report.Version); err != nil {
			return err
		}
		report.Status = StatusObserved
		report.Index = nil
		report.Version++
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.recordApproval(ctx, reportID, actor.ID, shared.ApprovalReturn, comment)
	s.recordAudit(ctx, actor.ID, "REPORT_RETURN", reportID, map[string]any{"comment": comment})
	if s.notifier != nil {
		_ = s.notifier.ReportReturned(ctx, reportID, report.Name, report.CreatedBy, comment)
	}
	return report, nil
}

// Get returns the full aggregate. Submitters only see their own reports.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Detail, error) {
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if rbac.Role(actor.Role) == rbac.RoleSubmitter && report.CreatedBy != actor.ID {
		return Detail{}, shared.ErrNotFound
	}

	detail := Detail{Report: report}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.store.ExpensesByReport(gctx, id)
		if err != nil {
			return err
		}
		detail.Expenses = items
		return nil
	})
	g.Go(func() error {
		area, err := s.areas.GetArea(gctx, report.AreaID)
		if err != nil {
			return err
		}
		detail.Approvers = area.Approvers.Sorted()
		return nil
	})
	g.Go(func() error {
		if s.approvals == nil {
			return nil
		}
		logs, err := s.approvals.List(gctx, ApprovalModule, shared.ApprovalRef(ApprovalModule, id))
		if err != nil {
			return err
		}
		detail.Approvals = logs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// List returns reports visible to the actor.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) ([]Report, int, error) {
	filters.CompanyID = actor.CompanyID
	if rbac.Role(actor.Role) == rbac.RoleSubmitter {
		filters.CreatedBy = actor.ID
	}
	return s.store.ListReports(ctx, filters)
}

// loadGated fetches the report and applies the gating rule: the actor must
// hold a chain slot at the active order, or be a global approver whose
// routing order matches it.
func (s *Service) loadGated(ctx context.Context, tx TxStore, actor shared.Actor, reportID int64) (Report, areas.Chain, error) {
	report, err := tx.GetReport(ctx, reportID)
	if err != nil {
		return Report{}, nil, err
	}
	if report.Status != StatusInProcess || report.Index == nil {
		return Report{}, nil, &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "report is not under review"}
	}
	area, err := s.areas.GetArea(ctx, report.AreaID)
	if err != nil {
		return Report{}, nil, err
	}
	idx := *report.Index
	if area.Approvers.EntitledAt(idx, actor.ID) {
		return report, area.Approvers, nil
	}
	if rbac.Role(actor.Role) == rbac.RoleGlobalApprover && actor.GlobalOrder != nil && *actor.GlobalOrder == idx {
		return report, area.Approvers, nil
	}
	return Report{}, nil, &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "actor is not the active approver for this step"}
}

func (s *Service) transition(ctx context.Context, tx TxStore, expenseID int64, status expenses.ExpenseStatus, actorID int64, description, comment string) error {
	if err := tx.SetExpenseStatus(ctx, expenseID, status); err != nil {
		return err
	}
	return tx.AppendExpenseHistory(ctx, expenseID, expenses.HistoryEntry{
		Description: description,
		Date:        time.Now(),
		Status:      status,
		Comment:     comment,
		CreatedBy:   actorID,
	})
}

func approvalAction(action Action) shared.ApprovalAction {
	switch action {
	case ActionReject:
		return shared.ApprovalReject
	case ActionRequestReview:
		return shared.ApprovalRequestReview
	default:
		return shared.ApprovalApprove
	}
}

func (s *Service) recordApproval(ctx context.Context, reportID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  ApprovalModule,
		RefID:   shared.ApprovalRef(ApprovalModule, reportID),
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, reportID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "report",
		EntityID: strconv.FormatInt(reportID, 10),
		Meta:     meta,
	})
}
