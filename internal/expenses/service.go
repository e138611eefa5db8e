package expenses

import (
	"context"
	"strconv"
	"time"

	"github.com/expensa-app/expensa/internal/rbac"
	"github.com/expensa-app/expensa/internal/shared"
)

// RepositoryPort describes persistence used by the Service.
type RepositoryPort interface {
	Create(ctx context.Context, e Expense) (int64, error)
	Get(ctx context.Context, id int64) (Expense, error)
	GetMany(ctx context.Context, ids []int64) ([]Expense, error)
	ListByOwner(ctx context.Context, ownerID int64, status ExpenseStatus) ([]Expense, error)
	ListByReport(ctx context.Context, reportID int64) ([]Expense, error)
	UpdateFields(ctx context.Context, id int64, in ExpenseInput) error
	SetStatus(ctx context.Context, id int64, status ExpenseStatus) error
	AppendHistory(ctx context.Context, expenseID int64, entry HistoryEntry) error
}

// FileChecker validates that an uploaded document reference resolves.
type FileChecker interface {
	CheckRef(ctx context.Context, ref string) error
}

// AuditPort records ledger changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the expense ledger: submitter-side creation and correction.
// Approval-cycle status changes go through the report router, never here.
type Service struct {
	repo  RepositoryPort
	files FileChecker
	audit AuditPort
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, files FileChecker, audit AuditPort) *Service {
	return &Service{repo: repo, files: files, audit: audit}
}

// Create registers a new expense in DRAFT with its first history entry.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in ExpenseInput) (Expense, error) {
	if err := ValidateInput(in); err != nil {
		return Expense{}, err
	}
	if err := s.checkFiles(ctx, in.Files); err != nil {
		return Expense{}, err
	}
	e := Expense{
		RUC:          in.RUC,
		CompanyName:  in.CompanyName,
		Description:  in.Description,
		Category:     in.Category,
		Total:        in.Total,
		Retention:    in.Retention,
		Currency:     in.Currency,
		Date:         in.Date,
		TypeDocument: in.TypeDocument,
		Serie:        in.Serie,
		Files:        in.Files,
		Status:       StatusDraft,
		OwnerID:      actor.ID,
		CompanyID:    actor.CompanyID,
	}
	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return Expense{}, err
	}
	e.ID = id
	entry := HistoryEntry{
		Description: "expense registered",
		Date:        time.Now(),
		Status:      StatusDraft,
		CreatedBy:   actor.ID,
	}
	if err := s.repo.AppendHistory(ctx, id, entry); err != nil {
		return Expense{}, err
	}
	e.History = []HistoryEntry{entry}
	s.recordAudit(ctx, actor.ID, "EXPENSE_CREATE", id, map[string]any{"total": e.Total, "currency": e.Currency})
	return e, nil
}

// Get returns an expense with history. Submitters only see their own.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return Expense{}, err
	}
	if rbac.Role(actor.Role) == rbac.RoleSubmitter && e.OwnerID != actor.ID {
		return Expense{}, shared.ErrNotFound
	}
	return e, nil
}

// List returns the actor's own expenses, optionally filtered by status.
func (s *Service) List(ctx context.Context, actor shared.Actor, status ExpenseStatus) ([]Expense, error) {
	return s.repo.ListByOwner(ctx, actor.ID, status)
}

// Edit updates a DRAFT expense in place. Editing an IN_REVIEW expense is the
// correction path: the fixed expense resubmits straight back into its report's
// pending set at the current step, so the report index never moves.
func (s *Service) Edit(ctx context.Context, actor shared.Actor, id int64, in ExpenseInput) (Expense, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Expense{}, err
	}
	if current.OwnerID != actor.ID {
		return Expense{}, &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "only the owning submitter may edit an expense"}
	}
	if current.Status != StatusDraft && current.Status != StatusInReview {
		return Expense{}, &shared.ForbiddenTransitionError{ActorID: actor.ID, Reason: "expense can only be edited while DRAFT or IN_REVIEW"}
	}
	if err := ValidateInput(in); err != nil {
		return Expense{}, err
	}
	if err := s.checkFiles(ctx, in.Files); err != nil {
		return Expense{}, err
	}
	if err := s.repo.UpdateFields(ctx, id, in); err != nil {
		return Expense{}, err
	}
	if current.Status == StatusInReview {
		// Resubmission into the report's pending set only makes sense while
		// the expense is still attached; a detached one falls back to DRAFT.
		next := StatusDraft
		description := "expense corrected"
		if current.ReportID != nil {
			next = StatusInReport
			description = "expense corrected and resubmitted"
		}
		if err := s.repo.SetStatus(ctx, id, next); err != nil {
			return Expense{}, err
		}
		entry := HistoryEntry{
			Description: description,
			Date:        time.Now(),
			Status:      next,
			CreatedBy:   actor.ID,
		}
		if err := s.repo.AppendHistory(ctx, id, entry); err != nil {
			return Expense{}, err
		}
	}
	s.recordAudit(ctx, actor.ID, "EXPENSE_EDIT", id, map[string]any{"previous_status": string(current.Status)})
	return s.repo.Get(ctx, id)
}

// Transition rejects every direct status change. Expense statuses move only
// through the report router while a report step is active.
func (s *Service) Transition(ctx context.Context, actor shared.Actor, id int64, status ExpenseStatus) error {
	return &shared.ForbiddenTransitionError{
		ActorID: actor.ID,
		Reason:  "expense status changes only through report approval actions",
	}
}

func (s *Service) checkFiles(ctx context.Context, refs FileRefs) error {
	if s.files == nil {
		return nil
	}
	verr := &shared.ValidationError{}
	check := func(field, ref string) {
		if ref == "" {
			return
		}
		if err := s.files.CheckRef(ctx, ref); err != nil {
			verr.Add(field, "reachable", "file reference could not be resolved")
		}
	}
	check("files.receipt", refs.Receipt)
	check("files.visa_statement", refs.VisaStatement)
	check("files.suspension_cert", refs.SuspensionCert)
	if verr.HasViolations() {
		return verr
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, expenseID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "expense",
		EntityID: strconv.FormatInt(expenseID, 10),
		Meta:     meta,
	})
}
