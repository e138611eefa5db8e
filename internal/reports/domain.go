package reports

import (
	"time"

	"github.com/expensa-app/expensa/internal/areas"
	"github.com/expensa-app/expensa/internal/expenses"
	"github.com/expensa-app/expensa/internal/shared"
)

// ReportStatus enumerates report lifecycle states.
type ReportStatus string

const (
	StatusDraft     ReportStatus = "DRAFT"
	StatusInProcess ReportStatus = "IN_PROCESS"
	StatusObserved  ReportStatus = "OBSERVED"
	StatusClosed    ReportStatus = "CLOSED"
)

// Action enumerates the bulk decisions an approver can take on expenses.
type Action string

const (
	ActionApprove       Action = "APPROVE"
	ActionReject        Action = "REJECT"
	ActionRequestReview Action = "REQUEST_REVIEW"
)

// ApprovalModule is the module tag used in the approvals ledger.
const ApprovalModule = "reports"

// Report groups expenses for routing through an area's approval chain.
// Index points at the chain order currently entitled to act; it is only
// meaningful while Status is IN_PROCESS. Version backs optimistic locking:
// every state change bumps it, and a stale write fails with ConflictError.
type Report struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	CompanyID int64        `json:"company_id"`
	AreaID    int64        `json:"area_id"`
	Status    ReportStatus `json:"status"`
	Index     *int         `json:"index,omitempty"`
	Version   int          `json:"version"`
	CreatedBy int64        `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Detail is the aggregate returned to clients: the report, its expenses and
// the area chain so the UI can render advisory gating. The server remains
// the source of truth for who may act.
type Detail struct {
	Report    Report               `json:"report"`
	Expenses  []expenses.Expense   `json:"expenses"`
	Approvers areas.Chain          `json:"approvers"`
	Approvals []shared.ApprovalLog `json:"approvals,omitempty"`
}

// ListFilters narrows report listings.
type ListFilters struct {
	CompanyID int64
	CreatedBy int64
	Status    ReportStatus
	Page      int
	Limit     int
}

// resolved reports whether every expense has reached a terminal per-step
// status, which is the precondition for advancing or closing.
func resolved(items []expenses.Expense) bool {
	if len(items) == 0 {
		return false
	}
	for _, e := range items {
		if !e.Terminal() {
			return false
		}
	}
	return true
}
