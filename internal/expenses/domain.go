package expenses

import "time"

// ExpenseStatus enumerates the per-expense lifecycle states.
type ExpenseStatus string

const (
	StatusDraft    ExpenseStatus = "DRAFT"
	StatusInReview ExpenseStatus = "IN_REVIEW"
	StatusApproved ExpenseStatus = "APPROVED"
	StatusRejected ExpenseStatus = "REJECTED"
	StatusInReport ExpenseStatus = "IN_REPORT"
)

// Document types accepted by SUNAT-style receipts.
const (
	DocBoleta         = "BOLETA DE VENTA"
	DocFactura        = "FACTURA ELECTRONICA"
	DocRecibo         = "RECIBO POR HONORARIOS"
	DocTicket         = "TICKET"
	DocNotaCredito    = "NOTA DE CREDITO"
	DocSinComprobante = "SIN COMPROBANTE"
)

// serieRequired lists document types that must carry a serie number.
var serieRequired = map[string]bool{
	DocBoleta:  true,
	DocFactura: true,
}

// suspensionCertThreshold is the total from which a suspension certificate
// is mandatory when no retention applies.
const suspensionCertThreshold = 1500

// FileRefs holds blob-storage references for an expense's documents. The
// service stores and validates URLs only, never file bytes.
type FileRefs struct {
	Receipt        string `json:"receipt"`
	VisaStatement  string `json:"visa_statement,omitempty"`
	SuspensionCert string `json:"suspension_cert,omitempty"`
}

// HistoryEntry is an immutable audit record appended at each status change.
type HistoryEntry struct {
	ID          int64         `json:"id"`
	Description string        `json:"description"`
	Date        time.Time     `json:"date"`
	Status      ExpenseStatus `json:"status"`
	Comment     string        `json:"comment,omitempty"`
	CreatedBy   int64         `json:"created_by"`
}

// Expense is a single reimbursable claim.
type Expense struct {
	ID           int64          `json:"id"`
	RUC          string         `json:"ruc"`
	CompanyName  string         `json:"company_name"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Total        float64        `json:"total"`
	Retention    float64        `json:"retention"`
	Currency     string         `json:"currency"`
	Date         time.Time      `json:"date"`
	TypeDocument string         `json:"type_document"`
	Serie        string         `json:"serie,omitempty"`
	Files        FileRefs       `json:"files"`
	Status       ExpenseStatus  `json:"status"`
	OwnerID      int64          `json:"owner_id"`
	CompanyID    int64          `json:"company_id"`
	ReportID     *int64         `json:"report_id,omitempty"`
	History      []HistoryEntry `json:"history,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Terminal reports whether the expense has reached a per-step terminal
// status within the current report cycle.
func (e Expense) Terminal() bool {
	return e.Status == StatusApproved || e.Status == StatusRejected
}

// ExpenseInput carries submitter-provided fields for create and edit.
type ExpenseInput struct {
	RUC          string    `json:"ruc"`
	CompanyName  string    `json:"company_name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Total        float64   `json:"total"`
	Retention    float64   `json:"retention"`
	Currency     string    `json:"currency"`
	Date         time.Time `json:"date"`
	TypeDocument string    `json:"type_document"`
	Serie        string    `json:"serie"`
	Files        FileRefs  `json:"files"`
}
