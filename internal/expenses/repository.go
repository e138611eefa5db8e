package expenses

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/expensa-app/expensa/internal/shared"
)

// DB abstracts pgxpool.Pool and pgx.Tx so the same queries run standalone
// or inside a report transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db DB
}

// NewRepository constructs a repository over a pool or open transaction.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const expenseColumns = `id, ruc, company_name, description, category, total, retention, currency, expense_date,
type_document, serie, receipt_url, visa_statement_url, suspension_cert_url, status, owner_id, company_id, report_id,
created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.RUC, &e.CompanyName, &e.Description, &e.Category, &e.Total, &e.Retention,
		&e.Currency, &e.Date, &e.TypeDocument, &e.Serie, &e.Files.Receipt, &e.Files.VisaStatement,
		&e.Files.SuspensionCert, &e.Status, &e.OwnerID, &e.CompanyID, &e.ReportID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, shared.ErrNotFound
		}
		return Expense{}, err
	}
	return e, nil
}

// Create inserts a new expense and returns its id.
func (r *Repository) Create(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO expenses
(ruc, company_name, description, category, total, retention, currency, expense_date, type_document, serie,
 receipt_url, visa_statement_url, suspension_cert_url, status, owner_id, company_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW()) RETURNING id`,
		e.RUC, e.CompanyName, e.Description, e.Category, e.Total, e.Retention, e.Currency, e.Date,
		e.TypeDocument, e.Serie, e.Files.Receipt, e.Files.VisaStatement, e.Files.SuspensionCert,
		string(e.Status), e.OwnerID, e.CompanyID).Scan(&id)
	return id, err
}

// Get returns an expense with its full history.
func (r *Repository) Get(ctx context.Context, id int64) (Expense, error) {
	e, err := scanExpense(r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1`, id))
	if err != nil {
		return Expense{}, err
	}
	history, err := r.History(ctx, id)
	if err != nil {
		return Expense{}, err
	}
	e.History = history
	return e, nil
}

// GetMany returns the expenses for the given ids, without history.
func (r *Repository) GetMany(ctx context.Context, ids []int64) ([]Expense, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ListByOwner returns a submitter's expenses, optionally filtered by status.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64, status ExpenseStatus) ([]Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE owner_id=$1`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	query += ` ORDER BY expense_date DESC, id DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ListByReport returns every expense attached to a report.
func (r *Repository) ListByReport(ctx context.Context, reportID int64) ([]Expense, error) {
	rows, err := r.db.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE report_id=$1 ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenses(rows)
}

func collectExpenses(rows pgx.Rows) ([]Expense, error) {
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateFields overwrites the submitter-editable fields.
func (r *Repository) UpdateFields(ctx context.Context, id int64, in ExpenseInput) error {
	tag, err := r.db.Exec(ctx, `UPDATE expenses SET
ruc=$2, company_name=$3, description=$4, category=$5, total=$6, retention=$7, currency=$8, expense_date=$9,
type_document=$10, serie=$11, receipt_url=$12, visa_statement_url=$13, suspension_cert_url=$14, updated_at=NOW()
WHERE id=$1`,
		id, in.RUC, in.CompanyName, in.Description, in.Category, in.Total, in.Retention, in.Currency, in.Date,
		in.TypeDocument, in.Serie, in.Files.Receipt, in.Files.VisaStatement, in.Files.SuspensionCert)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetStatus updates the lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status ExpenseStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE expenses SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetReport attaches or detaches the expense from a report.
func (r *Repository) SetReport(ctx context.Context, id int64, reportID *int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE expenses SET report_id=$2, updated_at=NOW() WHERE id=$1`, id, reportID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AppendHistory writes one immutable history entry for an expense.
func (r *Repository) AppendHistory(ctx context.Context, expenseID int64, entry HistoryEntry) error {
	at := entry.Date
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO expense_history (expense_id, description, entry_date, status, comment, created_by)
VALUES ($1,$2,$3,$4,$5,$6)`, expenseID, entry.Description, at, string(entry.Status), entry.Comment, entry.CreatedBy)
	return err
}

// History returns the append-only trail ordered oldest first.
func (r *Repository) History(ctx context.Context, expenseID int64) ([]HistoryEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, description, entry_date, status, comment, created_by
FROM expense_history WHERE expense_id=$1 ORDER BY entry_date ASC, id ASC`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.Description, &h.Date, &h.Status, &h.Comment, &h.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
