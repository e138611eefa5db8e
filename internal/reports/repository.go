package reports

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expensa-app/expensa/internal/expenses"
	"github.com/expensa-app/expensa/internal/shared"
)

// TxStore exposes the operations a router action performs atomically.
// Either every expense transition plus the report state update commits
// together, or nothing changes.
type TxStore interface {
	GetReport(ctx context.Context, id int64) (Report, error)
	CreateReport(ctx context.Context, r Report) (int64, error)
	UpdateReportName(ctx context.Context, id int64, name string, expectedVersion int) error
	SetReportState(ctx context.Context, id int64, status ReportStatus, index *int, expectedVersion int) error

	ExpensesByIDs(ctx context.Context, ids []int64) ([]expenses.Expense, error)
	ExpensesByReport(ctx context.Context, reportID int64) ([]expenses.Expense, error)
	SetExpenseStatus(ctx context.Context, id int64, status expenses.ExpenseStatus) error
	SetExpenseReport(ctx context.Context, id int64, reportID *int64) error
	AppendExpenseHistory(ctx context.Context, expenseID int64, entry expenses.HistoryEntry) error
}

// Store is the persistence surface the Service depends on.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetReport(ctx context.Context, id int64) (Report, error)
	ListReports(ctx context.Context, filters ListFilters) ([]Report, int, error)
	ExpensesByReport(ctx context.Context, reportID int64) ([]expenses.Expense, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx       pgx.Tx
	expenses *expenses.Repository
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx, expenses: expenses.NewRepository(tx)}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const reportColumns = `id, name, company_id, area_id, status, step_index, version, created_by, created_at, updated_at`

func scanReport(row pgx.Row) (Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.Name, &rep.CompanyID, &rep.AreaID, &rep.Status, &rep.Index,
		&rep.Version, &rep.CreatedBy, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, shared.ErrNotFound
		}
		return Report{}, err
	}
	return rep, nil
}

// GetReport returns a report by id.
func (r *Repository) GetReport(ctx context.Context, id int64) (Report, error) {
	return scanReport(r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=$1`, id))
}

// ListReports returns filtered reports with a total count.
func (r *Repository) ListReports(ctx context.Context, filters ListFilters) ([]Report, int, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM reports WHERE 1=1`
	var args []any
	idx := 1
	addFilter := func(clause string, value any) {
		query += clause
		countQuery += clause
		args = append(args, value)
		idx++
	}
	if filters.CompanyID > 0 {
		addFilter(` AND company_id=$`+strconv.Itoa(idx), filters.CompanyID)
	}
	if filters.CreatedBy > 0 {
		addFilter(` AND created_by=$`+strconv.Itoa(idx), filters.CreatedBy)
	}
	if filters.Status != "" {
		addFilter(` AND status=$`+strconv.Itoa(idx), string(filters.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(idx) + ` OFFSET $` + strconv.Itoa(idx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}

// ExpensesByReport loads a report's expenses outside a transaction.
func (r *Repository) ExpensesByReport(ctx context.Context, reportID int64) ([]expenses.Expense, error) {
	return expenses.NewRepository(r.pool).ListByReport(ctx, reportID)
}

func (t *txRepo) GetReport(ctx context.Context, id int64) (Report, error) {
	return scanReport(t.tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=$1`, id))
}

func (t *txRepo) CreateReport(ctx context.Context, rep Report) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO reports (name, company_id, area_id, status, step_index, version, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,1,$6,NOW(),NOW()) RETURNING id`,
		rep.Name, rep.CompanyID, rep.AreaID, string(rep.Status), rep.Index, rep.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateReportName(ctx context.Context, id int64, name string, expectedVersion int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE reports SET name=$2, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$3`, id, name, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return conflictOrMissing(ctx, t.tx, id)
	}
	return nil
}

// SetReportState applies the version-checked state update. A zero row count
// means another caller won the race since the report was read.
func (t *txRepo) SetReportState(ctx context.Context, id int64, status ReportStatus, index *int, expectedVersion int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE reports SET status=$2, step_index=$3, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$4`, id, string(status), index, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return conflictOrMissing(ctx, t.tx, id)
	}
	return nil
}

func conflictOrMissing(ctx context.Context, tx pgx.Tx, id int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT true FROM reports WHERE id=$1`, id).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return err
	}
	return &shared.ConflictError{Entity: "report", ID: id}
}

func (t *txRepo) ExpensesByIDs(ctx context.Context, ids []int64) ([]expenses.Expense, error) {
	return t.expenses.GetMany(ctx, ids)
}

func (t *txRepo) ExpensesByReport(ctx context.Context, reportID int64) ([]expenses.Expense, error) {
	return t.expenses.ListByReport(ctx, reportID)
}

func (t *txRepo) SetExpenseStatus(ctx context.Context, id int64, status expenses.ExpenseStatus) error {
	return t.expenses.SetStatus(ctx, id, status)
}

func (t *txRepo) SetExpenseReport(ctx context.Context, id int64, reportID *int64) error {
	return t.expenses.SetReport(ctx, id, reportID)
}

func (t *txRepo) AppendExpenseHistory(ctx context.Context, expenseID int64, entry expenses.HistoryEntry) error {
	return t.expenses.AppendHistory(ctx, expenseID, entry)
}
