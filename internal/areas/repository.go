package areas

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expensa-app/expensa/internal/shared"
)

// RepositoryPort describes persistence used by the Service.
type RepositoryPort interface {
	GetArea(ctx context.Context, id int64) (Area, error)
	ListAreas(ctx context.Context, companyID int64) ([]Area, error)
	CreateArea(ctx context.Context, area Area) (int64, error)
	UpdateArea(ctx context.Context, id int64, name string, status AreaStatus) error
	InsertApprover(ctx context.Context, areaID int64, slot ApproverSlot) error
	DeleteApprover(ctx context.Context, areaID, approverID int64) (bool, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetArea returns an area with its approver chain sorted ascending.
func (r *Repository) GetArea(ctx context.Context, id int64) (Area, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, company_id, status, created_at, updated_at FROM areas WHERE id=$1`, id)
	var area Area
	if err := row.Scan(&area.ID, &area.Name, &area.CompanyID, &area.Status, &area.CreatedAt, &area.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Area{}, shared.ErrNotFound
		}
		return Area{}, err
	}
	chain, err := r.loadChain(ctx, id)
	if err != nil {
		return Area{}, err
	}
	area.Approvers = chain
	return area, nil
}

func (r *Repository) loadChain(ctx context.Context, areaID int64) (Chain, error) {
	rows, err := r.pool.Query(ctx, `SELECT ord, approver_id FROM area_approvers WHERE area_id=$1 ORDER BY ord ASC`, areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chain Chain
	for rows.Next() {
		var slot ApproverSlot
		if err := rows.Scan(&slot.Order, &slot.ApproverID); err != nil {
			return nil, err
		}
		chain = append(chain, slot)
	}
	return chain, rows.Err()
}

// ListAreas returns company areas with their chains.
func (r *Repository) ListAreas(ctx context.Context, companyID int64) ([]Area, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, company_id, status, created_at, updated_at FROM areas WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Area
	for rows.Next() {
		var area Area
		if err := rows.Scan(&area.ID, &area.Name, &area.CompanyID, &area.Status, &area.CreatedAt, &area.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, area)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		chain, err := r.loadChain(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Approvers = chain
	}
	return out, nil
}

// CreateArea inserts a new area.
func (r *Repository) CreateArea(ctx context.Context, area Area) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO areas (name, company_id, status, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id`, area.Name, area.CompanyID, string(area.Status)).Scan(&id)
	return id, err
}

// UpdateArea renames an area or flips its status.
func (r *Repository) UpdateArea(ctx context.Context, id int64, name string, status AreaStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE areas SET name=COALESCE(NULLIF($2,''), name), status=COALESCE(NULLIF($3,''), status), updated_at=NOW() WHERE id=$1`,
		id, name, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// InsertApprover appends a chain slot. The unique constraint on
// (area_id, approver_id) backs the duplicate check under concurrency.
func (r *Repository) InsertApprover(ctx context.Context, areaID int64, slot ApproverSlot) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO area_approvers (area_id, ord, approver_id, created_at) VALUES ($1, $2, $3, NOW())`,
		areaID, slot.Order, slot.ApproverID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &shared.DuplicateApproverError{AreaID: areaID, UserID: slot.ApproverID}
		}
		return err
	}
	return nil
}

// DeleteApprover removes a slot without renumbering the remaining orders.
func (r *Repository) DeleteApprover(ctx context.Context, areaID, approverID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM area_approvers WHERE area_id=$1 AND approver_id=$2`, areaID, approverID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
