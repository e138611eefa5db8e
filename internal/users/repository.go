package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expensa-app/expensa/internal/platform/httpx"
	"github.com/expensa-app/expensa/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, company_id, global_order, password_hash, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CompanyID, &u.GlobalOrder, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetUser returns a single account by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	return scanUser(row)
}

// FindByEmail returns a single account by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	return scanUser(row)
}

// ListUsers returns all accounts for a company; companyID 0 lists everyone.
func (r *Repository) ListUsers(ctx context.Context, companyID int64) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	args := []any{}
	if companyID != 0 {
		query = `SELECT ` + userColumns + ` FROM users WHERE company_id=$1 ORDER BY id`
		args = append(args, companyID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser inserts an account and returns its id.
func (r *Repository) CreateUser(ctx context.Context, u User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, role, company_id, global_order, password_hash, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		u.Email, u.Name, string(u.Role), u.CompanyID, u.GlobalOrder, u.PasswordHash, u.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, httpx.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// UpdateUser applies mutable fields.
func (r *Repository) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET name=COALESCE(NULLIF($2,''), name), role=COALESCE(NULLIF($3,''), role), global_order=$4, is_active=COALESCE($5, is_active), updated_at=NOW() WHERE id=$1`,
		id, in.Name, string(in.Role), in.GlobalOrder, in.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// EmailsByIDs resolves notification recipients. Inactive accounts are
// skipped silently.
func (r *Repository) EmailsByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, email FROM users WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	emails := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, err
		}
		emails[id] = email
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}

// FindActor resolves a user into the request actor shape.
func (r *Repository) FindActor(ctx context.Context, userID int64) (shared.Actor, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	if !u.IsActive {
		return shared.Actor{}, shared.ErrNotFound
	}
	return shared.Actor{ID: u.ID, Role: string(u.Role), CompanyID: u.CompanyID, GlobalOrder: u.GlobalOrder}, nil
}
