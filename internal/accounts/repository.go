package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Repository defines persistence operations over the account table.
type Repository interface {
	Create(ctx context.Context, name, email, passwordHash string) (*Principal, error)
	FindByID(ctx context.Context, id int64) (*Principal, error)
	// FindByEmail includes the password verifier; only login reads it.
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	List(ctx context.Context) ([]Principal, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Principal, error)
	// BulkSetStatus mutates every existing id in the set and returns exactly
	// the principals that were found and updated.
	BulkSetStatus(ctx context.Context, ids []int64, status Status) ([]Principal, error)
	// BulkDelete removes every existing id in the set and returns the ids
	// that were actually deleted.
	BulkDelete(ctx context.Context, ids []int64) ([]int64, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const principalColumns = `id, name, email, password_hash, status, last_login, created_at`

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Status, &p.LastLoginAt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new account. A duplicate email surfaces as
// shared.ErrEmailTaken, not a generic failure.
func (r *PGRepository) Create(ctx context.Context, name, email, passwordHash string) (*Principal, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)
		RETURNING `+principalColumns, name, email, passwordHash)
	p, err := scanPrincipal(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrEmailTaken
		}
		return nil, err
	}
	return p, nil
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Principal, error) {
	return scanPrincipal(r.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM users WHERE id = $1`, id))
}

func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return scanPrincipal(r.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM users WHERE email = $1`, email))
}

// List returns all accounts, most recently seen first.
func (r *PGRepository) List(ctx context.Context) ([]Principal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+principalColumns+` FROM users
		ORDER BY last_login DESC NULLS LAST, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrincipals(rows)
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status Status) (*Principal, error) {
	return scanPrincipal(r.pool.QueryRow(ctx, `
		UPDATE users SET status = $2 WHERE id = $1
		RETURNING `+principalColumns, id, status))
}

func (r *PGRepository) BulkSetStatus(ctx context.Context, ids []int64, status Status) ([]Principal, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE users SET status = $2 WHERE id = ANY($1)
		RETURNING `+principalColumns, ids, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrincipals(rows)
}

func (r *PGRepository) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM users WHERE id = ANY($1) RETURNING id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deleted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *PGRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	return err
}

func collectPrincipals(rows pgx.Rows) ([]Principal, error) {
	var out []Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Status, &p.LastLoginAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Repository = (*PGRepository)(nil)
