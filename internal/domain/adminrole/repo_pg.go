package adminrole

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/clinicflow/internal/apperr"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Get(ctx context.Context, accountID string) (*Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx,
		`SELECT account_id, role, created_at, updated_at FROM user_roles WHERE account_id = $1`,
		accountID,
	).Scan(&e.AccountID, &e.Role, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get role entry: %w", err)
	}
	return &e, nil
}

func (r *repoPG) AnyExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE role = $1)`, RoleAdmin,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe admin existence: %w", err)
	}
	return exists, nil
}

func (r *repoPG) Upsert(ctx context.Context, accountID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (account_id, role)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`,
		accountID, RoleAdmin,
	)
	if err != nil {
		return fmt.Errorf("upsert role entry: %w", err)
	}
	return nil
}
