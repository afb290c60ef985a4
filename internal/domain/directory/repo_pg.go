package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
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

const userCols = `account_id, email, email_lower, display_name, photo_url, is_active, tenant_id, created_at`

func (r *repoPG) Get(ctx context.Context, accountID string) (*UserRecord, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE account_id = $1`, accountID))
}

func (r *repoPG) GetByEmail(ctx context.Context, emailLower string) (*UserRecord, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email_lower = $1`, emailLower))
}

func (r *repoPG) CreateIfAbsent(ctx context.Context, rec *UserRecord) (*UserRecord, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// ON CONFLICT DO NOTHING keeps the first write's is_active / tenant_id /
	// created_at; a second call must never overwrite them.
	tag, err := tx.Exec(ctx, `
		INSERT INTO users (account_id, email, email_lower, display_name, photo_url, is_active)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (account_id) DO NOTHING`,
		rec.AccountID, rec.Email, rec.EmailLower, rec.DisplayName, rec.PhotoURL,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	created := tag.RowsAffected() > 0

	if created {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_profiles (account_id, email, email_lower, display_name, photo_url)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (account_id) DO NOTHING`,
			rec.AccountID, rec.Email, rec.EmailLower, rec.DisplayName, rec.PhotoURL,
		); err != nil {
			return nil, false, fmt.Errorf("insert profile: %w", err)
		}
	}

	stored, err := scanUser(tx.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE account_id = $1`, rec.AccountID))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return stored, created, nil
}

func (r *repoPG) SetActive(ctx context.Context, accountID string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2 WHERE account_id = $1`, accountID, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) SetTenant(ctx context.Context, accountID string, tenantID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET tenant_id = $2 WHERE account_id = $1`, accountID, tenantID)
	if err != nil {
		return fmt.Errorf("set tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateDisplayName(ctx context.Context, accountID, displayName string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE users SET display_name = $2 WHERE account_id = $1`, accountID, displayName)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE user_profiles SET display_name = $2 WHERE account_id = $1`, accountID, displayName); err != nil {
		return fmt.Errorf("update profile display name: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *repoPG) List(ctx context.Context) ([]*UserRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userCols+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*UserRecord
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.AccountID, &u.Email, &u.EmailLower, &u.DisplayName, &u.PhotoURL, &u.IsActive, &u.TenantID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func scanUserRows(rows pgx.Rows) (*UserRecord, error) {
	var u UserRecord
	err := rows.Scan(&u.AccountID, &u.Email, &u.EmailLower, &u.DisplayName, &u.PhotoURL, &u.IsActive, &u.TenantID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
