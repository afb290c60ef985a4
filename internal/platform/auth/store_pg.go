package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/clinicflow/internal/apperr"
)

type accountStorePG struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates the pgx-backed account store.
func NewAccountStore(pool *pgxpool.Pool) AccountStore {
	return &accountStorePG{pool: pool}
}

const accountCols = `id, email, email_lower, display_name, password_hash, disabled, created_at`

func (s *accountStorePG) Create(ctx context.Context, row *accountRow) error {
	row.ID = uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, email_lower, display_name, password_hash, disabled)
		VALUES ($1, $2, $3, $4, $5, false)`,
		row.ID, row.Email, row.EmailLower, row.DisplayName, row.PasswordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.ErrEmailInUse
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *accountStorePG) GetByEmail(ctx context.Context, emailLower string) (*accountRow, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE email_lower = $1`, emailLower))
}

func (s *accountStorePG) GetByID(ctx context.Context, id uuid.UUID) (*accountRow, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func scanAccount(row pgx.Row) (*accountRow, error) {
	var a accountRow
	err := row.Scan(&a.ID, &a.Email, &a.EmailLower, &a.DisplayName, &a.PasswordHash, &a.Disabled, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
