// Package auth is the identity provider adapter. The standalone
// implementation keeps credentials in the accounts table, hashes secrets
// with bcrypt, and issues HS256 bearer tokens. Everything downstream sees
// only the Account value resolved by the middleware.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Account is the external identity as the rest of the system sees it.
type Account struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// accountRow maps to the accounts table.
type accountRow struct {
	ID           uuid.UUID
	Email        string
	EmailLower   string
	DisplayName  string
	PasswordHash []byte
	Disabled     bool
	CreatedAt    time.Time
}

// AccountStore persists credentials for the standalone provider.
type AccountStore interface {
	Create(ctx context.Context, row *accountRow) error
	GetByEmail(ctx context.Context, emailLower string) (*accountRow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*accountRow, error)
}
