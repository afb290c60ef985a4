package directory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Get(ctx context.Context, accountID string) (*UserRecord, error)
	GetByEmail(ctx context.Context, emailLower string) (*UserRecord, error)
	// CreateIfAbsent inserts the record and its profile copy unless a record
	// for the account already exists. Returns the stored record and whether
	// a new one was created.
	CreateIfAbsent(ctx context.Context, rec *UserRecord) (*UserRecord, bool, error)
	SetActive(ctx context.Context, accountID string, active bool) error
	SetTenant(ctx context.Context, accountID string, tenantID *uuid.UUID) error
	UpdateDisplayName(ctx context.Context, accountID, displayName string) error
	List(ctx context.Context) ([]*UserRecord, error)
}
