package adminrole

import "context"

type Repository interface {
	Get(ctx context.Context, accountID string) (*Entry, error)
	// AnyExists probes for at least one admin entry. Implementations must
	// keep this an existence check, never a full count.
	AnyExists(ctx context.Context) (bool, error)
	// Upsert grants the admin role. Idempotent.
	Upsert(ctx context.Context, accountID string) error
}
