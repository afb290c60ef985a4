package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/access"
)

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByOwner(ctx context.Context, ownerID string) (*Tenant, error)
	Create(ctx context.Context, t *Tenant) error
	UpdateSettings(ctx context.Context, id uuid.UUID, patch SettingsPatch) error

	Members(ctx context.Context, tenantID uuid.UUID) ([]*Member, error)
	GetMember(ctx context.Context, memberID uuid.UUID) (*Member, error)
	MemberOf(ctx context.Context, tenantID uuid.UUID, userID string) (*Member, error)
	AddMember(ctx context.Context, m *Member) error
	UpdateMemberRole(ctx context.Context, memberID uuid.UUID, role access.Role) error
	RemoveMember(ctx context.Context, memberID uuid.UUID) error
}
