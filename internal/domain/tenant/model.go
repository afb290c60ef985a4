package tenant

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/access"
)

// Tenant maps to the tenants table. One tenant is one clinic's isolated
// data partition; every patient and medical record hangs off its id.
type Tenant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	Settings  Settings  `db:"settings" json:"settings"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Settings is the free-form clinic profile, stored as JSONB.
type Settings struct {
	LogoURL *string `json:"logoUrl,omitempty"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

// SettingsPatch carries a partial settings update; nil fields are left
// untouched.
type SettingsPatch struct {
	Name    *string `json:"name,omitempty"`
	LogoURL *string `json:"logoUrl,omitempty"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

// Member maps to the tenant_members table. Exactly one row per
// (tenant_id, user_id), enforced by a unique constraint; exactly one owner
// per tenant, created with the tenant itself.
type Member struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	TenantID    uuid.UUID   `db:"tenant_id" json:"tenantId"`
	UserID      string      `db:"user_id" json:"userId"`
	Role        access.Role `db:"role" json:"role"`
	Email       string      `db:"email" json:"email"`
	DisplayName string      `db:"display_name" json:"displayName"`
	JoinedAt    time.Time   `db:"joined_at" json:"joinedAt"`
	InvitedBy   *string     `db:"invited_by" json:"invitedBy,omitempty"`
}
