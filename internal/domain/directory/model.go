package directory

import (
	"time"

	"github.com/google/uuid"
)

// UserRecord maps to the users table, keyed by the opaque account id from
// the identity provider. New records always start inactive with no tenant;
// activation is an admin action and tenant assignment happens via bootstrap
// or invite.
type UserRecord struct {
	AccountID   string     `db:"account_id" json:"accountId"`
	Email       string     `db:"email" json:"email"`
	EmailLower  string     `db:"email_lower" json:"-"`
	DisplayName string     `db:"display_name" json:"displayName"`
	PhotoURL    *string    `db:"photo_url" json:"photoUrl,omitempty"`
	IsActive    bool       `db:"is_active" json:"isActive"`
	TenantID    *uuid.UUID `db:"tenant_id" json:"tenantId,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// Profile maps to the user_profiles table, the denormalized copy kept for
// directory lookups.
type Profile struct {
	AccountID   string    `db:"account_id" json:"accountId"`
	Email       string    `db:"email" json:"email"`
	EmailLower  string    `db:"email_lower" json:"-"`
	DisplayName string    `db:"display_name" json:"displayName"`
	PhotoURL    *string   `db:"photo_url" json:"photoUrl,omitempty"`
	Bio         *string   `db:"bio" json:"bio,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
