package adminrole

import "time"

// Entry maps to the user_roles table. Presence of a row with the admin role
// grants system-admin capability, independent of any tenant membership.
type Entry struct {
	AccountID string    `db:"account_id" json:"accountId"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

const RoleAdmin = "admin"
