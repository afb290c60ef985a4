// Package access centralizes every permission decision in the system.
// Evaluate is a pure function of already-loaded state; the Resolver does
// the I/O to assemble that state and hands handlers a Grant that is
// threaded explicitly through every service call.
package access

// Role is a tenant membership role.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleStaff    Role = "staff"
	RoleReadOnly Role = "readonly"
)

// Valid reports whether r is one of the three membership roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleStaff || r == RoleReadOnly
}

// Input is a snapshot of the facts a decision derives from. All fields are
// plain values so Evaluate stays free of I/O.
type Input struct {
	Authenticated bool
	SystemAdmin   bool
	UserActive    bool
	HasTenant     bool
	MemberRole    Role // empty when the caller is not a member of the tenant
}

// Decision is the full capability set computed for one caller.
type Decision struct {
	IsAuthenticated     bool `json:"isAuthenticated"`
	IsSystemAdmin       bool `json:"isSystemAdmin"`
	RequiresPurchase    bool `json:"requiresPurchase"`
	RequiresTenantSetup bool `json:"requiresTenantSetup"`
	CanEdit             bool `json:"canEdit"`
	CanManageMembers    bool `json:"canManageMembers"`
}

// Evaluate derives the capability set from the input. Deterministic and
// side-effect free.
func Evaluate(in Input) Decision {
	return Decision{
		IsAuthenticated:     in.Authenticated,
		IsSystemAdmin:       in.Authenticated && in.SystemAdmin,
		RequiresPurchase:    in.Authenticated && !in.UserActive,
		RequiresTenantSetup: in.Authenticated && in.UserActive && !in.HasTenant,
		CanEdit:             in.MemberRole == RoleOwner || in.MemberRole == RoleStaff,
		CanManageMembers:    in.MemberRole == RoleOwner,
	}
}

// State is the caller's position in the account access state machine.
type State int

const (
	StateUnauthenticated State = iota
	StatePending               // signed in, not yet activated
	StateNeedsTenant           // activated, no tenant assigned
	StateActive                // activated with a tenant
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePending:
		return "pending"
	case StateNeedsTenant:
		return "needs_tenant"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// StateOf maps the input onto the state machine, terminal states first.
func StateOf(in Input) State {
	switch {
	case !in.Authenticated:
		return StateUnauthenticated
	case !in.UserActive:
		return StatePending
	case !in.HasTenant:
		return StateNeedsTenant
	default:
		return StateActive
	}
}
