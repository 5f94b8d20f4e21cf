package enum

// ── Group A: Actors (CHECK constrained in DB, except System) ──

const (
	RoleAdmin    = "admin"
	RoleChef     = "chef"
	RoleCustomer = "customer"

	// RoleSystem is never stored on a user row. It identifies internal callers
	// such as scheduled jobs.
	RoleSystem = "system"
)

// ── Group B: Entity kinds ──

const (
	KindOrder       = "order"
	KindReservation = "reservation"
)

// ── Group C: Configurable labels (no DB constraint) ──

const (
	TableTypeStandard = "standard"
	TableTypeBooth    = "booth"
	TableTypeOutdoor  = "outdoor"
	TableTypePrivate  = "private"
)

const (
	ChannelInApp    = "in_app"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// IsStaffRole reports whether role belongs to restaurant staff.
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleChef
}

// IsValidUserRole reports whether role may be stored on a user account.
func IsValidUserRole(role string) bool {
	switch role {
	case RoleAdmin, RoleChef, RoleCustomer:
		return true
	}
	return false
}

// IsValidTableType reports whether t is a known dining table type.
func IsValidTableType(t string) bool {
	switch t {
	case TableTypeStandard, TableTypeBooth, TableTypeOutdoor, TableTypePrivate:
		return true
	}
	return false
}
