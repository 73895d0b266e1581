package model

// Role is the privilege level attached to a user, both as an identity
// claim and on the profile document.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleModerator  Role = "Moderator"
	RoleFinance    Role = "Finance"
	RoleCustomer   Role = "Customer"
	RoleDelivery   Role = "Delivery"
	RoleProduction Role = "Production"
)

var knownRoles = map[Role]struct{}{
	RoleAdmin:      {},
	RoleModerator:  {},
	RoleFinance:    {},
	RoleCustomer:   {},
	RoleDelivery:   {},
	RoleProduction: {},
}

// ParseRole returns the role for s, or false if s is not a recognized role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := knownRoles[r]
	return r, ok
}
