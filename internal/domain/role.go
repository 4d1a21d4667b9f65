package domain

import "slices"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleSeller   = "seller"
)

func ValidRoles() []string {
	return []string{RoleCustomer, RoleAdmin, RoleSeller}
}

// IsSelfAssignableRole reports whether role may be chosen at signup.
// Admins are only ever promoted.
func IsSelfAssignableRole(role string) bool {
	return role == RoleCustomer || role == RoleSeller
}

func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles(), role)
}
