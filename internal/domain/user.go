package domain

import "time"

// Role is the single authorization role carried by a user account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgent    Role = "agent"
	RoleReporter Role = "reporter"
)

// User is the domain model for every principal: reporters who file tickets
// as well as agents and admins who work them.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user holds any of the given roles.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}
