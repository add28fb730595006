package domain

import (
	"math"
	"slices"
)

// Permissions carried by a caller's session roles.
const (
	PermCreateUser = "user:create"
)

// Caller is the identity a request acts as. The zero value is anonymous.
type Caller struct {
	ID          int64
	Username    string
	Permissions []string
	SessionID   string
}

// Anonymous returns the caller used when no valid session is presented.
func Anonymous() Caller {
	return Caller{}
}

// Authenticated reports whether the caller carries a user identity.
func (c Caller) Authenticated() bool {
	return c.ID > 0
}

// Can reports whether the caller holds perm.
func (c Caller) Can(perm string) bool {
	return slices.Contains(c.Permissions, perm)
}

// System returns the identity used by maintenance tools such as the demo
// seeder. It may create users and owns no records.
func System() Caller {
	return Caller{ID: math.MaxInt64, Username: "system", Permissions: []string{PermCreateUser}}
}
