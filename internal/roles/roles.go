// Package roles is the registry of employee roles and their authority order.
package roles

import (
	"errors"
	"fmt"
)

// Role is an employee's role within a company.
type Role string

const (
	CEO           Role = "CEO"
	BranchManager Role = "BRANCH_MANAGER"
	ShiftLeader   Role = "SHIFT_LEADER"
	Staff         Role = "STAFF"
)

// ErrInvalidRole is returned for unknown role strings and for roles that are
// not allowed in a given context (such as inviting a CEO).
var ErrInvalidRole = errors.New("invalid role")

// rank 0 is the highest authority.
var rank = map[Role]int{
	CEO:           0,
	BranchManager: 1,
	ShiftLeader:   2,
	Staff:         3,
}

// All returns every valid role, highest authority first.
func All() []Role {
	return []Role{CEO, BranchManager, ShiftLeader, Staff}
}

// IsValidRole reports whether s names a known role. Matching is exact.
func IsValidRole(s string) bool {
	_, ok := rank[Role(s)]
	return ok
}

// Parse converts s into a Role. Unknown strings are never coerced.
func Parse(s string) (Role, error) {
	if !IsValidRole(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return Role(s), nil
}

// RoleRank returns the authority rank of r, CEO = 0 and increasing downward.
// Unknown roles return -1.
func RoleRank(r Role) int {
	n, ok := rank[r]
	if !ok {
		return -1
	}
	return n
}

func (r Role) IsValid() bool {
	_, ok := rank[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Outranks reports whether r has strictly more authority than other.
func (r Role) Outranks(other Role) bool {
	if !r.IsValid() || !other.IsValid() {
		return false
	}
	return rank[r] < rank[other]
}

// Invitable reports whether r may be granted through an invitation.
func (r Role) Invitable() bool {
	return r.IsValid() && r != CEO
}

// CanCreateInvitations reports whether holders of r may issue invitations.
func (r Role) CanCreateInvitations() bool {
	return r == CEO || r == BranchManager
}

// CanInvite reports whether a holder of r may issue an invitation for target.
// Only roles strictly below the inviter's own rank can be granted.
func (r Role) CanInvite(target Role) bool {
	return r.CanCreateInvitations() && target.Invitable() && r.Outranks(target)
}
