package model

import "fmt"

// Role is an operator role. Roles are strictly ordered: each higher role
// is permitted everything the lower ones are.
type Role string

const (
	RoleReader      Role = "READER"
	RoleDoorStaff   Role = "DOOR_STAFF"
	RoleCoordinator Role = "COORDINATOR"
)

// ParseRole validates a role string from an external source.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleReader, RoleDoorStaff, RoleCoordinator:
		return Role(s), nil
	default:
		return "", fmt.Errorf("model: unknown role %q", s)
	}
}

// RoleRank orders roles for comparison; higher ranks subsume lower ones.
// Unknown roles rank below every known role.
func RoleRank(r Role) int {
	switch r {
	case RoleReader:
		return 1
	case RoleDoorStaff:
		return 2
	case RoleCoordinator:
		return 3
	default:
		return 0
	}
}

// RoleAtLeast reports whether r holds at least the privileges of min.
func RoleAtLeast(r, min Role) bool {
	return RoleRank(r) >= RoleRank(min)
}

// Principal is an authenticated operator. Permissions are never stored on
// the principal: they are derived from the role at each call.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
