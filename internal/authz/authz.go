// Package authz holds the static role-to-tool permission table.
//
// The table is an init-time constant: there is no runtime mutation path.
// Each role's set is a strict superset of the role below it
// (Coordinator ⊃ DoorStaff ⊃ Reader).
package authz

import "github.com/expokossodo/expogate/internal/model"

var readerTools = []string{
	model.ToolListEvents,
	model.ToolListRegistrants,
	model.ToolGetCapacity,
	model.ToolGetStatistics,
	model.ToolSearchRegistrant,
	model.ToolGetRoomEventMap,
}

var doorStaffTools = append(append([]string{}, readerTools...),
	model.ToolConfirmAttendance,
)

var coordinatorTools = append(append([]string{}, doorStaffTools...),
	model.ToolDetailedStatistics,
)

var rolePermissions = map[model.Role][]string{
	model.RoleReader:      readerTools,
	model.RoleDoorStaff:   doorStaffTools,
	model.RoleCoordinator: coordinatorTools,
}

var roleSets = func() map[model.Role]map[string]bool {
	sets := make(map[model.Role]map[string]bool, len(rolePermissions))
	for role, tools := range rolePermissions {
		set := make(map[string]bool, len(tools))
		for _, t := range tools {
			set[t] = true
		}
		sets[role] = set
	}
	return sets
}()

// Allowed reports whether role may invoke tool. Pure lookup: no I/O,
// no mutable state.
func Allowed(role model.Role, tool string) bool {
	return roleSets[role][tool]
}

// PermissionsFor returns a copy of role's ordered tool-name set.
func PermissionsFor(role model.Role) []string {
	tools := rolePermissions[role]
	out := make([]string, len(tools))
	copy(out, tools)
	return out
}
