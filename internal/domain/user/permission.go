package user

type Permission string

const (
	// Attendance
	PermissionAttendanceViewOwn  Permission = "attendance.view_own"
	PermissionAttendanceClock    Permission = "attendance.clock"
	PermissionAttendanceViewTeam Permission = "attendance.view_team"
	PermissionAttendanceViewAll  Permission = "attendance.view_all"

	// Leave
	PermissionLeaveViewOwn  Permission = "leave.view_own"
	PermissionLeaveViewTeam Permission = "leave.view_team"

	// Reports
	PermissionReportsView Permission = "reports.view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceClock,
		PermissionAttendanceViewTeam,
		PermissionAttendanceViewAll,
		PermissionLeaveViewOwn,
		PermissionLeaveViewTeam,
		PermissionReportsView,
	},
	RoleManager: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceClock,
		PermissionAttendanceViewTeam,
		PermissionLeaveViewOwn,
		PermissionLeaveViewTeam,
		PermissionReportsView,
	},
	RoleEmployee: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceClock,
		PermissionLeaveViewOwn,
		PermissionReportsView,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
