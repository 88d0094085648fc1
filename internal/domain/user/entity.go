package user

import "strings"

type Role string

const (
	RoleAdmin    Role = "admin"    // Sees every user
	RoleManager  Role = "manager"  // Sees direct reports
	RoleEmployee Role = "employee" // Sees self
)

// UnassignedDepartment is the bucket used for users without a department.
const UnassignedDepartment = "unassigned"

type User struct {
	ID         string
	Name       string
	Email      string
	Role       Role
	Department *string
	Position   *string
	ManagerID  *string
	IsActive   bool
}

// IsAdmin checks if user has unrestricted visibility
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsManager checks if user is manager or admin
func (u *User) IsManager() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

// DepartmentName returns the department or the unassigned bucket.
func (u *User) DepartmentName() string {
	if u.Department == nil || strings.TrimSpace(*u.Department) == "" {
		return UnassignedDepartment
	}
	return *u.Department
}

// ReportsTo reports whether u is a direct report of managerID.
func (u *User) ReportsTo(managerID string) bool {
	return u.ManagerID != nil && *u.ManagerID == managerID
}

// ValidRole checks the role against the closed set.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}
