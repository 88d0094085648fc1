package attendance

import (
	"strings"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
)

type ScopeKind string

const (
	ScopeSelf ScopeKind = "self"
	ScopeTeam ScopeKind = "team"
	ScopeAll  ScopeKind = "all"
)

// Scope is the set of users an actor may see.
type Scope struct {
	Kind    ScopeKind
	ActorID string
}

// ScopeFor derives the visibility of actor from its role.
func ScopeFor(actor user.User) Scope {
	switch {
	case actor.IsAdmin():
		return Scope{Kind: ScopeAll, ActorID: actor.ID}
	case actor.Role == user.RoleManager:
		return Scope{Kind: ScopeTeam, ActorID: actor.ID}
	default:
		return Scope{Kind: ScopeSelf, ActorID: actor.ID}
	}
}

// UserFilter turns the scope into a store filter so only visible users are
// loaded before materialization.
func (s Scope) UserFilter() user.Filter {
	switch s.Kind {
	case ScopeAll:
		return user.Filter{}
	case ScopeTeam:
		managerID := s.ActorID
		return user.Filter{ManagerID: &managerID}
	default:
		return user.Filter{IDs: []string{s.ActorID}}
	}
}

// Allows reports whether u is visible in the scope.
func (s Scope) Allows(u user.User) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeTeam:
		return u.ReportsTo(s.ActorID)
	default:
		return u.ID == s.ActorID
	}
}

// RowFilter narrows materialized rows. Nil and empty fields match everything.
type RowFilter struct {
	Status     *attendance.Status
	Department *string
	Search     string
	UserID     *string
}

func (f RowFilter) matches(row attendance.DayStatus) bool {
	if f.Status != nil && row.Status != *f.Status {
		return false
	}
	if f.Department != nil && !strings.EqualFold(row.Department, *f.Department) {
		return false
	}
	if f.UserID != nil && row.UserID != *f.UserID {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(row.UserName), needle) &&
			!strings.Contains(strings.ToLower(row.UserEmail), needle) {
			return false
		}
	}
	return true
}

// Query filters rows per row (a day with two sessions of different status
// can match once under each) and slices one page. total is the filtered count.
func Query(rows []attendance.DayStatus, filter RowFilter, page, pageSize int) ([]attendance.DayStatus, int64) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	filtered := make([]attendance.DayStatus, 0, len(rows))
	for _, row := range rows {
		if filter.matches(row) {
			filtered = append(filtered, row)
		}
	}

	total := int64(len(filtered))
	offset := (page - 1) * pageSize
	if offset >= len(filtered) {
		return []attendance.DayStatus{}, total
	}
	end := min(offset+pageSize, len(filtered))
	return filtered[offset:end], total
}

// TotalPages rounds total/pageSize up.
func TotalPages(total int64, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
