package attendance

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
)

// Resolver derives the status rows of one user on one calendar date. It holds
// no mutable state and is safe for concurrent use.
type Resolver struct {
	policy attendance.LeaveConflictPolicy
	loc    *time.Location
}

// NewResolver creates a Resolver. loc defines which calendar day "now" falls on.
func NewResolver(policy attendance.LeaveConflictPolicy, loc *time.Location) *Resolver {
	if policy == "" {
		policy = attendance.PolicySessionWins
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{policy: policy, loc: loc}
}

// Location returns the zone used to decide the current calendar day.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Today returns the calendar date of now.
func (r *Resolver) Today(now time.Time) time.Time {
	return attendance.CalendarDate(now, r.loc)
}

// Resolve applies, highest first: inactive user, approved leave without a
// session, sessions, absence. It always returns at least one row. With
// several sessions one row is emitted per session, ordered by clock-in, and
// every row carries the day total.
func (r *Resolver) Resolve(u user.User, date time.Time, sessions []attendance.Session, lv *leave.LeaveRequest, now time.Time) []attendance.DayStatus {
	base := attendance.DayStatus{
		UserID:     u.ID,
		UserName:   u.Name,
		UserEmail:  u.Email,
		Department: u.DepartmentName(),
		Date:       date,
	}

	if !u.IsActive {
		row := base
		row.Status = attendance.StatusInactive
		row.Kind = attendance.RowInactive
		return []attendance.DayStatus{row}
	}

	if lv != nil && !(lv.IsApproved() && lv.Covers(date)) {
		lv = nil
	}

	if lv != nil && (len(sessions) == 0 || r.policy == attendance.PolicyLeaveWins) {
		row := base
		row.Status = attendance.StatusOnLeave
		row.Kind = attendance.RowOnLeave
		row.Leave = &attendance.LeaveRef{ID: lv.ID, LeaveType: string(lv.LeaveType)}
		return []attendance.DayStatus{row}
	}

	if len(sessions) == 0 {
		row := base
		row.Status = attendance.StatusAbsent
		row.Kind = attendance.RowAbsent
		return []attendance.DayStatus{row}
	}

	ordered := make([]attendance.Session, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ClockIn.Equal(ordered[j].ClockIn) {
			return ordered[i].ClockIn.Before(ordered[j].ClockIn)
		}
		return ordered[i].ID < ordered[j].ID
	})

	total := r.DayHours(date, ordered, now)
	anomaly := lv != nil && r.policy == attendance.PolicyFlagAnomaly

	rows := make([]attendance.DayStatus, 0, len(ordered))
	for i := range ordered {
		row := base
		row.Status = sessionStatus(ordered[i])
		row.Kind = attendance.RowSession
		row.Session = &ordered[i]
		row.TotalHoursForDay = total
		row.Anomaly = anomaly
		if anomaly {
			row.Leave = &attendance.LeaveRef{ID: lv.ID, LeaveType: string(lv.LeaveType)}
		}
		rows = append(rows, row)
	}
	return rows
}

// DayHours sums worked hours across the sessions of date. An open session
// accrues until now only when date is today; a stale open session counts zero.
func (r *Resolver) DayHours(date time.Time, sessions []attendance.Session, now time.Time) float64 {
	today := r.Today(now)
	var total float64
	for _, s := range sessions {
		if s.IsOpen() {
			if date.Equal(today) {
				total += attendance.HoursBetween(s.ClockIn, now)
			}
			continue
		}
		total += s.ClosedHours()
	}
	return total
}

func sessionStatus(s attendance.Session) attendance.Status {
	if s.StatusHint.Worked() {
		return s.StatusHint
	}
	return attendance.StatusPresent
}
