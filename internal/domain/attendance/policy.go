package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LeaveConflictPolicy decides what a day shows when approved leave and a
// real session fall on the same date.
type LeaveConflictPolicy string

const (
	// PolicySessionWins reports the sessions and ignores the leave.
	PolicySessionWins LeaveConflictPolicy = "session_wins"
	// PolicyFlagAnomaly reports the sessions and marks them for review.
	PolicyFlagAnomaly LeaveConflictPolicy = "flag_anomaly"
	// PolicyLeaveWins hides the sessions behind a single on_leave row.
	PolicyLeaveWins LeaveConflictPolicy = "leave_wins"
)

func ParseLeaveConflictPolicy(s string) (LeaveConflictPolicy, error) {
	switch p := LeaveConflictPolicy(strings.TrimSpace(s)); p {
	case PolicySessionWins, PolicyFlagAnomaly, PolicyLeaveWins:
		return p, nil
	case "":
		return PolicySessionWins, nil
	}
	return "", fmt.Errorf("unknown leave conflict policy %q", s)
}

// ShiftPolicy holds the thresholds used to derive a session's status hint.
type ShiftPolicy struct {
	Start    string // HH:MM
	End      string // HH:MM
	Grace    time.Duration
	Location *time.Location
}

// DefaultShiftPolicy is 09:00-17:00 UTC with no grace period.
func DefaultShiftPolicy() ShiftPolicy {
	return ShiftPolicy{Start: "09:00", End: "17:00", Location: time.UTC}
}

// IsLate reports whether a clock-in at t is past the start threshold of its day.
func (p ShiftPolicy) IsLate(t time.Time) bool {
	h, m := splitClock(p.Start, 9, 0)
	threshold := At(CalendarDate(t, p.loc()), h, m, p.loc()).Add(p.Grace)
	return t.After(threshold)
}

// IsEarly reports whether a clock-out at t is before the end threshold of its day.
func (p ShiftPolicy) IsEarly(t time.Time) bool {
	h, m := splitClock(p.End, 17, 0)
	threshold := At(CalendarDate(t, p.loc()), h, m, p.loc())
	return t.Before(threshold)
}

func (p ShiftPolicy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func splitClock(s string, defH, defM int) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return defH, defM
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return defH, defM
	}
	return h, m
}
