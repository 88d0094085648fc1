package attendance

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the closed set of per-row attendance outcomes shared by the
// resolver, the aggregator and the query layer.
type Status string

const (
	StatusPresent    Status = "present"
	StatusLate       Status = "late"
	StatusEarlyLeave Status = "early_leave"
	StatusOnLeave    Status = "on_leave"
	StatusAbsent     Status = "absent"
	StatusInactive   Status = "inactive"
)

// AllStatuses returns every status in display order
func AllStatuses() []Status {
	return []Status{StatusPresent, StatusLate, StatusEarlyLeave, StatusOnLeave, StatusAbsent, StatusInactive}
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Worked reports whether the status comes from a real clock session.
func (s Status) Worked() bool {
	return s == StatusPresent || s == StatusLate || s == StatusEarlyLeave
}

type BreakType string

const (
	BreakLunch    BreakType = "lunch"
	BreakCoffee   BreakType = "coffee"
	BreakPersonal BreakType = "personal"
	BreakMeeting  BreakType = "meeting"
)

// ValidBreakType checks the break type against the closed set.
func ValidBreakType(t BreakType) bool {
	switch t {
	case BreakLunch, BreakCoffee, BreakPersonal, BreakMeeting:
		return true
	}
	return false
}

// Session is one clock-in/clock-out pair. Date is the calendar day of the
// clock-in (midnight UTC). A nil ClockOut means the session is open.
type Session struct {
	ID          string
	UserID      string
	Date        time.Time
	ClockIn     time.Time
	ClockOut    *time.Time
	LocationIn  json.RawMessage
	LocationOut json.RawMessage
	StatusHint  Status
	TotalHours  *float64
	Notes       *string
	Breaks      []Break
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOpen reports whether the session has no clock-out yet.
func (s Session) IsOpen() bool {
	return s.ClockOut == nil
}

// ClosedHours returns the worked hours of a closed session.
func (s Session) ClosedHours() float64 {
	if s.TotalHours != nil {
		return *s.TotalHours
	}
	if s.ClockOut == nil {
		return 0
	}
	return HoursBetween(s.ClockIn, *s.ClockOut)
}

// BreakHours sums the durations of finished breaks.
func (s Session) BreakHours() float64 {
	var total float64
	for _, b := range s.Breaks {
		total += b.Hours()
	}
	return total
}

// Break is informational only; it is never subtracted from worked hours.
type Break struct {
	ID              string
	SessionID       string
	UserID          string
	BreakStart      time.Time
	BreakEnd        *time.Time
	BreakType       BreakType
	TotalBreakHours *float64
	Notes           *string
	CreatedAt       time.Time
}

// IsOpen reports whether the break is ongoing.
func (b Break) IsOpen() bool {
	return b.BreakEnd == nil
}

// Hours returns the break duration, zero while ongoing.
func (b Break) Hours() float64 {
	if b.TotalBreakHours != nil {
		return *b.TotalBreakHours
	}
	if b.BreakEnd == nil {
		return 0
	}
	return HoursBetween(b.BreakStart, *b.BreakEnd)
}

// RowKind tags whether a DayStatus is backed by a real session.
type RowKind int

const (
	RowSession RowKind = iota
	RowAbsent
	RowOnLeave
	RowInactive
)

// DayStatus is the derived, non-persisted output unit of the engine. Session
// rows carry a pointer to their session; synthetic rows carry none.
type DayStatus struct {
	UserID           string
	UserName         string
	UserEmail        string
	Department       string
	Date             time.Time
	Status           Status
	Kind             RowKind
	Session          *Session
	Leave            *LeaveRef
	TotalHoursForDay float64
	Anomaly          bool
}

// LeaveRef is the slice of a leave request exposed on on_leave rows.
type LeaveRef struct {
	ID        string
	LeaveType string
}

// IsSynthetic reports whether the row has no backing session.
func (d DayStatus) IsSynthetic() bool {
	return d.Kind != RowSession
}

// RowID returns the session id for real rows and a deterministic virtual id
// for synthetic rows, e.g. absent-{userID}-{date}.
func (d DayStatus) RowID() string {
	if d.Kind == RowSession && d.Session != nil {
		return d.Session.ID
	}
	return fmt.Sprintf("%s-%s-%s", d.Status, d.UserID, DateKey(d.Date))
}
