package leave

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

type Type string

const (
	TypeAnnual      Type = "annual"
	TypeSick        Type = "sick"
	TypePersonal    Type = "personal"
	TypeMaternity   Type = "maternity"
	TypePaternity   Type = "paternity"
	TypeBereavement Type = "bereavement"
	TypeUnpaid      Type = "unpaid"
)

// LeaveRequest is read-only input to the attendance engine. StartDate and
// EndDate are calendar dates (midnight UTC) and the range is inclusive.
type LeaveRequest struct {
	ID         string
	UserID     string
	LeaveType  Type
	StartDate  time.Time
	EndDate    time.Time
	TotalDays  int
	Reason     string
	Status     Status
	ApprovedAt *time.Time
	ApprovedBy *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsApproved reports whether the request is visible to the engine.
func (l LeaveRequest) IsApproved() bool {
	return l.Status == StatusApproved
}

// Covers reports whether the calendar date falls inside [StartDate, EndDate].
func (l LeaveRequest) Covers(date time.Time) bool {
	return !date.Before(l.StartDate) && !date.After(l.EndDate)
}

// Overlaps reports whether the request intersects [start, end].
func (l LeaveRequest) Overlaps(start, end time.Time) bool {
	return !l.EndDate.Before(start) && !l.StartDate.After(end)
}

// Days returns the inclusive number of calendar days in the request.
func (l LeaveRequest) Days() int {
	if l.TotalDays > 0 {
		return l.TotalDays
	}
	return int(l.EndDate.Sub(l.StartDate).Hours()/24) + 1
}
