package fixtures

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
)

// ==========================================
// HELPER FUNCTIONS
// ==========================================

func strPtr(s string) *string { return &s }

// ==========================================
// DEMO ORGANISATION
// ==========================================

// Fixed ids so a demo token stays valid across restarts.
const (
	AdminID     = "0190a000-0000-7000-8000-000000000001"
	EngLeadID   = "0190a000-0000-7000-8000-000000000002"
	SalesLeadID = "0190a000-0000-7000-8000-000000000003"
)

// Sink receives seeded rows. The in-memory store implements it.
type Sink interface {
	PutUser(u user.User)
	PutSession(s attendance.Session) (attendance.Session, error)
	PutLeave(l leave.LeaveRequest) leave.LeaveRequest
}

type employeeDef struct {
	ID         string
	Name       string
	Role       user.Role
	Department string
	Position   string
	ManagerID  string
	Active     bool
	// Minutes after 08:00 the employee usually clocks in.
	ArrivalOffset int
}

var demoEmployees = []employeeDef{
	{ID: AdminID, Name: "Ayu Pratama", Role: user.RoleAdmin, Department: "People Ops", Position: "HR Lead", Active: true, ArrivalOffset: 30},
	{ID: EngLeadID, Name: "Bima Santoso", Role: user.RoleManager, Department: "Engineering", Position: "Engineering Manager", ManagerID: AdminID, Active: true, ArrivalOffset: 45},
	{ID: SalesLeadID, Name: "Citra Lestari", Role: user.RoleManager, Department: "Sales", Position: "Sales Manager", ManagerID: AdminID, Active: true, ArrivalOffset: 50},
	{ID: "0190a000-0000-7000-8000-000000000011", Name: "Dimas Putra", Role: user.RoleEmployee, Department: "Engineering", Position: "Backend Engineer", ManagerID: EngLeadID, Active: true, ArrivalOffset: 55},
	{ID: "0190a000-0000-7000-8000-000000000012", Name: "Eka Wulandari", Role: user.RoleEmployee, Department: "Engineering", Position: "Frontend Engineer", ManagerID: EngLeadID, Active: true, ArrivalOffset: 75},
	{ID: "0190a000-0000-7000-8000-000000000013", Name: "Fajar Nugroho", Role: user.RoleEmployee, Department: "Sales", Position: "Account Executive", ManagerID: SalesLeadID, Active: true, ArrivalOffset: 40},
	{ID: "0190a000-0000-7000-8000-000000000014", Name: "Gita Maharani", Role: user.RoleEmployee, Position: "Intern", ManagerID: EngLeadID, Active: true, ArrivalOffset: 60},
	{ID: "0190a000-0000-7000-8000-000000000015", Name: "Hadi Wijaya", Role: user.RoleEmployee, Department: "Sales", Position: "Sales Associate", ManagerID: SalesLeadID, Active: false, ArrivalOffset: 60},
}

// Demo seeds an organisation with two weeks of history ending on today.
// Weekends are skipped, every fifth user-day is left absent and a few
// leave requests overlap the range.
func Demo(sink Sink, today time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	today = attendance.CalendarDate(today, loc)
	start := today.AddDate(0, 0, -13)

	for _, e := range demoEmployees {
		u := user.User{
			ID:       e.ID,
			Name:     e.Name,
			Email:    emailFor(e.Name),
			Role:     e.Role,
			Position: strPtr(e.Position),
			IsActive: e.Active,
		}
		if e.Department != "" {
			u.Department = strPtr(e.Department)
		}
		if e.ManagerID != "" {
			u.ManagerID = strPtr(e.ManagerID)
		}
		sink.PutUser(u)
	}

	for i, e := range demoEmployees {
		if !e.Active {
			continue
		}
		// Today stays free so clock-in can be tried against a clean slate.
		for d, date := range attendance.DaysInRange(start, today.AddDate(0, 0, -1)) {
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
			if (i+d)%5 == 4 {
				continue
			}
			if _, err := sink.PutSession(demoSession(e, date, d, loc)); err != nil {
				return fmt.Errorf("seeding session for %s: %w", e.Name, err)
			}
		}
	}

	approvedAt := start.Add(-24 * time.Hour)
	sink.PutLeave(leave.LeaveRequest{
		UserID:     demoEmployees[4].ID,
		LeaveType:  leave.TypeAnnual,
		StartDate:  today.AddDate(0, 0, -3),
		EndDate:    today,
		Reason:     "Family trip",
		Status:     leave.StatusApproved,
		ApprovedAt: &approvedAt,
		ApprovedBy: strPtr(EngLeadID),
	})
	sink.PutLeave(leave.LeaveRequest{
		UserID:     demoEmployees[5].ID,
		LeaveType:  leave.TypeSick,
		StartDate:  today.AddDate(0, 0, -8),
		EndDate:    today.AddDate(0, 0, -8),
		Reason:     "Flu",
		Status:     leave.StatusApproved,
		ApprovedAt: &approvedAt,
		ApprovedBy: strPtr(SalesLeadID),
	})
	sink.PutLeave(leave.LeaveRequest{
		UserID:    demoEmployees[3].ID,
		LeaveType: leave.TypePersonal,
		StartDate: today.AddDate(0, 0, 7),
		EndDate:   today.AddDate(0, 0, 8),
		Reason:    "Moving house",
		Status:    leave.StatusPending,
	})
	return nil
}

func demoSession(e employeeDef, date time.Time, d int, loc *time.Location) attendance.Session {
	arrival := e.ArrivalOffset + (d%3)*10
	clockIn := attendance.At(date, 8, 0, loc).Add(time.Duration(arrival) * time.Minute)
	clockOut := clockIn.Add(8*time.Hour + time.Duration(d%4)*15*time.Minute)

	hint := attendance.StatusPresent
	if arrival > 60 {
		hint = attendance.StatusLate
	}
	if d%6 == 5 {
		clockOut = attendance.At(date, 15, 30, loc)
		hint = attendance.StatusEarlyLeave
	}
	hours := attendance.HoursBetween(clockIn, clockOut)

	lunchStart := attendance.At(date, 12, 0, loc)
	lunchEnd := lunchStart.Add(45 * time.Minute)
	lunchHours := 0.75
	return attendance.Session{
		UserID:     e.ID,
		Date:       date,
		ClockIn:    clockIn,
		ClockOut:   &clockOut,
		StatusHint: hint,
		TotalHours: &hours,
		Breaks: []attendance.Break{{
			BreakStart:      lunchStart,
			BreakEnd:        &lunchEnd,
			BreakType:       attendance.BreakLunch,
			TotalBreakHours: &lunchHours,
		}},
	}
}

func emailFor(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", ".") + "@demo.local"
}
