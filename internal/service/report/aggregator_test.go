package report

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/report"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	attendanceService "github.com/cmlabs-hris/hris-attendance-go/internal/service/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clockAt(d time.Time, h, m int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, time.UTC)
}

func session(id, userID string, d time.Time, inH, inM, outH, outM int, hint attendance.Status) attendance.Session {
	out := clockAt(d, outH, outM)
	return attendance.Session{ID: id, UserID: userID, Date: d, ClockIn: clockAt(d, inH, inM), ClockOut: &out, StatusHint: hint}
}

// endToEndRows materializes the three-day reference scenario.
func endToEndRows(t *testing.T) []attendance.DayStatus {
	t.Helper()
	u := user.User{ID: "U", Name: "Ursula", IsActive: true}
	d1, d2, d3 := day(2024, 6, 1), day(2024, 6, 2), day(2024, 6, 3)
	sessions := []attendance.Session{
		session("s1", "U", d1, 8, 0, 16, 30, attendance.StatusPresent),
		session("s2", "U", d2, 10, 15, 18, 0, attendance.StatusLate),
	}
	leaves := []leave.LeaveRequest{{ID: "l1", UserID: "U", LeaveType: leave.TypeAnnual, StartDate: d3, EndDate: d3, Status: leave.StatusApproved}}

	m := attendanceService.NewMaterializer(nil, nil, attendanceService.NewResolver(attendance.PolicySessionWins, time.UTC), nil)
	rows, err := m.Expand(context.Background(), []user.User{u}, d1, d3, attendanceService.BuildIndex(sessions, leaves, d1, d3), clockAt(d3, 23, 0))
	require.NoError(t, err)
	return rows
}

func TestAggregate_EndToEnd(t *testing.T) {
	rows := endToEndRows(t)

	t.Run("include leave in denominator", func(t *testing.T) {
		s := Aggregate(rows, AggregateOptions{Today: day(2024, 6, 1), Denominator: report.IncludeLeave})
		assert.Equal(t, int64(1), s.PresentToday)
		assert.Equal(t, int64(0), s.AbsentToday)
		assert.Equal(t, int64(0), s.OnLeaveToday)
		assert.Equal(t, int64(1), s.TotalEmployees)
		assert.Equal(t, 66.67, s.AttendanceRatePct)
		assert.InDelta(t, 16.25, s.TotalHoursInRange, 1e-9)
		assert.InDelta(t, 8.13, s.AverageHoursPerActiveDay, 1e-9)
		assert.Equal(t, int64(2), s.WorkedDays)
		assert.Equal(t, int64(1), s.OnLeaveDays)
		assert.Equal(t, "include_leave", s.RateDenominator)
	})

	t.Run("exclude leave from denominator", func(t *testing.T) {
		s := Aggregate(rows, AggregateOptions{Today: day(2024, 6, 1), Denominator: report.ExcludeLeave})
		assert.Equal(t, 100.0, s.AttendanceRatePct)
	})

	t.Run("today defaults to last date", func(t *testing.T) {
		s := Aggregate(rows, AggregateOptions{})
		assert.Equal(t, "2024-06-03", s.TodayDate)
		assert.Equal(t, int64(1), s.OnLeaveToday)
		assert.Equal(t, int64(0), s.PresentToday)
	})

	t.Run("trend", func(t *testing.T) {
		s := Aggregate(rows, AggregateOptions{})
		require.Len(t, s.Trend, 3)
		assert.Equal(t, "2024-06-02", s.Trend[1].Date)
		assert.Equal(t, int64(1), s.Trend[1].Late)
		assert.InDelta(t, 7.75, s.Trend[1].Hours, 1e-9)
	})

	t.Run("buckets", func(t *testing.T) {
		s := Aggregate(rows, AggregateOptions{})
		require.Len(t, s.Monthly, 1)
		assert.Equal(t, "2024-06", s.Monthly[0].Period)
		// 2024-06-01 and 06-02 are the weekend of ISO week 22; 06-03 opens week 23
		require.Len(t, s.Weekly, 2)
		assert.Equal(t, "2024-W22", s.Weekly[0].Period)
		assert.Equal(t, int64(2), s.Weekly[0].WorkedDays)
		assert.Equal(t, "2024-W23", s.Weekly[1].Period)
		assert.Equal(t, int64(1), s.Weekly[1].LeaveDays)
	})
}

func TestAggregate_MultiSessionDayCountedOnce(t *testing.T) {
	d := day(2024, 6, 3)
	s1 := session("s1", "u1", d, 9, 0, 12, 0, attendance.StatusLate)
	s2 := session("s2", "u1", d, 13, 0, 17, 0, attendance.StatusPresent)
	rows := []attendance.DayStatus{
		{UserID: "u1", Department: "Ops", Date: d, Status: attendance.StatusLate, Kind: attendance.RowSession, Session: &s1, TotalHoursForDay: 7},
		{UserID: "u1", Department: "Ops", Date: d, Status: attendance.StatusPresent, Kind: attendance.RowSession, Session: &s2, TotalHoursForDay: 7},
	}

	s := Aggregate(rows, AggregateOptions{Today: d})
	assert.Equal(t, int64(1), s.TotalEmployees)
	assert.Equal(t, int64(1), s.PresentToday)
	assert.Equal(t, int64(1), s.LateToday)
	assert.Equal(t, 7.0, s.TotalHoursInRange)
	assert.Equal(t, int64(1), s.WorkedDays)

	emp := EmployeeRows(rows, report.IncludeLeave)
	require.Len(t, emp, 1)
	assert.Equal(t, int64(1), emp[0].TotalDays)
	assert.Equal(t, 7.0, emp[0].TotalHours)
	assert.Equal(t, 100.0, emp[0].AttendanceRatePct)
}

func TestAggregate_UnassignedAndInactive(t *testing.T) {
	d := day(2024, 6, 3)
	rows := []attendance.DayStatus{
		{UserID: "u1", Department: "unassigned", Date: d, Status: attendance.StatusAbsent, Kind: attendance.RowAbsent},
		{UserID: "u2", Department: "Sales", Date: d, Status: attendance.StatusOnLeave, Kind: attendance.RowOnLeave},
		{UserID: "u3", Department: "Sales", Date: d, Status: attendance.StatusInactive, Kind: attendance.RowInactive},
	}

	s := Aggregate(rows, AggregateOptions{Today: d})
	assert.Equal(t, int64(2), s.TotalEmployees)
	assert.Equal(t, int64(1), s.AbsentToday)
	assert.Equal(t, int64(1), s.OnLeaveToday)
	require.Len(t, s.Departments, 2)
	assert.Equal(t, "Sales", s.Departments[0].Department)
	assert.Equal(t, int64(1), s.Departments[0].Employees)
	assert.Equal(t, "unassigned", s.Departments[1].Department)
	assert.Equal(t, int64(1), s.Departments[1].AbsentDays)

	assert.Len(t, EmployeeRows(rows, report.IncludeLeave), 2)
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, AggregateOptions{})
	assert.Zero(t, s.TotalEmployees)
	assert.Zero(t, s.AttendanceRatePct)
	assert.NotNil(t, s.Trend)
	assert.NotNil(t, s.Departments)
}

// Random populations of sessions, leave and inactive users: every single-day
// slice must partition the active users exactly.
func TestAggregate_DaySlicePartitionsActiveUsers(t *testing.T) {
	rng := rand.New(rand.NewSource(20240601))
	start, end := day(2024, 6, 1), day(2024, 6, 14)
	now := clockAt(end, 12, 0)
	depts := []string{"Engineering", "Sales", ""}
	statuses := []attendance.Status{attendance.StatusPresent, attendance.StatusLate, attendance.StatusEarlyLeave}

	for run := 0; run < 25; run++ {
		var users []user.User
		var sessions []attendance.Session
		var leaves []leave.LeaveRequest
		n := 1 + rng.Intn(40)

		for i := 0; i < n; i++ {
			u := user.User{ID: fmt.Sprintf("u%02d", i), Name: fmt.Sprintf("User %d", rng.Intn(10)), IsActive: rng.Intn(8) != 0}
			if dept := depts[rng.Intn(len(depts))]; dept != "" {
				u.Department = &dept
			}
			users = append(users, u)

			for di, d := range attendance.DaysInRange(start, end) {
				for k := rng.Intn(3); k > 0; k-- {
					inH := 7 + rng.Intn(5)
					s := session(fmt.Sprintf("s%d-%d-%d", i, di, k), u.ID, d, inH, 0, inH+1+rng.Intn(6), 0, statuses[rng.Intn(len(statuses))])
					if d.Equal(end) && rng.Intn(3) == 0 {
						s.ClockOut = nil
					}
					sessions = append(sessions, s)
				}
			}
			if rng.Intn(3) == 0 {
				ls := start.AddDate(0, 0, rng.Intn(14))
				leaves = append(leaves, leave.LeaveRequest{
					ID: fmt.Sprintf("l%d", i), UserID: u.ID, LeaveType: leave.TypeSick,
					StartDate: ls, EndDate: ls.AddDate(0, 0, rng.Intn(4)), Status: leave.StatusApproved,
				})
			}
		}

		m := attendanceService.NewMaterializer(nil, nil, attendanceService.NewResolver(attendance.PolicySessionWins, time.UTC), nil)
		rows, err := m.Expand(context.Background(), users, start, end, attendanceService.BuildIndex(sessions, leaves, start, end), now)
		require.NoError(t, err)

		active := int64(0)
		for _, u := range users {
			if u.IsActive {
				active++
			}
		}

		for _, d := range attendance.DaysInRange(start, end) {
			s := Aggregate(rows, AggregateOptions{Today: d})
			assert.GreaterOrEqual(t, s.PresentToday, int64(0))
			assert.GreaterOrEqual(t, s.AbsentToday, int64(0))
			assert.GreaterOrEqual(t, s.OnLeaveToday, int64(0))
			if active > 0 {
				assert.Equal(t, active, s.TotalEmployees, "run %d day %s", run, attendance.DateKey(d))
			}
			assert.Equal(t, s.TotalEmployees, s.PresentToday+s.AbsentToday+s.OnLeaveToday, "run %d day %s", run, attendance.DateKey(d))
			assert.LessOrEqual(t, s.LateToday, s.PresentToday)
		}

		s := Aggregate(rows, AggregateOptions{})
		assert.Equal(t, active*14, s.WorkedDays+s.AbsentDays+s.OnLeaveDays)
		assert.GreaterOrEqual(t, s.AttendanceRatePct, 0.0)
		assert.LessOrEqual(t, s.AttendanceRatePct, 100.0)

		var deptDays int64
		for _, dept := range s.Departments {
			deptDays += dept.WorkedDays + dept.AbsentDays + dept.LeaveDays
		}
		assert.Equal(t, active*14, deptDays)
	}
}
