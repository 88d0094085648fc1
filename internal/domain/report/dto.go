package report

import (
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/validator"
)

// ========================================
// AGGREGATION
// ========================================

// Summary is the fold of a materialized range.
type Summary struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TodayDate string `json:"today_date"`

	// Counters for the TodayDate slice. Present includes late and early_leave.
	TotalEmployees  int64 `json:"total_employees"`
	PresentToday    int64 `json:"present_today"`
	LateToday       int64 `json:"late_today"`
	EarlyLeaveToday int64 `json:"early_leave_today"`
	AbsentToday     int64 `json:"absent_today"`
	OnLeaveToday    int64 `json:"on_leave_today"`

	TotalHoursInRange        float64 `json:"total_hours_in_range"`
	AverageHoursPerActiveDay float64 `json:"average_hours_per_active_day"`
	TotalBreakHours          float64 `json:"total_break_hours"`
	WorkedDays               int64   `json:"worked_days"`
	AbsentDays               int64   `json:"absent_days"`
	OnLeaveDays              int64   `json:"on_leave_days"`
	AttendanceRatePct        float64 `json:"attendance_rate_pct"`
	RateDenominator          string  `json:"rate_denominator"`

	Trend       []DaySlice            `json:"trend"`
	Weekly      []PeriodBucket        `json:"weekly"`
	Monthly     []PeriodBucket        `json:"monthly"`
	Departments []DepartmentBreakdown `json:"departments"`
}

// DaySlice counts distinct users per category on one date.
type DaySlice struct {
	Date       string  `json:"date"`
	Active     int64   `json:"active"`
	Present    int64   `json:"present"`
	Late       int64   `json:"late"`
	EarlyLeave int64   `json:"early_leave"`
	Absent     int64   `json:"absent"`
	OnLeave    int64   `json:"on_leave"`
	Hours      float64 `json:"hours"`
}

// PeriodBucket is a weekly (2024-W23) or monthly (2024-06) rollup.
type PeriodBucket struct {
	Period     string  `json:"period"`
	WorkedDays int64   `json:"worked_days"`
	AbsentDays int64   `json:"absent_days"`
	LeaveDays  int64   `json:"leave_days"`
	Hours      float64 `json:"hours"`
}

// DepartmentBreakdown groups user-days by department. Users without one land in "unassigned".
type DepartmentBreakdown struct {
	Department string  `json:"department"`
	Employees  int64   `json:"employees"`
	WorkedDays int64   `json:"worked_days"`
	AbsentDays int64   `json:"absent_days"`
	LeaveDays  int64   `json:"leave_days"`
	Hours      float64 `json:"hours"`
}

type EmployeeReportRow struct {
	UserID            string  `json:"user_id"`
	Employee          string  `json:"employee"`
	Email             string  `json:"email"`
	Department        string  `json:"department"`
	TotalDays         int64   `json:"total_days"`
	PresentDays       int64   `json:"present_days"`
	LateDays          int64   `json:"late_days"`
	EarlyLeaveDays    int64   `json:"early_leave_days"`
	AbsentDays        int64   `json:"absent_days"`
	OnLeaveDays       int64   `json:"on_leave_days"`
	TotalHours        float64 `json:"total_hours"`
	AverageHours      float64 `json:"average_hours"`
	TotalBreakHours   float64 `json:"total_break_hours"`
	AttendanceRatePct float64 `json:"attendance_rate_pct"`
}

// ========================================
// ATTENDANCE REPORT
// ========================================

type AttendanceReportRequest struct {
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Department *string `json:"department,omitempty"`
}

func (r *AttendanceReportRequest) Validate() error {
	return validateRange(r.StartDate, r.EndDate)
}

type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type AttendanceReportResponse struct {
	Period      Period              `json:"period"`
	GeneratedAt string              `json:"generated_at"`
	Summary     Summary             `json:"summary"`
	Employees   []EmployeeReportRow `json:"employees"`
}

// ========================================
// LEAVE REPORT
// ========================================

type LeaveReportRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r *LeaveReportRequest) Validate() error {
	return validateRange(r.StartDate, r.EndDate)
}

type LeaveReportItem struct {
	LeaveID    string  `json:"leave_id"`
	UserID     string  `json:"user_id"`
	Employee   string  `json:"employee"`
	Email      string  `json:"email"`
	Department string  `json:"department"`
	LeaveType  string  `json:"leave_type"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	TotalDays  int     `json:"total_days"`
	Reason     string  `json:"reason"`
	ApprovedAt *string `json:"approved_at,omitempty"`
}

type DepartmentLeaveStats struct {
	TotalLeaves int64            `json:"total_leaves"`
	TotalDays   int64            `json:"total_days"`
	LeaveTypes  map[string]int64 `json:"leave_types"`
}

type LeaveReportResponse struct {
	Period          Period                          `json:"period"`
	GeneratedAt     string                          `json:"generated_at"`
	Leaves          []LeaveReportItem               `json:"leaves"`
	DepartmentStats map[string]DepartmentLeaveStats `json:"department_stats"`
}

// ========================================
// DASHBOARD
// ========================================

type DashboardResponse struct {
	Date                string           `json:"date"`
	TotalEmployees      int64            `json:"total_employees"`
	PresentToday        int64            `json:"present_today"`
	LateToday           int64            `json:"late_today"`
	AbsentToday         int64            `json:"absent_today"`
	OnLeaveToday        int64            `json:"on_leave_today"`
	TotalHoursThisMonth float64          `json:"total_hours_this_month"`
	AvgHoursPerDay      float64          `json:"avg_hours_per_day"`
	AttendanceRatePct   float64          `json:"attendance_rate_pct"`
	PendingLeaves       int64            `json:"pending_leaves"`
	Trend               []DaySlice       `json:"trend"`
	RecentActivities    []RecentActivity `json:"recent_activities"`
}

// RecentActivity is a clock event from the last seven days.
type RecentActivity struct {
	SessionID  string  `json:"session_id"`
	UserID     string  `json:"user_id"`
	Employee   string  `json:"employee"`
	Department string  `json:"department"`
	Date       string  `json:"date"`
	Status     string  `json:"status"`
	ClockIn    string  `json:"clock_in"`
	ClockOut   *string `json:"clock_out,omitempty"`
}

func validateRange(start, end string) error {
	var errs validator.ValidationErrors

	startDate, startOK := validator.IsValidDate(start)
	if !startOK {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}
	endDate, endOK := validator.IsValidDate(end)
	if !endOK {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must be in YYYY-MM-DD format",
		})
	}
	if startOK && endOK && endDate.Before(startDate) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
