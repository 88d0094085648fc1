package attendance

import (
	"encoding/json"

	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/validator"
)

// ========================================
// CLOCK DTOs
// ========================================

type ClockInRequest struct {
	UserID   string          `json:"-"`
	Location json.RawMessage `json:"location,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
}

func (r *ClockInRequest) Validate() error {
	return validateClock(r.UserID, r.Location, r.Notes)
}

type ClockOutRequest struct {
	UserID   string          `json:"-"`
	Location json.RawMessage `json:"location,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
}

func (r *ClockOutRequest) Validate() error {
	return validateClock(r.UserID, r.Location, r.Notes)
}

// Locations are stored opaquely; the only requirement is well-formed JSON.
func validateClock(userID string, location json.RawMessage, notes *string) error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(userID) {
		errs = append(errs, validator.ValidationError{
			Field:   "user_id",
			Message: "user_id is required",
		})
	}

	if len(location) > 0 && !json.Valid(location) {
		errs = append(errs, validator.ValidationError{
			Field:   "location",
			Message: "location must be valid JSON",
		})
	}

	if notes != nil && len(*notes) > 1000 {
		errs = append(errs, validator.ValidationError{
			Field:   "notes",
			Message: "notes must not exceed 1000 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type StartBreakRequest struct {
	UserID    string    `json:"-"`
	BreakType BreakType `json:"break_type"`
	Notes     *string   `json:"notes,omitempty"`
}

func (r *StartBreakRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.UserID) {
		errs = append(errs, validator.ValidationError{
			Field:   "user_id",
			Message: "user_id is required",
		})
	}

	if r.BreakType == "" {
		r.BreakType = BreakLunch
	}
	if !ValidBreakType(r.BreakType) {
		errs = append(errs, validator.ValidationError{
			Field:   "break_type",
			Message: "break_type must be one of: lunch, coffee, personal, meeting",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EndBreakRequest struct {
	UserID string `json:"-"`
}

type SessionResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Date        string          `json:"date"`
	ClockIn     string          `json:"clock_in"`
	ClockOut    *string         `json:"clock_out,omitempty"`
	LocationIn  json.RawMessage `json:"location_in,omitempty"`
	LocationOut json.RawMessage `json:"location_out,omitempty"`
	Status      string          `json:"status"`
	TotalHours  *float64        `json:"total_hours,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	Breaks      []BreakResponse `json:"breaks,omitempty"`
}

type BreakResponse struct {
	ID              string   `json:"id"`
	SessionID       string   `json:"session_id"`
	BreakStart      string   `json:"break_start"`
	BreakEnd        *string  `json:"break_end,omitempty"`
	BreakType       string   `json:"break_type"`
	TotalBreakHours *float64 `json:"total_break_hours,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
}

// ========================================
// LIVE STATUS DTOs
// ========================================

type TrackerState string

const (
	StateNotClockedIn TrackerState = "not_clocked_in"
	StateClockedIn    TrackerState = "clocked_in"
	StateOnLeave      TrackerState = "on_leave"
)

type CurrentStatusResponse struct {
	State             TrackerState            `json:"state"`
	Status            string                  `json:"status"`
	Date              string                  `json:"date"`
	HasOpenSession    bool                    `json:"has_open_session"`
	OpenSession       *SessionResponse        `json:"open_session,omitempty"`
	OnBreak           bool                    `json:"on_break"`
	OpenBreak         *BreakResponse          `json:"open_break,omitempty"`
	AccruedHoursToday float64                 `json:"accrued_hours_today"`
	CanClockIn        bool                    `json:"can_clock_in"`
	CanClockOut       bool                    `json:"can_clock_out"`
	Message           string                  `json:"message"`
	Today             []AttendanceRowResponse `json:"today"`
}

// ========================================
// LISTING DTOs
// ========================================

type AttendanceRowResponse struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	UserName         string          `json:"user_name"`
	Department       string          `json:"department"`
	Date             string          `json:"date"`
	Status           string          `json:"status"`
	IsSynthetic      bool            `json:"is_synthetic"`
	Anomaly          bool            `json:"anomaly,omitempty"`
	SessionID        *string         `json:"session_id,omitempty"`
	ClockIn          *string         `json:"clock_in,omitempty"`
	ClockOut         *string         `json:"clock_out,omitempty"`
	SessionHours     *float64        `json:"session_hours,omitempty"`
	TotalHoursForDay float64         `json:"total_hours_for_day"`
	BreakHours       float64         `json:"break_hours"`
	Breaks           []BreakResponse `json:"breaks,omitempty"`
	LeaveType        *string         `json:"leave_type,omitempty"`
}

type ListAttendanceResponse struct {
	TotalCount  int64                   `json:"total_count"`
	Page        int                     `json:"page"`
	Limit       int                     `json:"limit"`
	TotalPages  int                     `json:"total_pages"`
	Showing     string                  `json:"showing"`
	StartDate   string                  `json:"start_date"`
	EndDate     string                  `json:"end_date"`
	Attendances []AttendanceRowResponse `json:"attendances"`
}

type MyAttendanceFilter struct {
	StartDate *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Status    *string `json:"status,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *MyAttendanceFilter) Validate() error {
	var errs validator.ValidationErrors
	errs = validatePage(errs, &f.Page, &f.Limit)
	errs = validateStatus(errs, f.Status)
	errs = validateDates(errs, f.StartDate, f.EndDate)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type TeamAttendanceFilter struct {
	StartDate  *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Status     *string `json:"status,omitempty"`
	Department *string `json:"department,omitempty"`
	Search     *string `json:"search,omitempty"`
	UserID     *string `json:"user_id,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *TeamAttendanceFilter) Validate() error {
	var errs validator.ValidationErrors
	errs = validatePage(errs, &f.Page, &f.Limit)
	errs = validateStatus(errs, f.Status)
	errs = validateDates(errs, f.StartDate, f.EndDate)

	if f.Search != nil && len(*f.Search) > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "search",
			Message: "search must not exceed 100 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePage(errs validator.ValidationErrors, page, limit *int) validator.ValidationErrors {
	if *page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if *page == 0 {
		*page = 1
	}

	if *limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if *limit == 0 {
		*limit = 20
	}
	if *limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}
	return errs
}

func validateStatus(errs validator.ValidationErrors, status *string) validator.ValidationErrors {
	if status == nil || *status == "" {
		return errs
	}
	if _, err := ParseStatus(*status); err != nil {
		errs = append(errs, validator.ValidationError{
			Field:   "status",
			Message: "status must be one of: present, late, early_leave, on_leave, absent, inactive",
		})
	}
	return errs
}

func validateDates(errs validator.ValidationErrors, start, end *string) validator.ValidationErrors {
	var startOK, endOK bool
	if start != nil && *start != "" {
		if _, startOK = validator.IsValidDate(*start); !startOK {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}
	if end != nil && *end != "" {
		if _, endOK = validator.IsValidDate(*end); !endOK {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}
	if startOK && endOK && *start > *end {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}
	return errs
}
