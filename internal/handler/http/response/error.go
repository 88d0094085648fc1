package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/report"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Clock state conflicts
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		Conflict(w, "ALREADY_CLOCKED_IN", "You already have an open session")
	case errors.Is(err, attendance.ErrOnApprovedLeave):
		Conflict(w, "ON_APPROVED_LEAVE", "Today falls inside your approved leave")
	case errors.Is(err, attendance.ErrNoOpenSession):
		Conflict(w, "NO_OPEN_SESSION", "You have no open session")
	case errors.Is(err, attendance.ErrBreakInProgress):
		Conflict(w, "BREAK_IN_PROGRESS", "A break is already in progress")
	case errors.Is(err, attendance.ErrNoActiveBreak):
		Conflict(w, "NO_ACTIVE_BREAK", "No active break found")

	// Access
	case errors.Is(err, attendance.ErrUnauthorized):
		Forbidden(w, "You are not allowed to view this attendance data")
	case errors.Is(err, user.ErrUserInactive):
		Forbidden(w, "User account is deactivated")
	case errors.Is(err, user.ErrInsufficientPermissions), errors.Is(err, user.ErrManagerAccessRequired):
		Forbidden(w, err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")

	// Ranges
	case errors.Is(err, attendance.ErrInvalidDateRange), errors.Is(err, report.ErrInvalidDateRange):
		BadRequest(w, "start_date must not be after end_date", nil)
	case errors.Is(err, attendance.ErrDateRangeTooLarge):
		BadRequest(w, "Date range is too large", nil)
	case errors.Is(err, attendance.ErrInvalidStatus):
		BadRequest(w, "Invalid attendance status", nil)

	// Client went away or the request ran out of time
	case errors.Is(err, context.Canceled):
		slog.Debug("request canceled", "error", err)
		RequestCanceled(w)
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("request deadline exceeded", "error", err)
		Timeout(w)

	// Retryable
	case attendance.IsRetryable(err):
		slog.Error("store unavailable", "error", err)
		ServiceUnavailable(w, "Attendance store is temporarily unavailable")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
