package attendance

import "errors"

// Attendance domain errors
var (
	// Clock errors
	ErrAlreadyClockedIn = errors.New("an open session already exists")
	ErrOnApprovedLeave  = errors.New("today falls inside an approved leave")
	ErrNoOpenSession    = errors.New("no open session found")
	ErrBreakInProgress  = errors.New("break already in progress")
	ErrNoActiveBreak    = errors.New("no active break found")

	// Scope and store errors
	ErrUnauthorized      = errors.New("unauthorized to access this attendance data")
	ErrStoreUnavailable  = errors.New("attendance store unavailable")
	ErrInvalidDateRange  = errors.New("start date must not be after end date")
	ErrDateRangeTooLarge = errors.New("date range is too large")
	ErrInvalidStatus     = errors.New("invalid attendance status")

	// Returned by store implementations; the service maps them to the
	// caller-facing errors above.
	ErrOpenSessionExists = errors.New("store: open session exists for user")
	ErrOpenBreakExists   = errors.New("store: open break exists for session")
	ErrSessionNotFound   = errors.New("store: session not found or already closed")
	ErrBreakNotFound     = errors.New("store: break not found or already ended")
)

// IsRetryable reports whether the caller may retry the operation. Only store
// outages qualify; the semantic rejections never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
