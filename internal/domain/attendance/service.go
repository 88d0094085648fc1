package attendance

import (
	"context"
)

// AttendanceService is the live status tracker plus the listing entry points.
type AttendanceService interface {
	// CurrentStatus returns today's status for the user, with live hour accrual
	CurrentStatus(ctx context.Context, userID string) (CurrentStatusResponse, error)

	// ClockIn opens a session; rejects a second open session and approved leave
	ClockIn(ctx context.Context, req ClockInRequest) (SessionResponse, error)

	// ClockOut closes the user's open session
	ClockOut(ctx context.Context, req ClockOutRequest) (SessionResponse, error)

	StartBreak(ctx context.Context, req StartBreakRequest) (BreakResponse, error)
	EndBreak(ctx context.Context, req EndBreakRequest) (BreakResponse, error)

	// GetMyAttendance materializes the caller's own range
	GetMyAttendance(ctx context.Context, userID string, filter MyAttendanceFilter) (ListAttendanceResponse, error)

	// ListTeamAttendance materializes the caller's scope (direct reports or everyone)
	ListTeamAttendance(ctx context.Context, actorID string, filter TeamAttendanceFilter) (ListAttendanceResponse, error)
}
