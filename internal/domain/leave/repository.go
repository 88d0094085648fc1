package leave

import (
	"context"
	"time"
)

// LeaveRepository is the read side of the leave workflow. Creation and approval
// live outside this service.
type LeaveRepository interface {
	// FindApproved returns approved requests for userIDs that overlap [start, end].
	FindApproved(ctx context.Context, userIDs []string, start, end time.Time) ([]LeaveRequest, error)

	// CountPending counts pending requests for userIDs.
	CountPending(ctx context.Context, userIDs []string) (int64, error)
}
