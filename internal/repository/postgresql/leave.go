package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const leaveColumns = `id::text, user_id::text, leave_type, start_date, end_date, total_days, reason,
	status, approved_at, approved_by::text, created_at, updated_at`

type LeaveRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) *LeaveRepositoryImpl {
	return &LeaveRepositoryImpl{db: db}
}

// FindApproved implements leave.LeaveRepository.
func (r *LeaveRepositoryImpl) FindApproved(ctx context.Context, userIDs []string, start, end time.Time) ([]leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + leaveColumns + `
		FROM leave_requests
		WHERE user_id = ANY($1::uuid[])
		  AND status = $2
		  AND start_date <= $4 AND end_date >= $3
		ORDER BY start_date, id
	`
	rows, err := q.Query(ctx, query, validUUIDs(userIDs), leave.StatusApproved, start, end)
	if err != nil {
		return nil, fmt.Errorf("find approved leave: %w", err)
	}
	defer rows.Close()

	requests := make([]leave.LeaveRequest, 0)
	for rows.Next() {
		lr, err := scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leave request: %w", err)
		}
		requests = append(requests, lr)
	}
	return requests, rows.Err()
}

// CountPending implements leave.LeaveRepository.
func (r *LeaveRepositoryImpl) CountPending(ctx context.Context, userIDs []string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM leave_requests WHERE user_id = ANY($1::uuid[]) AND status = $2
	`, validUUIDs(userIDs), leave.StatusPending).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count pending leave: %w", err)
	}
	return total, nil
}

// Create inserts a leave request. Used for seeding; approval lives elsewhere.
func (r *LeaveRepositoryImpl) Create(ctx context.Context, lr leave.LeaveRequest) (leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	if lr.TotalDays == 0 {
		lr.TotalDays = lr.Days()
	}
	query := `
		INSERT INTO leave_requests (user_id, leave_type, start_date, end_date, total_days, reason, status, approved_at, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid)
		RETURNING ` + leaveColumns

	created, err := scanLeave(q.QueryRow(ctx, query,
		lr.UserID,
		lr.LeaveType,
		lr.StartDate,
		lr.EndDate,
		lr.TotalDays,
		lr.Reason,
		lr.Status,
		lr.ApprovedAt,
		lr.ApprovedBy,
	))
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("create leave request: %w", err)
	}
	return created, nil
}

func scanLeave(row pgx.Row) (leave.LeaveRequest, error) {
	var lr leave.LeaveRequest
	err := row.Scan(
		&lr.ID,
		&lr.UserID,
		&lr.LeaveType,
		&lr.StartDate,
		&lr.EndDate,
		&lr.TotalDays,
		&lr.Reason,
		&lr.Status,
		&lr.ApprovedAt,
		&lr.ApprovedBy,
		&lr.CreatedAt,
		&lr.UpdatedAt,
	)
	return lr, err
}

var _ leave.LeaveRepository = (*LeaveRepositoryImpl)(nil)
