package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(d time.Time, hour, minute int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

func activeUser(id, name string) user.User {
	return user.User{ID: id, Name: name, Email: id + "@example.com", Role: user.RoleEmployee, IsActive: true}
}

func closedSession(id, userID string, d time.Time, inH, inM, outH, outM int, hint attendance.Status) attendance.Session {
	out := at(d, outH, outM)
	return attendance.Session{
		ID:         id,
		UserID:     userID,
		Date:       d,
		ClockIn:    at(d, inH, inM),
		ClockOut:   &out,
		StatusHint: hint,
	}
}

func openSession(id, userID string, d time.Time, inH, inM int) attendance.Session {
	return attendance.Session{
		ID:         id,
		UserID:     userID,
		Date:       d,
		ClockIn:    at(d, inH, inM),
		StatusHint: attendance.StatusPresent,
	}
}

func approvedLeave(id, userID string, start, end time.Time) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:        id,
		UserID:    userID,
		LeaveType: leave.TypeAnnual,
		StartDate: start,
		EndDate:   end,
		Status:    leave.StatusApproved,
	}
}

var errBoom = errors.New("connection refused")

// failingStore fails every read with errBoom.
type failingStore struct{}

func (failingStore) FindSessions(context.Context, []string, time.Time, time.Time) ([]attendance.Session, error) {
	return nil, errBoom
}
func (failingStore) FindOpenSession(context.Context, string) (attendance.Session, error) {
	return attendance.Session{}, errBoom
}
func (failingStore) CreateSession(context.Context, attendance.NewSession) (attendance.Session, error) {
	return attendance.Session{}, errBoom
}
func (failingStore) CloseSession(context.Context, attendance.CloseSession) (attendance.Session, error) {
	return attendance.Session{}, errBoom
}
func (failingStore) CountOpenSessions(context.Context) (int64, error) { return 0, errBoom }
func (failingStore) FindOpenBreak(context.Context, string) (attendance.Break, error) {
	return attendance.Break{}, errBoom
}
func (failingStore) CreateBreak(context.Context, attendance.NewBreak) (attendance.Break, error) {
	return attendance.Break{}, errBoom
}
func (failingStore) EndBreak(context.Context, string, time.Time) (attendance.Break, error) {
	return attendance.Break{}, errBoom
}
func (failingStore) FindApproved(context.Context, []string, time.Time, time.Time) ([]leave.LeaveRequest, error) {
	return nil, errBoom
}
func (failingStore) CountPending(context.Context, []string) (int64, error) { return 0, errBoom }
