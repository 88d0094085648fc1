// Package memory is an in-process store with the same conflict semantics as
// the PostgreSQL repositories. Every write happens under one mutex so the
// single-open-session check and the insert are atomic.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]user.User
	sessions map[string]*attendance.Session
	breaks   map[string]*attendance.Break
	leaves   map[string]leave.LeaveRequest

	// userID -> open session id
	openSessions map[string]string
	// sessionID -> open break id
	openBreaks map[string]string

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]user.User),
		sessions:     make(map[string]*attendance.Session),
		breaks:       make(map[string]*attendance.Break),
		leaves:       make(map[string]leave.LeaveRequest),
		openSessions: make(map[string]string),
		openBreaks:   make(map[string]string),
		now:          time.Now,
	}
}

// ========== SEEDING ==========

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = newID()
	}
	s.users[u.ID] = u
}

// PutLeave inserts or replaces a leave request.
func (s *Store) PutLeave(l leave.LeaveRequest) leave.LeaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = newID()
	}
	if l.TotalDays == 0 {
		l.TotalDays = l.Days()
	}
	s.leaves[l.ID] = l
	return l
}

// PutSession inserts a historical session as-is. An open session replaces
// nothing: it returns ErrOpenSessionExists like CreateSession.
func (s *Store) PutSession(sess attendance.Session) (attendance.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.IsOpen() {
		if _, exists := s.openSessions[sess.UserID]; exists {
			return attendance.Session{}, attendance.ErrOpenSessionExists
		}
	}
	if sess.ID == "" {
		sess.ID = newID()
	}
	stored := sess
	stored.Breaks = nil
	s.sessions[stored.ID] = &stored
	if stored.IsOpen() {
		s.openSessions[stored.UserID] = stored.ID
	}
	for _, b := range sess.Breaks {
		if b.ID == "" {
			b.ID = newID()
		}
		b.SessionID = stored.ID
		b.UserID = stored.UserID
		bb := b
		s.breaks[bb.ID] = &bb
		if bb.IsOpen() {
			s.openBreaks[stored.ID] = bb.ID
		}
	}
	return s.withBreaks(&stored), nil
}

// ========== user.UserRepository ==========

func (s *Store) GetByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) Find(ctx context.Context, filter user.Filter) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, u.ID) {
			continue
		}
		if filter.ManagerID != nil && !u.ReportsTo(*filter.ManagerID) {
			continue
		}
		if filter.Department != nil && u.DepartmentName() != *filter.Department {
			continue
		}
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ========== attendance.SessionRepository ==========

func (s *Store) FindSessions(ctx context.Context, userIDs []string, start, end time.Time) ([]attendance.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]attendance.Session, 0)
	for _, sess := range s.sessions {
		if !slices.Contains(userIDs, sess.UserID) {
			continue
		}
		if sess.Date.Before(start) || sess.Date.After(end) {
			continue
		}
		out = append(out, s.withBreaks(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClockIn.Equal(out[j].ClockIn) {
			return out[i].ClockIn.Before(out[j].ClockIn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) FindOpenSession(ctx context.Context, userID string) (attendance.Session, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.openSessions[userID]
	if !ok {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	return s.withBreaks(s.sessions[id]), nil
}

func (s *Store) CreateSession(ctx context.Context, n attendance.NewSession) (attendance.Session, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.openSessions[n.UserID]; exists {
		return attendance.Session{}, attendance.ErrOpenSessionExists
	}

	now := s.now()
	sess := &attendance.Session{
		ID:         newID(),
		UserID:     n.UserID,
		Date:       n.Date,
		ClockIn:    n.ClockIn,
		LocationIn: n.LocationIn,
		StatusHint: n.StatusHint,
		Notes:      n.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.sessions[sess.ID] = sess
	s.openSessions[n.UserID] = sess.ID
	return *sess, nil
}

func (s *Store) CloseSession(ctx context.Context, c attendance.CloseSession) (attendance.Session, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[c.SessionID]
	if !ok || !sess.IsOpen() {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}

	if breakID, ok := s.openBreaks[sess.ID]; ok {
		s.endBreakLocked(breakID, c.ClockOut)
	}

	clockOut := c.ClockOut
	total := c.TotalHours
	sess.ClockOut = &clockOut
	sess.LocationOut = c.LocationOut
	sess.StatusHint = c.StatusHint
	sess.TotalHours = &total
	sess.Notes = c.Notes
	sess.UpdatedAt = s.now()
	delete(s.openSessions, sess.UserID)

	return s.withBreaks(sess), nil
}

func (s *Store) CountOpenSessions(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.openSessions)), nil
}

func (s *Store) FindOpenBreak(ctx context.Context, sessionID string) (attendance.Break, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Break{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.openBreaks[sessionID]
	if !ok {
		return attendance.Break{}, attendance.ErrBreakNotFound
	}
	return *s.breaks[id], nil
}

func (s *Store) CreateBreak(ctx context.Context, n attendance.NewBreak) (attendance.Break, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Break{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[n.SessionID]
	if !ok || !sess.IsOpen() {
		return attendance.Break{}, attendance.ErrSessionNotFound
	}
	if _, exists := s.openBreaks[n.SessionID]; exists {
		return attendance.Break{}, attendance.ErrOpenBreakExists
	}

	b := &attendance.Break{
		ID:         newID(),
		SessionID:  n.SessionID,
		UserID:     n.UserID,
		BreakStart: n.BreakStart,
		BreakType:  n.BreakType,
		Notes:      n.Notes,
		CreatedAt:  s.now(),
	}
	s.breaks[b.ID] = b
	s.openBreaks[n.SessionID] = b.ID
	return *b, nil
}

func (s *Store) EndBreak(ctx context.Context, breakID string, end time.Time) (attendance.Break, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Break{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breaks[breakID]
	if !ok || !b.IsOpen() {
		return attendance.Break{}, attendance.ErrBreakNotFound
	}
	s.endBreakLocked(breakID, end)
	return *b, nil
}

func (s *Store) endBreakLocked(breakID string, end time.Time) {
	b := s.breaks[breakID]
	if end.Before(b.BreakStart) {
		end = b.BreakStart
	}
	hours := attendance.HoursBetween(b.BreakStart, end)
	b.BreakEnd = &end
	b.TotalBreakHours = &hours
	delete(s.openBreaks, b.SessionID)
}

// withBreaks copies sess and attaches its breaks ordered by start.
func (s *Store) withBreaks(sess *attendance.Session) attendance.Session {
	out := *sess
	out.Breaks = nil
	for _, b := range s.breaks {
		if b.SessionID == sess.ID {
			out.Breaks = append(out.Breaks, *b)
		}
	}
	sort.Slice(out.Breaks, func(i, j int) bool {
		return out.Breaks[i].BreakStart.Before(out.Breaks[j].BreakStart)
	})
	return out
}

// ========== leave.LeaveRepository ==========

func (s *Store) FindApproved(ctx context.Context, userIDs []string, start, end time.Time) ([]leave.LeaveRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]leave.LeaveRequest, 0)
	for _, l := range s.leaves {
		if !l.IsApproved() || !slices.Contains(userIDs, l.UserID) || !l.Overlaps(start, end) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountPending(ctx context.Context, userIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, l := range s.leaves {
		if l.Status == leave.StatusPending && slices.Contains(userIDs, l.UserID) {
			n++
		}
	}
	return n, nil
}

var (
	_ user.UserRepository          = (*Store)(nil)
	_ attendance.SessionRepository = (*Store)(nil)
	_ leave.LeaveRepository        = (*Store)(nil)
)

// newID returns a time-ordered id so insertion order survives a sort by id.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
