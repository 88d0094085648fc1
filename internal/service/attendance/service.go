package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/notification"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/metrics"
)

const timeLayout = time.RFC3339

type AttendanceServiceImpl struct {
	users        user.UserRepository
	sessions     attendance.SessionRepository
	leaves       leave.LeaveRepository
	resolver     *Resolver
	materializer *Materializer
	shift        attendance.ShiftPolicy
	publisher    notification.Publisher
	metrics      metrics.Recorder
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*AttendanceServiceImpl)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *AttendanceServiceImpl) { a.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *AttendanceServiceImpl) { a.logger = logger }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(a *AttendanceServiceImpl) { a.metrics = rec }
}

func WithPublisher(p notification.Publisher) Option {
	return func(a *AttendanceServiceImpl) { a.publisher = p }
}

// timePtrToString safely converts a *time.Time to a string.
func timePtrToString(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	format := t.In(loc).Format(timeLayout)
	return &format
}

// CurrentStatus implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) CurrentStatus(ctx context.Context, userID string) (attendance.CurrentStatusResponse, error) {
	return a.StatusAt(ctx, userID, a.now())
}

// StatusAt computes the live status of userID as of now.
func (a *AttendanceServiceImpl) StatusAt(ctx context.Context, userID string, now time.Time) (attendance.CurrentStatusResponse, error) {
	u, err := a.loadUser(ctx, userID)
	if err != nil {
		return attendance.CurrentStatusResponse{}, err
	}

	today := a.resolver.Today(now)
	loc := a.resolver.Location()

	todays, err := a.sessions.FindSessions(ctx, []string{u.ID}, today, today)
	if err != nil {
		return attendance.CurrentStatusResponse{}, storeError("find sessions", err)
	}

	var open *attendance.Session
	s, err := a.sessions.FindOpenSession(ctx, u.ID)
	switch {
	case err == nil:
		open = &s
	case !errors.Is(err, attendance.ErrSessionNotFound):
		return attendance.CurrentStatusResponse{}, storeError("find open session", err)
	}

	lv, err := a.approvedLeaveOn(ctx, u.ID, today)
	if err != nil {
		return attendance.CurrentStatusResponse{}, err
	}

	rows := a.resolver.Resolve(u, today, todays, lv, now)

	resp := attendance.CurrentStatusResponse{
		Date:              attendance.DateKey(today),
		Status:            string(rows[len(rows)-1].Status),
		AccruedHoursToday: rows[0].TotalHoursForDay,
		Today:             make([]attendance.AttendanceRowResponse, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Today = append(resp.Today, toRowResponse(row, loc))
	}

	switch {
	case open != nil:
		resp.State = attendance.StateClockedIn
		resp.HasOpenSession = true
		sr := toSessionResponse(*open, loc)
		resp.OpenSession = &sr
		resp.CanClockOut = true

		b, err := a.sessions.FindOpenBreak(ctx, open.ID)
		switch {
		case err == nil:
			br := toBreakResponse(b, loc)
			resp.OnBreak = true
			resp.OpenBreak = &br
		case !errors.Is(err, attendance.ErrBreakNotFound):
			return attendance.CurrentStatusResponse{}, storeError("find open break", err)
		}

		if !open.Date.Equal(today) {
			resp.Message = fmt.Sprintf("Session from %s is still open", attendance.DateKey(open.Date))
		} else {
			resp.Message = "Clocked in"
		}
	case !u.IsActive:
		resp.State = attendance.StateNotClockedIn
		resp.Message = "User is inactive"
	case lv != nil:
		resp.State = attendance.StateOnLeave
		resp.Message = fmt.Sprintf("On approved %s leave", lv.LeaveType)
	default:
		resp.State = attendance.StateNotClockedIn
		resp.CanClockIn = true
		if len(todays) > 0 {
			resp.Message = "Clocked out"
		} else {
			resp.Message = "Not clocked in yet"
		}
	}

	return resp, nil
}

// ClockIn implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ClockIn(ctx context.Context, req attendance.ClockInRequest) (attendance.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SessionResponse{}, err
	}

	u, err := a.loadUser(ctx, req.UserID)
	if err != nil {
		a.metrics.RecordClockOperation("clock_in", resultLabel(err))
		return attendance.SessionResponse{}, err
	}
	if !u.IsActive {
		a.metrics.RecordClockOperation("clock_in", "inactive")
		return attendance.SessionResponse{}, user.ErrUserInactive
	}

	now := a.now()
	today := a.resolver.Today(now)

	lv, err := a.approvedLeaveOn(ctx, u.ID, today)
	if err != nil {
		a.metrics.RecordClockOperation("clock_in", resultLabel(err))
		return attendance.SessionResponse{}, err
	}
	if lv != nil {
		a.metrics.RecordClockOperation("clock_in", resultLabel(attendance.ErrOnApprovedLeave))
		return attendance.SessionResponse{}, attendance.ErrOnApprovedLeave
	}

	hint := attendance.StatusPresent
	if a.shift.IsLate(now) {
		hint = attendance.StatusLate
	}

	// The store rejects a second open session atomically.
	s, err := a.sessions.CreateSession(ctx, attendance.NewSession{
		UserID:     u.ID,
		Date:       today,
		ClockIn:    now,
		LocationIn: req.Location,
		StatusHint: hint,
		Notes:      req.Notes,
	})
	if err != nil {
		if errors.Is(err, attendance.ErrOpenSessionExists) {
			err = attendance.ErrAlreadyClockedIn
		} else {
			err = storeError("create session", err)
		}
		a.metrics.RecordClockOperation("clock_in", resultLabel(err))
		return attendance.SessionResponse{}, err
	}

	a.metrics.RecordClockOperation("clock_in", "ok")
	a.publish(ctx, u, notification.Event{
		Type:      notification.TypeSessionOpened,
		SessionID: s.ID,
		At:        s.ClockIn,
		Status:    string(s.StatusHint),
	})

	return toSessionResponse(s, a.resolver.Location()), nil
}

// ClockOut implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ClockOut(ctx context.Context, req attendance.ClockOutRequest) (attendance.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SessionResponse{}, err
	}

	u, err := a.loadUser(ctx, req.UserID)
	if err != nil {
		a.metrics.RecordClockOperation("clock_out", resultLabel(err))
		return attendance.SessionResponse{}, err
	}

	open, err := a.sessions.FindOpenSession(ctx, u.ID)
	if err != nil {
		if errors.Is(err, attendance.ErrSessionNotFound) {
			err = attendance.ErrNoOpenSession
		} else {
			err = storeError("find open session", err)
		}
		a.metrics.RecordClockOperation("clock_out", resultLabel(err))
		return attendance.SessionResponse{}, err
	}

	now := a.now()
	if now.Before(open.ClockIn) {
		now = open.ClockIn
	}

	hint := open.StatusHint
	if a.shift.IsEarly(now) {
		hint = attendance.StatusEarlyLeave
	}

	notes := req.Notes
	if notes == nil {
		notes = open.Notes
	}

	s, err := a.sessions.CloseSession(ctx, attendance.CloseSession{
		SessionID:   open.ID,
		ClockOut:    now,
		LocationOut: req.Location,
		StatusHint:  hint,
		TotalHours:  attendance.HoursBetween(open.ClockIn, now),
		Notes:       notes,
	})
	if err != nil {
		if errors.Is(err, attendance.ErrSessionNotFound) {
			err = attendance.ErrNoOpenSession
		} else {
			err = storeError("close session", err)
		}
		a.metrics.RecordClockOperation("clock_out", resultLabel(err))
		return attendance.SessionResponse{}, err
	}

	a.metrics.RecordClockOperation("clock_out", "ok")
	a.publish(ctx, u, notification.Event{
		Type:       notification.TypeSessionClosed,
		SessionID:  s.ID,
		At:         now,
		Status:     string(s.StatusHint),
		TotalHours: s.TotalHours,
	})

	return toSessionResponse(s, a.resolver.Location()), nil
}

// StartBreak implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) StartBreak(ctx context.Context, req attendance.StartBreakRequest) (attendance.BreakResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.BreakResponse{}, err
	}

	u, err := a.loadUser(ctx, req.UserID)
	if err != nil {
		a.metrics.RecordClockOperation("break_start", resultLabel(err))
		return attendance.BreakResponse{}, err
	}

	open, err := a.sessions.FindOpenSession(ctx, u.ID)
	if err != nil {
		if errors.Is(err, attendance.ErrSessionNotFound) {
			err = attendance.ErrNoOpenSession
		} else {
			err = storeError("find open session", err)
		}
		a.metrics.RecordClockOperation("break_start", resultLabel(err))
		return attendance.BreakResponse{}, err
	}

	now := a.now()
	b, err := a.sessions.CreateBreak(ctx, attendance.NewBreak{
		SessionID:  open.ID,
		UserID:     u.ID,
		BreakStart: now,
		BreakType:  req.BreakType,
		Notes:      req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrOpenBreakExists):
			err = attendance.ErrBreakInProgress
		case errors.Is(err, attendance.ErrSessionNotFound):
			err = attendance.ErrNoOpenSession
		default:
			err = storeError("create break", err)
		}
		a.metrics.RecordClockOperation("break_start", resultLabel(err))
		return attendance.BreakResponse{}, err
	}

	a.metrics.RecordClockOperation("break_start", "ok")
	a.publish(ctx, u, notification.Event{
		Type:      notification.TypeBreakStarted,
		SessionID: open.ID,
		BreakID:   &b.ID,
		At:        now,
	})

	return toBreakResponse(b, a.resolver.Location()), nil
}

// EndBreak implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) EndBreak(ctx context.Context, req attendance.EndBreakRequest) (attendance.BreakResponse, error) {
	u, err := a.loadUser(ctx, req.UserID)
	if err != nil {
		a.metrics.RecordClockOperation("break_end", resultLabel(err))
		return attendance.BreakResponse{}, err
	}

	b, err := a.findActiveBreak(ctx, u.ID)
	if err != nil {
		a.metrics.RecordClockOperation("break_end", resultLabel(err))
		return attendance.BreakResponse{}, err
	}

	now := a.now()
	if now.Before(b.BreakStart) {
		now = b.BreakStart
	}

	ended, err := a.sessions.EndBreak(ctx, b.ID, now)
	if err != nil {
		if errors.Is(err, attendance.ErrBreakNotFound) {
			err = attendance.ErrNoActiveBreak
		} else {
			err = storeError("end break", err)
		}
		a.metrics.RecordClockOperation("break_end", resultLabel(err))
		return attendance.BreakResponse{}, err
	}

	a.metrics.RecordClockOperation("break_end", "ok")
	a.publish(ctx, u, notification.Event{
		Type:       notification.TypeBreakEnded,
		SessionID:  ended.SessionID,
		BreakID:    &ended.ID,
		At:         now,
		TotalHours: ended.TotalBreakHours,
	})

	return toBreakResponse(ended, a.resolver.Location()), nil
}

func (a *AttendanceServiceImpl) findActiveBreak(ctx context.Context, userID string) (attendance.Break, error) {
	open, err := a.sessions.FindOpenSession(ctx, userID)
	if err != nil {
		if errors.Is(err, attendance.ErrSessionNotFound) {
			return attendance.Break{}, attendance.ErrNoActiveBreak
		}
		return attendance.Break{}, storeError("find open session", err)
	}
	b, err := a.sessions.FindOpenBreak(ctx, open.ID)
	if err != nil {
		if errors.Is(err, attendance.ErrBreakNotFound) {
			return attendance.Break{}, attendance.ErrNoActiveBreak
		}
		return attendance.Break{}, storeError("find open break", err)
	}
	return b, nil
}

// GetMyAttendance implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetMyAttendance(ctx context.Context, userID string, filter attendance.MyAttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	u, err := a.loadUser(ctx, userID)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	now := a.now()
	today := a.resolver.Today(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	start, end, err := parseRange(filter.StartDate, filter.EndDate, monthStart, today)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	rows, err := a.materializer.Materialize(ctx, []user.User{u}, start, end, now)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	rowFilter := RowFilter{}
	if filter.Status != nil && *filter.Status != "" {
		st := attendance.Status(*filter.Status)
		rowFilter.Status = &st
	}

	return a.page(rows, rowFilter, filter.Page, filter.Limit, start, end), nil
}

// ListTeamAttendance implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ListTeamAttendance(ctx context.Context, actorID string, filter attendance.TeamAttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	actor, err := a.loadUser(ctx, actorID)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	now := a.now()
	today := a.resolver.Today(now)
	start, end, err := parseRange(filter.StartDate, filter.EndDate, today, today)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	users, err := a.ScopedUsers(ctx, actor, filter.UserID)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	rows, err := a.materializer.Materialize(ctx, users, start, end, now)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	rowFilter := RowFilter{Department: filter.Department}
	if filter.Status != nil && *filter.Status != "" {
		st := attendance.Status(*filter.Status)
		rowFilter.Status = &st
	}
	if filter.Search != nil {
		rowFilter.Search = *filter.Search
	}

	return a.page(rows, rowFilter, filter.Page, filter.Limit, start, end), nil
}

// ScopedUsers returns the users actor may see. A specific target outside the
// scope is rejected with ErrUnauthorized before anything is materialized.
func (a *AttendanceServiceImpl) ScopedUsers(ctx context.Context, actor user.User, targetID *string) ([]user.User, error) {
	scope := ScopeFor(actor)

	if targetID != nil && *targetID != "" {
		target, err := a.loadUser(ctx, *targetID)
		if err != nil {
			return nil, err
		}
		if target.ID != actor.ID && !scope.Allows(target) {
			return nil, attendance.ErrUnauthorized
		}
		return []user.User{target}, nil
	}

	users, err := a.users.Find(ctx, scope.UserFilter())
	if err != nil {
		return nil, storeError("find users", err)
	}
	return users, nil
}

func (a *AttendanceServiceImpl) page(rows []attendance.DayStatus, filter RowFilter, page, limit int, start, end time.Time) attendance.ListAttendanceResponse {
	pageRows, total := Query(rows, filter, page, limit)

	loc := a.resolver.Location()
	responses := make([]attendance.AttendanceRowResponse, 0, len(pageRows))
	for _, row := range pageRows {
		responses = append(responses, toRowResponse(row, loc))
	}

	showing := fmt.Sprintf("%d-%d of %d", (page-1)*limit+1, min(page*limit, int(total)), total)
	if total == 0 || len(pageRows) == 0 {
		showing = fmt.Sprintf("0 of %d", total)
	}

	return attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        page,
		Limit:       limit,
		TotalPages:  TotalPages(total, limit),
		Showing:     showing,
		StartDate:   attendance.DateKey(start),
		EndDate:     attendance.DateKey(end),
		Attendances: responses,
	}
}

func (a *AttendanceServiceImpl) loadUser(ctx context.Context, id string) (user.User, error) {
	u, err := a.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, err
		}
		return user.User{}, storeError("get user", err)
	}
	return u, nil
}

func (a *AttendanceServiceImpl) approvedLeaveOn(ctx context.Context, userID string, date time.Time) (*leave.LeaveRequest, error) {
	leaves, err := a.leaves.FindApproved(ctx, []string{userID}, date, date)
	if err != nil {
		return nil, storeError("find approved leave", err)
	}
	for i := range leaves {
		if leaves[i].IsApproved() && leaves[i].Covers(date) {
			return &leaves[i], nil
		}
	}
	return nil, nil
}

func (a *AttendanceServiceImpl) publish(ctx context.Context, u user.User, event notification.Event) {
	if a.publisher == nil {
		return
	}
	event.UserID = u.ID
	event.UserName = u.Name
	event.ManagerID = u.ManagerID

	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "notification publish panicked",
				slog.String("event", string(event.Type)),
				slog.Any("panic", r))
		}
	}()
	a.publisher.Publish(ctx, event)
}

// parseRange applies defaults and bounds. Inputs were already format-checked.
func parseRange(startStr, endStr *string, defStart, defEnd time.Time) (time.Time, time.Time, error) {
	start, end := defStart, defEnd
	if startStr != nil && *startStr != "" {
		d, err := attendance.ParseDate(*startStr)
		if err != nil {
			return time.Time{}, time.Time{}, attendance.ErrInvalidDateRange
		}
		start = d
		if endStr == nil || *endStr == "" {
			end = start
			if defEnd.After(start) {
				end = defEnd
			}
		}
	}
	if endStr != nil && *endStr != "" {
		d, err := attendance.ParseDate(*endStr)
		if err != nil {
			return time.Time{}, time.Time{}, attendance.ErrInvalidDateRange
		}
		end = d
		if startStr == nil || *startStr == "" {
			if start.After(end) {
				start = end
			}
		}
	}
	if err := CheckRange(start, end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		return "already_clocked_in"
	case errors.Is(err, attendance.ErrOnApprovedLeave):
		return "on_approved_leave"
	case errors.Is(err, attendance.ErrNoOpenSession):
		return "no_open_session"
	case errors.Is(err, attendance.ErrBreakInProgress):
		return "break_in_progress"
	case errors.Is(err, attendance.ErrNoActiveBreak):
		return "no_active_break"
	case errors.Is(err, attendance.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, user.ErrUserNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}

func toSessionResponse(s attendance.Session, loc *time.Location) attendance.SessionResponse {
	resp := attendance.SessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		Date:        attendance.DateKey(s.Date),
		ClockIn:     s.ClockIn.In(loc).Format(timeLayout),
		ClockOut:    timePtrToString(s.ClockOut, loc),
		LocationIn:  s.LocationIn,
		LocationOut: s.LocationOut,
		Status:      string(s.StatusHint),
		TotalHours:  s.TotalHours,
		Notes:       s.Notes,
	}
	for _, b := range s.Breaks {
		resp.Breaks = append(resp.Breaks, toBreakResponse(b, loc))
	}
	return resp
}

func toBreakResponse(b attendance.Break, loc *time.Location) attendance.BreakResponse {
	return attendance.BreakResponse{
		ID:              b.ID,
		SessionID:       b.SessionID,
		BreakStart:      b.BreakStart.In(loc).Format(timeLayout),
		BreakEnd:        timePtrToString(b.BreakEnd, loc),
		BreakType:       string(b.BreakType),
		TotalBreakHours: b.TotalBreakHours,
		Notes:           b.Notes,
	}
}

func toRowResponse(row attendance.DayStatus, loc *time.Location) attendance.AttendanceRowResponse {
	resp := attendance.AttendanceRowResponse{
		ID:               row.RowID(),
		UserID:           row.UserID,
		UserName:         row.UserName,
		Department:       row.Department,
		Date:             attendance.DateKey(row.Date),
		Status:           string(row.Status),
		IsSynthetic:      row.IsSynthetic(),
		Anomaly:          row.Anomaly,
		TotalHoursForDay: row.TotalHoursForDay,
	}
	if row.Session != nil {
		s := row.Session
		id := s.ID
		clockIn := s.ClockIn.In(loc).Format(timeLayout)
		resp.SessionID = &id
		resp.ClockIn = &clockIn
		resp.ClockOut = timePtrToString(s.ClockOut, loc)
		if !s.IsOpen() {
			hours := s.ClosedHours()
			resp.SessionHours = &hours
		}
		resp.BreakHours = s.BreakHours()
		for _, b := range s.Breaks {
			resp.Breaks = append(resp.Breaks, toBreakResponse(b, loc))
		}
	}
	if row.Leave != nil {
		lt := row.Leave.LeaveType
		resp.LeaveType = &lt
	}
	return resp
}

func NewAttendanceService(
	userRepo user.UserRepository,
	sessionRepo attendance.SessionRepository,
	leaveRepo leave.LeaveRepository,
	resolver *Resolver,
	materializer *Materializer,
	shift attendance.ShiftPolicy,
	opts ...Option,
) *AttendanceServiceImpl {
	a := &AttendanceServiceImpl{
		users:        userRepo,
		sessions:     sessionRepo,
		leaves:       leaveRepo,
		resolver:     resolver,
		materializer: materializer,
		shift:        shift,
		metrics:      metrics.Nop{},
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ attendance.AttendanceService = (*AttendanceServiceImpl)(nil)
