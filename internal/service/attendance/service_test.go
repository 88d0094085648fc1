package attendance

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/notification"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/validator"
	"github.com/cmlabs-hris/hris-attendance-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notification.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notification.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []notification.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notification.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type panickingPublisher struct{}

func (panickingPublisher) Publish(context.Context, notification.Event) { panic("socket closed") }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store *memory.Store
	svc   *AttendanceServiceImpl
	clock *clock
	pub   *recordingPublisher
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := memory.NewStore()
	mgr := "m1"
	eng := "Engineering"
	store.PutUser(user.User{ID: "a1", Name: "Admin", Role: user.RoleAdmin, IsActive: true})
	store.PutUser(user.User{ID: "m1", Name: "Maria", Role: user.RoleManager, Department: &eng, IsActive: true})
	store.PutUser(user.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: user.RoleEmployee, ManagerID: &mgr, Department: &eng, IsActive: true})
	store.PutUser(user.User{ID: "u2", Name: "Bob", Email: "bob@example.com", Role: user.RoleEmployee, ManagerID: &mgr, IsActive: true})
	store.PutUser(user.User{ID: "u3", Name: "Carl", Role: user.RoleEmployee, IsActive: true})
	store.PutUser(user.User{ID: "gone", Name: "Gone", Role: user.RoleEmployee, IsActive: false})

	c := &clock{now: now}
	pub := &recordingPublisher{}
	resolver := NewResolver(attendance.PolicySessionWins, time.UTC)
	svc := NewAttendanceService(store, store, store, resolver, newMaterializer(store), attendance.DefaultShiftPolicy(),
		WithClock(c.Now), WithPublisher(pub))

	return &fixture{store: store, svc: svc, clock: c, pub: pub}
}

func TestClockIn_ConcurrentCallsYieldOneSession(t *testing.T) {
	f := newFixture(t, at(date(2024, 6, 3), 8, 30))
	ctx := context.Background()

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if assert.ErrorIs(t, err, attendance.ErrAlreadyClockedIn) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, []notification.EventType{notification.TypeSessionOpened}, f.pub.types())
}

func TestClockIn_StatusHint(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 8, 59))
	ctx := context.Background()

	s, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1", Location: json.RawMessage(`{"lat":1,"lng":2}`)})
	require.NoError(t, err)
	assert.Equal(t, "present", s.Status)
	assert.Equal(t, "2024-06-03", s.Date)
	assert.JSONEq(t, `{"lat":1,"lng":2}`, string(s.LocationIn))

	f.clock.Set(at(d, 9, 15))
	s, err = f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "late", s.Status)
}

func TestClockIn_Rejections(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 0))
	ctx := context.Background()
	f.store.PutLeave(approvedLeave("", "u1", d.AddDate(0, 0, -1), d.AddDate(0, 0, 1)))

	_, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"})
	assert.ErrorIs(t, err, attendance.ErrOnApprovedLeave)
	assert.False(t, attendance.IsRetryable(err))

	_, err = f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "gone"})
	assert.ErrorIs(t, err, user.ErrUserInactive)

	_, err = f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "nobody"})
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	_, err = f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u2", Location: json.RawMessage(`{bad`)})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "location")

	assert.Empty(t, f.pub.types())
}

func TestClockIn_StaleOpenSessionBlocks(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 0))
	_, err := f.store.PutSession(openSession("", "u1", d.AddDate(0, 0, -1), 9, 0))
	require.NoError(t, err)

	_, err = f.svc.ClockIn(context.Background(), attendance.ClockInRequest{UserID: "u1"})
	assert.ErrorIs(t, err, attendance.ErrAlreadyClockedIn)
}

func TestClockOut(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 30))
	ctx := context.Background()

	_, err := f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u1"})
	assert.ErrorIs(t, err, attendance.ErrNoOpenSession)

	_, err = f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"})
	require.NoError(t, err)

	f.clock.Set(at(d, 18, 0))
	s, err := f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, s.ClockOut)
	require.NotNil(t, s.TotalHours)
	assert.InDelta(t, 8.5, *s.TotalHours, 1e-9)
	assert.Equal(t, "late", s.Status, "a late session keeps its hint when leaving on time")

	f.clock.Set(at(d, 19, 0))
	_, err = f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u2"})
	require.NoError(t, err)
	f.clock.Set(at(d, 20, 0))
	_, err = f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u2"})
	require.NoError(t, err)

	assert.Equal(t, []notification.EventType{
		notification.TypeSessionOpened,
		notification.TypeSessionClosed,
		notification.TypeSessionOpened,
		notification.TypeSessionClosed,
	}, f.pub.types())
}

func TestClockOut_EarlyLeave(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 8, 0))
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"})
	require.NoError(t, err)
	f.clock.Set(at(d, 15, 0))

	s, err := f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "early_leave", s.Status)
}

func TestReclockSameDay(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 0))
	ctx := context.Background()

	steps := []struct {
		h, m  int
		clock func() error
	}{
		{9, 0, func() error { _, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"}); return err }},
		{12, 0, func() error { _, err := f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u1"}); return err }},
		{13, 0, func() error { _, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"}); return err }},
		{17, 0, func() error { _, err := f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u1"}); return err }},
	}
	for _, step := range steps {
		f.clock.Set(at(d, step.h, step.m))
		require.NoError(t, step.clock())
	}

	status, err := f.svc.StatusAt(ctx, "u1", at(d, 18, 0))
	require.NoError(t, err)
	assert.Equal(t, attendance.StateNotClockedIn, status.State)
	assert.True(t, status.CanClockIn)
	assert.InDelta(t, 7.0, status.AccruedHoursToday, 1e-9)
	require.Len(t, status.Today, 2)
	for _, row := range status.Today {
		assert.InDelta(t, 7.0, row.TotalHoursForDay, 1e-9)
	}
}

func TestCurrentStatus_LiveAccrual(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 0))
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"})
	require.NoError(t, err)

	f.clock.Set(at(d, 10, 30))
	status, err := f.svc.CurrentStatus(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, attendance.StateClockedIn, status.State)
	assert.True(t, status.HasOpenSession)
	require.NotNil(t, status.OpenSession)
	assert.InDelta(t, 1.5, status.AccruedHoursToday, 1e-9)
	assert.True(t, status.CanClockOut)
	assert.False(t, status.CanClockIn)
	assert.Equal(t, "present", status.Status)
}

func TestCurrentStatus_OnLeaveAndAbsent(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 10, 0))
	f.store.PutLeave(approvedLeave("", "u1", d, d))
	ctx := context.Background()

	status, err := f.svc.CurrentStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StateOnLeave, status.State)
	assert.Equal(t, "on_leave", status.Status)
	assert.False(t, status.CanClockIn)

	status, err = f.svc.CurrentStatus(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, attendance.StateNotClockedIn, status.State)
	assert.Equal(t, "absent", status.Status)
	assert.True(t, status.CanClockIn)
	require.Len(t, status.Today, 1)
	assert.True(t, status.Today[0].IsSynthetic)
	assert.Equal(t, "absent-u2-2024-06-03", status.Today[0].ID)
}

func TestBreaks(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 0))
	ctx := context.Background()

	_, err := f.svc.StartBreak(ctx, attendance.StartBreakRequest{UserID: "u1"})
	assert.ErrorIs(t, err, attendance.ErrNoOpenSession)
	_, err = f.svc.EndBreak(ctx, attendance.EndBreakRequest{UserID: "u1"})
	assert.ErrorIs(t, err, attendance.ErrNoActiveBreak)

	_, err = f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"})
	require.NoError(t, err)

	f.clock.Set(at(d, 12, 0))
	b, err := f.svc.StartBreak(ctx, attendance.StartBreakRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "lunch", b.BreakType)

	_, err = f.svc.StartBreak(ctx, attendance.StartBreakRequest{UserID: "u1", BreakType: attendance.BreakCoffee})
	assert.ErrorIs(t, err, attendance.ErrBreakInProgress)

	status, err := f.svc.CurrentStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.OnBreak)

	f.clock.Set(at(d, 12, 45))
	ended, err := f.svc.EndBreak(ctx, attendance.EndBreakRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, ended.TotalBreakHours)
	assert.InDelta(t, 0.75, *ended.TotalBreakHours, 1e-9)

	_, err = f.svc.StartBreak(ctx, attendance.StartBreakRequest{UserID: "u1", BreakType: "nap"})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	// Breaks are reported but never netted out of worked hours
	f.clock.Set(at(d, 17, 0))
	s, err := f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.InDelta(t, 8.0, *s.TotalHours, 1e-9)
	require.Len(t, s.Breaks, 1)
}

func TestClockOut_EndsOngoingBreak(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 0))
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, attendance.ClockInRequest{UserID: "u1"})
	require.NoError(t, err)
	f.clock.Set(at(d, 16, 30))
	_, err = f.svc.StartBreak(ctx, attendance.StartBreakRequest{UserID: "u1", BreakType: attendance.BreakMeeting})
	require.NoError(t, err)

	f.clock.Set(at(d, 17, 0))
	s, err := f.svc.ClockOut(ctx, attendance.ClockOutRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, s.Breaks, 1)
	require.NotNil(t, s.Breaks[0].BreakEnd)
	assert.InDelta(t, 0.5, *s.Breaks[0].TotalBreakHours, 1e-9)
}

func TestPublisherFailureDoesNotFailClockIn(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 9, 0))
	f.svc.publisher = panickingPublisher{}

	_, err := f.svc.ClockIn(context.Background(), attendance.ClockInRequest{UserID: "u1"})
	assert.NoError(t, err)
}

func TestStoreUnavailable(t *testing.T) {
	d := date(2024, 6, 3)
	store := memory.NewStore()
	store.PutUser(activeUser("u1", "Alice"))
	svc := NewAttendanceService(store, failingStore{}, failingStore{}, NewResolver("", nil),
		NewMaterializer(failingStore{}, failingStore{}, NewResolver("", nil), nil),
		attendance.DefaultShiftPolicy(), WithClock(func() time.Time { return at(d, 9, 0) }))

	_, err := svc.ClockIn(context.Background(), attendance.ClockInRequest{UserID: "u1"})
	assert.ErrorIs(t, err, attendance.ErrStoreUnavailable)
	assert.True(t, attendance.IsRetryable(err))

	_, err = svc.CurrentStatus(context.Background(), "u1")
	assert.ErrorIs(t, err, attendance.ErrStoreUnavailable)
}

func TestGetMyAttendance_DefaultsToMonthToDate(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 20, 0))
	_, err := f.store.PutSession(closedSession("", "u1", date(2024, 6, 1), 8, 0, 16, 30, attendance.StatusPresent))
	require.NoError(t, err)

	resp, err := f.svc.GetMyAttendance(context.Background(), "u1", attendance.MyAttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", resp.StartDate)
	assert.Equal(t, "2024-06-03", resp.EndDate)
	assert.Equal(t, int64(3), resp.TotalCount)
	assert.Equal(t, "1-3 of 3", resp.Showing)
	assert.Equal(t, "present", resp.Attendances[0].Status)
	assert.Equal(t, "absent", resp.Attendances[1].Status)

	absent := "absent"
	resp, err = f.svc.GetMyAttendance(context.Background(), "u1", attendance.MyAttendanceFilter{Status: &absent})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.TotalCount)
}

func TestListTeamAttendance_Scope(t *testing.T) {
	d := date(2024, 6, 3)
	f := newFixture(t, at(d, 20, 0))
	ctx := context.Background()

	resp, err := f.svc.ListTeamAttendance(ctx, "m1", attendance.TeamAttendanceFilter{})
	require.NoError(t, err)
	var ids []string
	for _, row := range resp.Attendances {
		ids = append(ids, row.UserID)
	}
	assert.Equal(t, []string{"u1", "u2"}, ids)

	resp, err = f.svc.ListTeamAttendance(ctx, "a1", attendance.TeamAttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), resp.TotalCount)

	resp, err = f.svc.ListTeamAttendance(ctx, "u3", attendance.TeamAttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.TotalCount)

	outside := "u3"
	_, err = f.svc.ListTeamAttendance(ctx, "m1", attendance.TeamAttendanceFilter{UserID: &outside})
	assert.ErrorIs(t, err, attendance.ErrUnauthorized)

	inside := "u2"
	resp, err = f.svc.ListTeamAttendance(ctx, "m1", attendance.TeamAttendanceFilter{UserID: &inside})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.TotalCount)

	unassigned := "unassigned"
	resp, err = f.svc.ListTeamAttendance(ctx, "m1", attendance.TeamAttendanceFilter{Department: &unassigned})
	require.NoError(t, err)
	require.Len(t, resp.Attendances, 1)
	assert.Equal(t, "u2", resp.Attendances[0].UserID)
}

func TestListTeamAttendance_InvalidRange(t *testing.T) {
	f := newFixture(t, at(date(2024, 6, 3), 20, 0))
	start, end := "2024-06-05", "2024-06-01"

	_, err := f.svc.ListTeamAttendance(context.Background(), "a1", attendance.TeamAttendanceFilter{StartDate: &start, EndDate: &end})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	start, end = "2022-01-01", "2024-06-01"
	_, err = f.svc.ListTeamAttendance(context.Background(), "a1", attendance.TeamAttendanceFilter{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, attendance.ErrDateRangeTooLarge)
}
