package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/report"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/metrics"
	attendanceService "github.com/cmlabs-hris/hris-attendance-go/internal/service/attendance"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const (
	trendDays          = 7
	recentActivityDays = 7
	recentActivityMax  = 5
)

// Config holds report service configuration
type Config struct {
	Denominator report.RateDenominator
	CacheTTL    time.Duration // <= 0 disables caching
}

type ReportServiceImpl struct {
	users        user.UserRepository
	sessions     attendance.SessionRepository
	leaves       leave.LeaveRepository
	materializer *attendanceService.Materializer
	resolver     *attendanceService.Resolver
	config       Config
	cache        *cache.Cache
	metrics      metrics.Recorder
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*ReportServiceImpl)

func WithClock(now func() time.Time) Option {
	return func(r *ReportServiceImpl) { r.now = now }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(r *ReportServiceImpl) { r.metrics = rec }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *ReportServiceImpl) { r.logger = logger }
}

// GetDashboard implements report.ReportService.
func (r *ReportServiceImpl) GetDashboard(ctx context.Context, actorID string) (report.DashboardResponse, error) {
	// Not cached: present counts and live-accrued hours move every minute.
	now := r.now()
	today := r.resolver.Today(now)

	users, err := r.scopedUsers(ctx, actorID)
	if err != nil {
		return report.DashboardResponse{}, err
	}
	ids := userIDs(users)

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	trendStart := today.AddDate(0, 0, -(trendDays - 1))

	var (
		month    report.Summary
		trend    report.Summary
		pending  int64
		recent   []report.RecentActivity
		g, gctx  = errgroup.WithContext(ctx)
		userByID = make(map[string]user.User, len(users))
	)
	for _, u := range users {
		userByID[u.ID] = u
	}

	g.Go(func() error {
		rows, err := r.materializer.Materialize(gctx, users, monthStart, today, now)
		if err != nil {
			return err
		}
		month = Aggregate(rows, AggregateOptions{Today: today, Denominator: r.config.Denominator})
		return nil
	})
	g.Go(func() error {
		rows, err := r.materializer.Materialize(gctx, users, trendStart, today, now)
		if err != nil {
			return err
		}
		trend = Aggregate(rows, AggregateOptions{Today: today, Denominator: r.config.Denominator})
		return nil
	})
	g.Go(func() error {
		if len(ids) == 0 {
			return nil
		}
		n, err := r.leaves.CountPending(gctx, ids)
		if err != nil {
			return storeError("count pending leave", err)
		}
		pending = n
		return nil
	})
	g.Go(func() error {
		if len(ids) == 0 {
			return nil
		}
		sessions, err := r.sessions.FindSessions(gctx, ids, today.AddDate(0, 0, -(recentActivityDays-1)), today)
		if err != nil {
			return storeError("find recent sessions", err)
		}
		recent = recentActivities(sessions, userByID, r.resolver.Location())
		return nil
	})
	if err := g.Wait(); err != nil {
		return report.DashboardResponse{}, err
	}

	resp := report.DashboardResponse{
		Date:                attendance.DateKey(today),
		TotalEmployees:      month.TotalEmployees,
		PresentToday:        month.PresentToday,
		LateToday:           month.LateToday,
		AbsentToday:         month.AbsentToday,
		OnLeaveToday:        month.OnLeaveToday,
		TotalHoursThisMonth: month.TotalHoursInRange,
		AvgHoursPerDay:      month.AverageHoursPerActiveDay,
		AttendanceRatePct:   month.AttendanceRatePct,
		PendingLeaves:       pending,
		Trend:               trend.Trend,
		RecentActivities:    recent,
	}
	return resp, nil
}

// GetAttendanceReport implements report.ReportService.
func (r *ReportServiceImpl) GetAttendanceReport(ctx context.Context, actorID string, req report.AttendanceReportRequest) (report.AttendanceReportResponse, error) {
	if err := req.Validate(); err != nil {
		return report.AttendanceReportResponse{}, err
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return report.AttendanceReportResponse{}, err
	}

	dept := ""
	if req.Department != nil {
		dept = strings.TrimSpace(*req.Department)
	}
	now := r.now()
	today := r.resolver.Today(now)

	// Only closed ranges are cached. A range reaching today still changes
	// with every clock event and live accrual.
	historical := end.Before(today)
	key := fmt.Sprintf("attendance:%s:%s:%s:%s", actorID, req.StartDate, req.EndDate, strings.ToLower(dept))
	if historical {
		if cached, ok := r.cached(key); ok {
			return cached.(report.AttendanceReportResponse), nil
		}
	}

	users, err := r.scopedUsers(ctx, actorID)
	if err != nil {
		return report.AttendanceReportResponse{}, err
	}
	if dept != "" {
		users = filterDepartment(users, dept)
	}

	rows, err := r.materializer.Materialize(ctx, users, start, end, now)
	if err != nil {
		return report.AttendanceReportResponse{}, err
	}

	if today.After(end) || today.Before(start) {
		today = end
	}

	resp := report.AttendanceReportResponse{
		Period:      report.Period{StartDate: req.StartDate, EndDate: req.EndDate},
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Summary:     Aggregate(rows, AggregateOptions{Today: today, Denominator: r.config.Denominator}),
		Employees:   EmployeeRows(rows, r.config.Denominator),
	}
	r.logger.DebugContext(ctx, "attendance report generated",
		slog.String("actor_id", actorID),
		slog.Int("users", len(users)),
		slog.Int("rows", len(rows)))

	if historical {
		r.store(key, resp)
	}
	return resp, nil
}

// GetLeaveReport implements report.ReportService.
func (r *ReportServiceImpl) GetLeaveReport(ctx context.Context, actorID string, req report.LeaveReportRequest) (report.LeaveReportResponse, error) {
	if err := req.Validate(); err != nil {
		return report.LeaveReportResponse{}, err
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return report.LeaveReportResponse{}, err
	}

	users, err := r.scopedUsers(ctx, actorID)
	if err != nil {
		return report.LeaveReportResponse{}, err
	}

	resp := report.LeaveReportResponse{
		Period:          report.Period{StartDate: req.StartDate, EndDate: req.EndDate},
		GeneratedAt:     r.now().UTC().Format(time.RFC3339),
		Leaves:          []report.LeaveReportItem{},
		DepartmentStats: map[string]report.DepartmentLeaveStats{},
	}
	if len(users) == 0 {
		return resp, nil
	}

	leaves, err := r.leaves.FindApproved(ctx, userIDs(users), start, end)
	if err != nil {
		return report.LeaveReportResponse{}, storeError("find approved leave", err)
	}

	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	sort.SliceStable(leaves, func(i, j int) bool {
		if !leaves[i].StartDate.Equal(leaves[j].StartDate) {
			return leaves[i].StartDate.Before(leaves[j].StartDate)
		}
		return byID[leaves[i].UserID].Name < byID[leaves[j].UserID].Name
	})

	for _, l := range leaves {
		u, ok := byID[l.UserID]
		if !ok || !l.IsApproved() {
			continue
		}
		dept := u.DepartmentName()

		var approvedAt *string
		if l.ApprovedAt != nil {
			s := l.ApprovedAt.UTC().Format(time.RFC3339)
			approvedAt = &s
		}
		resp.Leaves = append(resp.Leaves, report.LeaveReportItem{
			LeaveID:    l.ID,
			UserID:     u.ID,
			Employee:   u.Name,
			Email:      u.Email,
			Department: dept,
			LeaveType:  string(l.LeaveType),
			StartDate:  attendance.DateKey(l.StartDate),
			EndDate:    attendance.DateKey(l.EndDate),
			TotalDays:  l.Days(),
			Reason:     l.Reason,
			ApprovedAt: approvedAt,
		})

		stats, ok := resp.DepartmentStats[dept]
		if !ok {
			stats = report.DepartmentLeaveStats{LeaveTypes: map[string]int64{}}
		}
		stats.TotalLeaves++
		stats.TotalDays += int64(l.Days())
		stats.LeaveTypes[string(l.LeaveType)]++
		resp.DepartmentStats[dept] = stats
	}

	return resp, nil
}

func (r *ReportServiceImpl) scopedUsers(ctx context.Context, actorID string) ([]user.User, error) {
	actor, err := r.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, err
		}
		return nil, storeError("get user", err)
	}
	users, err := r.users.Find(ctx, attendanceService.ScopeFor(actor).UserFilter())
	if err != nil {
		return nil, storeError("find users", err)
	}
	return users, nil
}

func (r *ReportServiceImpl) cached(key string) (interface{}, bool) {
	if r.cache == nil {
		return nil, false
	}
	v, ok := r.cache.Get(key)
	r.metrics.RecordReportCache(ok)
	return v, ok
}

func (r *ReportServiceImpl) store(key string, v interface{}) {
	if r.cache == nil {
		return
	}
	r.cache.Set(key, v, cache.DefaultExpiration)
}

func recentActivities(sessions []attendance.Session, users map[string]user.User, loc *time.Location) []report.RecentActivity {
	last := func(s attendance.Session) time.Time {
		if s.ClockOut != nil {
			return *s.ClockOut
		}
		return s.ClockIn
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return last(sessions[i]).After(last(sessions[j]))
	})

	out := make([]report.RecentActivity, 0, recentActivityMax)
	for _, s := range sessions {
		if len(out) == recentActivityMax {
			break
		}
		u := users[s.UserID]
		a := report.RecentActivity{
			SessionID:  s.ID,
			UserID:     s.UserID,
			Employee:   u.Name,
			Department: u.DepartmentName(),
			Date:       attendance.DateKey(s.Date),
			Status:     string(s.StatusHint),
			ClockIn:    s.ClockIn.In(loc).Format(time.RFC3339),
		}
		if s.ClockOut != nil {
			co := s.ClockOut.In(loc).Format(time.RFC3339)
			a.ClockOut = &co
		}
		out = append(out, a)
	}
	return out
}

func filterDepartment(users []user.User, dept string) []user.User {
	out := make([]user.User, 0, len(users))
	for _, u := range users {
		if strings.EqualFold(u.DepartmentName(), dept) {
			out = append(out, u)
		}
	}
	return out
}

func userIDs(users []user.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := attendance.ParseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, report.ErrInvalidDateRange
	}
	end, err := attendance.ParseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, report.ErrInvalidDateRange
	}
	if err := attendanceService.CheckRange(start, end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", attendance.ErrStoreUnavailable, op, err)
}

func NewReportService(
	userRepo user.UserRepository,
	sessionRepo attendance.SessionRepository,
	leaveRepo leave.LeaveRepository,
	resolver *attendanceService.Resolver,
	materializer *attendanceService.Materializer,
	cfg Config,
	opts ...Option,
) *ReportServiceImpl {
	if cfg.Denominator == "" {
		cfg.Denominator = report.IncludeLeave
	}
	r := &ReportServiceImpl{
		users:        userRepo,
		sessions:     sessionRepo,
		leaves:       leaveRepo,
		resolver:     resolver,
		materializer: materializer,
		config:       cfg,
		metrics:      metrics.Nop{},
		logger:       slog.Default(),
		now:          time.Now,
	}
	if cfg.CacheTTL > 0 {
		r.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ report.ReportService = (*ReportServiceImpl)(nil)
