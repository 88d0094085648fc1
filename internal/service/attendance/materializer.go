package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxRangeDays caps a single materialization.
	MaxRangeDays = 366

	defaultChunkSize = 64
)

// Index holds sessions and approved leave keyed by (user, date) so each
// resolver call is a constant-time lookup.
type Index struct {
	sessions map[cellKey][]attendance.Session
	leaves   map[cellKey]*leave.LeaveRequest
}

type cellKey struct {
	userID string
	date   string
}

// BuildIndex buckets sessions by their date and expands each approved leave
// over the days it covers inside [start, end].
func BuildIndex(sessions []attendance.Session, leaves []leave.LeaveRequest, start, end time.Time) *Index {
	idx := &Index{
		sessions: make(map[cellKey][]attendance.Session, len(sessions)),
		leaves:   make(map[cellKey]*leave.LeaveRequest),
	}
	for _, s := range sessions {
		k := cellKey{userID: s.UserID, date: attendance.DateKey(s.Date)}
		idx.sessions[k] = append(idx.sessions[k], s)
	}

	for i := range leaves {
		lv := &leaves[i]
		if !lv.IsApproved() {
			continue
		}
		from, to := lv.StartDate, lv.EndDate
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		for _, d := range attendance.DaysInRange(from, to) {
			k := cellKey{userID: lv.UserID, date: attendance.DateKey(d)}
			if _, taken := idx.leaves[k]; !taken {
				idx.leaves[k] = lv
			}
		}
	}
	return idx
}

func (idx *Index) cell(userID string, date time.Time) ([]attendance.Session, *leave.LeaveRequest) {
	k := cellKey{userID: userID, date: attendance.DateKey(date)}
	return idx.sessions[k], idx.leaves[k]
}

// Materializer expands a user set over a date range into DayStatus rows.
type Materializer struct {
	sessions  attendance.SessionRepository
	leaves    leave.LeaveRepository
	resolver  *Resolver
	metrics   metrics.Recorder
	chunkSize int
}

func NewMaterializer(sessions attendance.SessionRepository, leaves leave.LeaveRepository, resolver *Resolver, rec metrics.Recorder) *Materializer {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Materializer{
		sessions:  sessions,
		leaves:    leaves,
		resolver:  resolver,
		metrics:   rec,
		chunkSize: defaultChunkSize,
	}
}

// Materialize loads sessions and approved leave for users over [start, end]
// and expands the grid. Store failures are reported as ErrStoreUnavailable.
func (m *Materializer) Materialize(ctx context.Context, users []user.User, start, end, now time.Time) ([]attendance.DayStatus, error) {
	if err := CheckRange(start, end); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return []attendance.DayStatus{}, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	sessions, err := m.sessions.FindSessions(ctx, ids, start, end)
	if err != nil {
		return nil, storeError("find sessions", err)
	}
	leaves, err := m.leaves.FindApproved(ctx, ids, start, end)
	if err != nil {
		return nil, storeError("find approved leave", err)
	}

	return m.Expand(ctx, users, start, end, BuildIndex(sessions, leaves, start, end), now)
}

// Expand runs the resolver over every (user, day) cell. Users are processed
// in parallel chunks; the context is checked between chunks. Output is
// ordered by date, then user name, then user id, independent of scheduling.
func (m *Materializer) Expand(ctx context.Context, users []user.User, start, end time.Time, idx *Index, now time.Time) ([]attendance.DayStatus, error) {
	began := time.Now()

	ordered := make([]user.User, len(users))
	copy(ordered, users)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].ID < ordered[j].ID
	})

	days := attendance.DaysInRange(start, end)

	// grid[u][d] is written by exactly one goroutine.
	grid := make([][][]attendance.DayStatus, len(ordered))

	chunk := m.chunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(ordered); lo += chunk {
		lo := lo
		hi := min(lo+chunk, len(ordered))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for ui := lo; ui < hi; ui++ {
				u := ordered[ui]
				cells := make([][]attendance.DayStatus, len(days))
				for di, d := range days {
					sessions, lv := idx.cell(u.ID, d)
					cells[di] = m.resolver.Resolve(u, d, sessions, lv, now)
				}
				grid[ui] = cells
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, cells := range grid {
		for _, rows := range cells {
			total += len(rows)
		}
	}

	out := make([]attendance.DayStatus, 0, total)
	for di := range days {
		for ui := range ordered {
			out = append(out, grid[ui][di]...)
		}
	}

	m.metrics.RecordMaterialize(time.Since(began), len(out))
	return out, nil
}

// CheckRange rejects inverted ranges and ranges longer than MaxRangeDays.
func CheckRange(start, end time.Time) error {
	if end.Before(start) {
		return attendance.ErrInvalidDateRange
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxRangeDays {
		return fmt.Errorf("%w: %d days exceeds %d", attendance.ErrDateRangeTooLarge, days, MaxRangeDays)
	}
	return nil
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", attendance.ErrStoreUnavailable, op, err)
}
