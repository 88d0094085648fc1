package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-attendance-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	s.AddJob("tick", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	s.AddJob("failing", time.Hour, func(context.Context) error {
		return errors.New("boom")
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Equal(t, int32(1), runs.Load())

	s.RunOnce(context.Background())
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	NewScheduler(nil).Stop()
}

type gaugeRecorder struct {
	metrics.Nop
	mu   sync.Mutex
	open int64
}

func (g *gaugeRecorder) SetOpenSessions(n int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = n
}

func TestAttendanceJobs_SampleOpenSessions(t *testing.T) {
	store := memory.NewStore()
	store.PutUser(user.User{ID: "u1", Name: "Alice", IsActive: true})
	store.PutUser(user.User{ID: "u2", Name: "Bob", IsActive: true})
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"u1", "u2"} {
		_, err := store.CreateSession(ctx, attendance.NewSession{UserID: id, Date: attendance.CalendarDate(now, time.UTC), ClockIn: now, StatusHint: attendance.StatusPresent})
		require.NoError(t, err)
	}

	rec := &gaugeRecorder{}
	jobs := NewAttendanceJobs(store, rec, nil)
	s := NewScheduler(nil)
	jobs.RegisterJobs(s)
	s.RunOnce(ctx)

	assert.Equal(t, int64(2), rec.open)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, jobs.SampleOpenSessions(cancelled))
}
