package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/metrics"
)

const openSessionsInterval = time.Minute

// AttendanceJobs samples session state for the metrics endpoint. Sessions
// are never closed or rewritten from here.
type AttendanceJobs struct {
	sessions attendance.SessionRepository
	metrics  metrics.Recorder
	logger   *slog.Logger
}

func NewAttendanceJobs(sessions attendance.SessionRepository, rec metrics.Recorder, logger *slog.Logger) *AttendanceJobs {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceJobs{sessions: sessions, metrics: rec, logger: logger}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("sample_open_sessions", openSessionsInterval, j.SampleOpenSessions)
}

// SampleOpenSessions publishes the number of sessions without a clock-out.
func (j *AttendanceJobs) SampleOpenSessions(ctx context.Context) error {
	n, err := j.sessions.CountOpenSessions(ctx)
	if err != nil {
		return fmt.Errorf("count open sessions: %w", err)
	}
	j.metrics.SetOpenSessions(n)
	j.logger.DebugContext(ctx, "open sessions sampled", slog.Int64("open_sessions", n))
	return nil
}
