package report

import "context"

// ReportService serves the role-scoped dashboard and range reports.
type ReportService interface {
	GetDashboard(ctx context.Context, actorID string) (DashboardResponse, error)

	// Per-employee aggregates over a date range
	GetAttendanceReport(ctx context.Context, actorID string, req AttendanceReportRequest) (AttendanceReportResponse, error)

	GetLeaveReport(ctx context.Context, actorID string, req LeaveReportRequest) (LeaveReportResponse, error)
}
