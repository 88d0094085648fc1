package http

import (
	"net/http"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/report"
	"github.com/cmlabs-hris/hris-attendance-go/internal/handler/http/response"
)

type ReportHandler interface {
	GetDashboard(w http.ResponseWriter, r *http.Request)
	GetAttendanceReport(w http.ResponseWriter, r *http.Request)
	GetLeaveReport(w http.ResponseWriter, r *http.Request)
}

type reportHandlerImpl struct {
	reportService report.ReportService
}

func NewReportHandler(reportService report.ReportService) ReportHandler {
	return &reportHandlerImpl{
		reportService: reportService,
	}
}

// GetDashboard handles GET /reports/dashboard
func (h *reportHandlerImpl) GetDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.reportService.GetDashboard(r.Context(), p.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetAttendanceReport handles GET /reports/attendance?start_date=&end_date=&department=
func (h *reportHandlerImpl) GetAttendanceReport(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := report.AttendanceReportRequest{
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
		Department: optionalQuery(q.Get("department")),
	}

	result, err := h.reportService.GetAttendanceReport(r.Context(), p.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetLeaveReport handles GET /reports/leaves?start_date=&end_date=
func (h *reportHandlerImpl) GetLeaveReport(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := report.LeaveReportRequest{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}

	result, err := h.reportService.GetLeaveReport(r.Context(), p.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
