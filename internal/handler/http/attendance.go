package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-attendance-go/internal/handler/http/response"
)

type AttendanceHandler interface {
	ClockIn(w http.ResponseWriter, r *http.Request)
	ClockOut(w http.ResponseWriter, r *http.Request)
	StartBreak(w http.ResponseWriter, r *http.Request)
	EndBreak(w http.ResponseWriter, r *http.Request)
	CurrentStatus(w http.ResponseWriter, r *http.Request)
	GetMyAttendance(w http.ResponseWriter, r *http.Request)
	ListTeam(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

// ClockIn handles POST /attendance/clock-in
func (h *attendanceHandlerImpl) ClockIn(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req attendance.ClockInRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.UserID = p.UserID

	result, err := h.attendanceService.ClockIn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Clock in successful", result)
}

// ClockOut handles POST /attendance/clock-out
func (h *attendanceHandlerImpl) ClockOut(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req attendance.ClockOutRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.UserID = p.UserID

	result, err := h.attendanceService.ClockOut(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Clock out successful", result)
}

// StartBreak handles POST /attendance/breaks/start
func (h *attendanceHandlerImpl) StartBreak(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req attendance.StartBreakRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.UserID = p.UserID

	result, err := h.attendanceService.StartBreak(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Break started", result)
}

// EndBreak handles POST /attendance/breaks/end
func (h *attendanceHandlerImpl) EndBreak(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.EndBreak(r.Context(), attendance.EndBreakRequest{UserID: p.UserID})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Break ended", result)
}

// CurrentStatus handles GET /attendance/status
func (h *attendanceHandlerImpl) CurrentStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.CurrentStatus(r.Context(), p.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetMyAttendance handles GET /attendance/my
func (h *attendanceHandlerImpl) GetMyAttendance(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := attendance.MyAttendanceFilter{
		StartDate: optionalQuery(q.Get("start_date")),
		EndDate:   optionalQuery(q.Get("end_date")),
		Status:    optionalQuery(q.Get("status")),
		Page:      intQuery(q.Get("page"), 1),
		Limit:     intQuery(q.Get("limit"), 20),
	}

	result, err := h.attendanceService.GetMyAttendance(r.Context(), p.UserID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result, listMeta(result))
}

// ListTeam handles GET /attendance/team
func (h *attendanceHandlerImpl) ListTeam(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := attendance.TeamAttendanceFilter{
		StartDate:  optionalQuery(q.Get("start_date")),
		EndDate:    optionalQuery(q.Get("end_date")),
		Status:     optionalQuery(q.Get("status")),
		Department: optionalQuery(q.Get("department")),
		Search:     optionalQuery(q.Get("search")),
		UserID:     optionalQuery(q.Get("user_id")),
		Page:       intQuery(q.Get("page"), 1),
		Limit:      intQuery(q.Get("limit"), 20),
	}

	result, err := h.attendanceService.ListTeamAttendance(r.Context(), p.UserID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result, listMeta(result))
}

func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.UserID == "" {
		response.Unauthorized(w, "Unauthorized")
		return middleware.Principal{}, false
	}
	return p, true
}

// decodeOptionalJSON decodes the body into dst. An empty body is allowed.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

func optionalQuery(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// intQuery parses v, keeping malformed input so validation can reject it.
func intQuery(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func listMeta(l attendance.ListAttendanceResponse) *response.Meta {
	return &response.Meta{
		Page:       l.Page,
		Limit:      l.Limit,
		TotalItems: l.TotalCount,
		TotalPages: l.TotalPages,
	}
}
