package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/report"
)

// AggregateOptions tunes Aggregate. A zero Today selects the latest date in
// the rows.
type AggregateOptions struct {
	Today       time.Time
	Denominator report.RateDenominator
}

// userDay is the per-(user, date) fold of one or more rows. Hours are taken
// once per day, never once per session row.
type userDay struct {
	userID     string
	name       string
	email      string
	department string
	date       time.Time

	category   attendance.Status // present, on_leave or absent
	late       bool
	earlyLeave bool
	hours      float64
	breakHours float64
}

// foldDays collapses rows into user-days in input order. Inactive rows are
// dropped: inactive users are outside every denominator.
func foldDays(rows []attendance.DayStatus) []*userDay {
	type key struct {
		userID string
		date   string
	}
	index := make(map[key]*userDay, len(rows))
	days := make([]*userDay, 0, len(rows))

	for _, row := range rows {
		if row.Status == attendance.StatusInactive {
			continue
		}
		k := key{row.UserID, attendance.DateKey(row.Date)}
		ud, ok := index[k]
		if !ok {
			ud = &userDay{
				userID:     row.UserID,
				name:       row.UserName,
				email:      row.UserEmail,
				department: row.Department,
				date:       row.Date,
				category:   row.Status,
				hours:      row.TotalHoursForDay,
			}
			index[k] = ud
			days = append(days, ud)
		}

		switch {
		case row.Status.Worked():
			ud.category = attendance.StatusPresent
			ud.late = ud.late || row.Status == attendance.StatusLate
			ud.earlyLeave = ud.earlyLeave || row.Status == attendance.StatusEarlyLeave
			if row.Session != nil {
				ud.breakHours += row.Session.BreakHours()
			}
		case ud.category != attendance.StatusPresent:
			ud.category = row.Status
		}
	}
	return days
}

type tally struct {
	active, worked, absent, leave int64
	late, earlyLeave               int64
	hours, breakHours              float64
}

func (t *tally) add(ud *userDay) {
	t.active++
	switch ud.category {
	case attendance.StatusPresent:
		t.worked++
		t.hours += ud.hours
		t.breakHours += ud.breakHours
		if ud.late {
			t.late++
		}
		if ud.earlyLeave {
			t.earlyLeave++
		}
	case attendance.StatusOnLeave:
		t.leave++
	default:
		t.absent++
	}
}

func (t tally) rate(d report.RateDenominator) float64 {
	denom := t.worked + t.absent
	if d != report.ExcludeLeave {
		denom += t.leave
	}
	if denom == 0 {
		return 0
	}
	return round2(float64(t.worked) / float64(denom) * 100)
}

func (t tally) average() float64 {
	if t.worked == 0 {
		return 0
	}
	return round2(t.hours / float64(t.worked))
}

// Aggregate folds a materialized range into a Summary. For every date,
// Present + Absent + OnLeave equals Active because each active user-day
// falls in exactly one category. Absent is counted directly, never derived
// by subtraction.
func Aggregate(rows []attendance.DayStatus, opts AggregateOptions) report.Summary {
	if opts.Denominator == "" {
		opts.Denominator = report.IncludeLeave
	}
	days := foldDays(rows)

	summary := report.Summary{
		RateDenominator: string(opts.Denominator),
		Trend:           []report.DaySlice{},
		Weekly:          []report.PeriodBucket{},
		Monthly:         []report.PeriodBucket{},
		Departments:     []report.DepartmentBreakdown{},
	}
	if len(rows) > 0 {
		first, last := rows[0].Date, rows[0].Date
		for _, r := range rows {
			if r.Date.Before(first) {
				first = r.Date
			}
			if r.Date.After(last) {
				last = r.Date
			}
		}
		summary.StartDate = attendance.DateKey(first)
		summary.EndDate = attendance.DateKey(last)
		if opts.Today.IsZero() {
			opts.Today = last
		}
	}
	if !opts.Today.IsZero() {
		summary.TodayDate = attendance.DateKey(opts.Today)
	}

	var overall tally
	perDate := map[string]*tally{}
	var dateOrder []string
	weekly := map[string]*tally{}
	var weekOrder []string
	monthly := map[string]*tally{}
	var monthOrder []string
	perDept := map[string]*tally{}
	deptUsers := map[string]map[string]struct{}{}
	activeUsers := map[string]struct{}{}

	bucket := func(m map[string]*tally, order *[]string, key string) *tally {
		t, ok := m[key]
		if !ok {
			t = &tally{}
			m[key] = t
			*order = append(*order, key)
		}
		return t
	}

	for _, ud := range days {
		overall.add(ud)
		activeUsers[ud.userID] = struct{}{}

		dk := attendance.DateKey(ud.date)
		bucket(perDate, &dateOrder, dk).add(ud)

		y, w := ud.date.ISOWeek()
		bucket(weekly, &weekOrder, fmt.Sprintf("%d-W%02d", y, w)).add(ud)
		bucket(monthly, &monthOrder, ud.date.Format("2006-01")).add(ud)

		dept := bucket(perDept, new([]string), ud.department)
		dept.add(ud)
		if deptUsers[ud.department] == nil {
			deptUsers[ud.department] = map[string]struct{}{}
		}
		deptUsers[ud.department][ud.userID] = struct{}{}
	}

	sort.Strings(dateOrder)
	for _, dk := range dateOrder {
		t := perDate[dk]
		summary.Trend = append(summary.Trend, report.DaySlice{
			Date:       dk,
			Active:     t.active,
			Present:    t.worked,
			Late:       t.late,
			EarlyLeave: t.earlyLeave,
			Absent:     t.absent,
			OnLeave:    t.leave,
			Hours:      round2(t.hours),
		})
	}
	sort.Strings(weekOrder)
	for _, k := range weekOrder {
		summary.Weekly = append(summary.Weekly, periodBucket(k, weekly[k]))
	}
	sort.Strings(monthOrder)
	for _, k := range monthOrder {
		summary.Monthly = append(summary.Monthly, periodBucket(k, monthly[k]))
	}

	deptNames := make([]string, 0, len(perDept))
	for name := range perDept {
		deptNames = append(deptNames, name)
	}
	sort.Strings(deptNames)
	for _, name := range deptNames {
		t := perDept[name]
		summary.Departments = append(summary.Departments, report.DepartmentBreakdown{
			Department: name,
			Employees:  int64(len(deptUsers[name])),
			WorkedDays: t.worked,
			AbsentDays: t.absent,
			LeaveDays:  t.leave,
			Hours:      round2(t.hours),
		})
	}

	if t, ok := perDate[summary.TodayDate]; ok {
		summary.TotalEmployees = t.active
		summary.PresentToday = t.worked
		summary.LateToday = t.late
		summary.EarlyLeaveToday = t.earlyLeave
		summary.AbsentToday = t.absent
		summary.OnLeaveToday = t.leave
	} else {
		summary.TotalEmployees = int64(len(activeUsers))
	}

	summary.TotalHoursInRange = round2(overall.hours)
	summary.TotalBreakHours = round2(overall.breakHours)
	summary.AverageHoursPerActiveDay = overall.average()
	summary.WorkedDays = overall.worked
	summary.AbsentDays = overall.absent
	summary.OnLeaveDays = overall.leave
	summary.AttendanceRatePct = overall.rate(opts.Denominator)

	return summary
}

// EmployeeRows builds one report line per active user, in the order users
// first appear in rows.
func EmployeeRows(rows []attendance.DayStatus, denominator report.RateDenominator) []report.EmployeeReportRow {
	days := foldDays(rows)

	tallies := map[string]*tally{}
	meta := map[string]*userDay{}
	var order []string
	for _, ud := range days {
		t, ok := tallies[ud.userID]
		if !ok {
			t = &tally{}
			tallies[ud.userID] = t
			meta[ud.userID] = ud
			order = append(order, ud.userID)
		}
		t.add(ud)
	}

	out := make([]report.EmployeeReportRow, 0, len(order))
	for _, id := range order {
		t, m := tallies[id], meta[id]
		out = append(out, report.EmployeeReportRow{
			UserID:            id,
			Employee:          m.name,
			Email:             m.email,
			Department:        m.department,
			TotalDays:         t.active,
			PresentDays:       t.worked,
			LateDays:          t.late,
			EarlyLeaveDays:    t.earlyLeave,
			AbsentDays:        t.absent,
			OnLeaveDays:       t.leave,
			TotalHours:        round2(t.hours),
			AverageHours:      t.average(),
			TotalBreakHours:   round2(t.breakHours),
			AttendanceRatePct: t.rate(denominator),
		})
	}
	return out
}

func periodBucket(key string, t *tally) report.PeriodBucket {
	return report.PeriodBucket{
		Period:     key,
		WorkedDays: t.worked,
		AbsentDays: t.absent,
		LeaveDays:  t.leave,
		Hours:      round2(t.hours),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
