package attendance

import "time"

const dateLayout = "2006-01-02"

// CalendarDate returns the calendar day of t in loc, normalised to midnight UTC
// so dates compare and hash independently of the wall-clock zone.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a calendar date as YYYY-MM-DD.
func DateKey(d time.Time) string {
	return d.Format(dateLayout)
}

// ParseDate parses YYYY-MM-DD into a calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// DaysInRange lists each calendar date in [start, end].
func DaysInRange(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// HoursBetween returns the non-negative number of hours from a to b.
func HoursBetween(a, b time.Time) float64 {
	if b.Before(a) {
		return 0
	}
	return b.Sub(a).Hours()
}

// At combines a calendar date with a wall-clock time in loc.
func At(date time.Time, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
}
