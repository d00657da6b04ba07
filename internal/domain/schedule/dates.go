package schedule

import "time"

// DaysPerMonth is the fixed month length used for age arithmetic.
// Ages are elapsed days / 30, not calendar months.
const DaysPerMonth = 30

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight of its calendar day in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween counts whole calendar days from a to b. The count ignores
// clock time and DST shifts.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// AgeInMonths is the 30-day-month age of someone born on birth at day.
func AgeInMonths(birth, day time.Time) int {
	days := DaysBetween(birth, day)
	if days < 0 {
		return 0
	}
	return days / DaysPerMonth
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, raw, loc)
}
