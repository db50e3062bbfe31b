// Package dateutil holds the calendar-day arithmetic shared by the course
// store, the navigator and the status tracker. All functions are pure and
// operate in the location carried by their time.Time arguments.
package dateutil

import "time"

// DayStart returns local midnight of t's calendar day in t's location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the Sunday on or before t, at midnight.
// Weeks run Sunday through Saturday.
func StartOfWeek(t time.Time) time.Time {
	return StartOfWeekOn(t, time.Sunday)
}

// StartOfWeekOn is StartOfWeek for weeks beginning on first.
func StartOfWeekOn(t time.Time, first time.Weekday) time.Time {
	d := DayStart(t)
	diff := (int(d.Weekday()) - int(first) + 7) % 7
	// AddDate keeps wall-clock midnight across DST changes.
	return d.AddDate(0, 0, -diff)
}

// WeekDays returns the seven consecutive midnights beginning at start.
func WeekDays(start time.Time) []time.Time {
	start = DayStart(start)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// IsSameCalendarDay compares year, month and day of a and b, ignoring the
// time of day. b is converted into a's location first.
func IsSameCalendarDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatTimeOfDay renders t as 24-hour HH:MM.
func FormatTimeOfDay(t time.Time) string {
	return t.Format("15:04")
}

// ParseDay parses a YYYY-MM-DD string as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(time.DateOnly, s, loc)
}
