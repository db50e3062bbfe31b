package status

import (
	"time"

	"coursecal/internal/dateutil"
	"coursecal/internal/model"
)

// State is the live status of a course relative to the current time.
type State string

const (
	StateNone     State = ""
	StateCurrent  State = "current"
	StateUpcoming State = "upcoming"
)

// Classify reports whether c is running now or still ahead today. Courses
// on other days, and today's finished courses, have no status.
func Classify(c model.Course, now time.Time) State {
	start := c.StartTime.In(now.Location())
	if !dateutil.IsSameCalendarDay(now, start) {
		return StateNone
	}
	if !now.Before(start) && !now.After(c.EndTime) {
		return StateCurrent
	}
	if now.Before(start) {
		return StateUpcoming
	}
	return StateNone
}

// Indicator positions now within a day's ordered course list.
type Indicator struct {
	Visible bool    `json:"visible"`
	Percent float64 `json:"percent"`
}

// ComputeIndicator places now between the first course's start and the last
// course's end. The indicator is hidden when the list is empty, now lies
// outside that span, or the span has no length.
func ComputeIndicator(courses []model.Course, now time.Time) Indicator {
	if len(courses) == 0 {
		return Indicator{}
	}
	first := courses[0].StartTime
	last := courses[len(courses)-1].EndTime
	if now.Before(first) || now.After(last) {
		return Indicator{}
	}
	total := last.Sub(first)
	if total <= 0 {
		return Indicator{}
	}
	return Indicator{
		Visible: true,
		Percent: float64(now.Sub(first)) / float64(total) * 100,
	}
}
