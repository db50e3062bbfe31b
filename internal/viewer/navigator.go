package viewer

import (
	"sync"
	"time"

	"coursecal/internal/dateutil"
)

// Navigator tracks the selected day and the first day of the visible week.
// It is safe for concurrent use.
type Navigator struct {
	first time.Weekday
	loc   *time.Location

	mu        sync.Mutex
	selected  time.Time
	weekStart time.Time
}

// NewNavigator starts on now's day, in loc, with weeks beginning on first.
func NewNavigator(now time.Time, loc *time.Location, first time.Weekday) *Navigator {
	if loc == nil {
		loc = time.Local
	}
	n := &Navigator{first: first, loc: loc}
	n.selectLocked(now)
	return n
}

// View is a snapshot of the navigation state.
type View struct {
	Selected  time.Time
	WeekStart time.Time
}

func (n *Navigator) View() View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return View{Selected: n.selected, WeekStart: n.weekStart}
}

// Days returns the seven days of the visible week.
func (v View) Days() []time.Time {
	return dateutil.WeekDays(v.WeekStart)
}

// NavigateWeek moves the visible week by dir weeks. The selection follows to
// the new week's first day unless it still falls inside the week.
func (n *Navigator) NavigateWeek(dir int) View {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.weekStart = n.weekStart.AddDate(0, 0, 7*dir)
	weekEnd := n.weekStart.AddDate(0, 0, 7)
	if n.selected.Before(n.weekStart) || !n.selected.Before(weekEnd) {
		n.selected = n.weekStart
	}
	return View{Selected: n.selected, WeekStart: n.weekStart}
}

// NavigateDay moves the selection by dir days; the week follows.
func (n *Navigator) NavigateDay(dir int) View {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selectLocked(n.selected.AddDate(0, 0, dir))
	return View{Selected: n.selected, WeekStart: n.weekStart}
}

// Today jumps to now's day.
func (n *Navigator) Today(now time.Time) View {
	return n.Pick(now)
}

// Pick selects an arbitrary date, e.g. from a date picker.
func (n *Navigator) Pick(date time.Time) View {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selectLocked(date)
	return View{Selected: n.selected, WeekStart: n.weekStart}
}

func (n *Navigator) selectLocked(date time.Time) {
	n.selected = dateutil.DayStart(date.In(n.loc))
	n.weekStart = dateutil.StartOfWeekOn(n.selected, n.first)
}
