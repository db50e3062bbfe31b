package viewer

import "math"

// Default minimum horizontal drag distances.
const (
	WeekSwipeDistance = 50
	DaySwipeDistance  = 80
)

type Direction int

const (
	None     Direction = 0
	Previous Direction = -1
	Next     Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Previous:
		return "previous"
	case Next:
		return "next"
	default:
		return "none"
	}
}

// ClassifySwipe turns a drag displacement into a navigation direction.
// The drag must be mostly horizontal and longer than minDistance; a
// rightward drag (dx > 0) goes to the previous period.
func ClassifySwipe(dx, dy, minDistance float64) Direction {
	adx := math.Abs(dx)
	if adx <= math.Abs(dy) || adx <= minDistance {
		return None
	}
	if dx > 0 {
		return Previous
	}
	return Next
}

// SwipeThresholds holds the configured distances for both gesture areas.
type SwipeThresholds struct {
	Week float64
	Day  float64
}

func DefaultSwipeThresholds() SwipeThresholds {
	return SwipeThresholds{Week: WeekSwipeDistance, Day: DaySwipeDistance}
}

// ApplyWeekSwipe navigates by one week if the drag qualifies.
func (n *Navigator) ApplyWeekSwipe(dx, dy float64, th SwipeThresholds) (Direction, View) {
	dir := ClassifySwipe(dx, dy, th.Week)
	if dir == None {
		return dir, n.View()
	}
	return dir, n.NavigateWeek(int(dir))
}

// ApplyDaySwipe navigates by one day if the drag qualifies.
func (n *Navigator) ApplyDaySwipe(dx, dy float64, th SwipeThresholds) (Direction, View) {
	dir := ClassifySwipe(dx, dy, th.Day)
	if dir == None {
		return dir, n.View()
	}
	return dir, n.NavigateDay(int(dir))
}
