package status_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/model"
	"coursecal/internal/status"
)

func at(h, m int) time.Time {
	return time.Date(2024, 9, 9, h, m, 0, 0, time.UTC)
}

func lesson(name string, start, end time.Time) model.Course {
	return model.Course{LessonName: name, StartTime: start, EndTime: end}
}

func TestClassify(t *testing.T) {
	c := lesson("maths", at(8, 0), at(9, 40))

	assert.Equal(t, status.StateUpcoming, status.Classify(c, at(7, 59)))
	assert.Equal(t, status.StateCurrent, status.Classify(c, at(8, 0)))
	assert.Equal(t, status.StateCurrent, status.Classify(c, at(9, 40)))
	assert.Equal(t, status.StateNone, status.Classify(c, at(9, 41)))
	assert.Equal(t, status.StateNone, status.Classify(c, at(8, 0).AddDate(0, 0, -1)))
}

func TestComputeIndicator(t *testing.T) {
	day := []model.Course{
		lesson("a", at(8, 0), at(9, 0)),
		lesson("b", at(10, 0), at(12, 0)),
	}

	ind := status.ComputeIndicator(day, at(9, 0))
	assert.True(t, ind.Visible)
	assert.InDelta(t, 25.0, ind.Percent, 1e-9)

	assert.False(t, status.ComputeIndicator(day, at(7, 0)).Visible)
	assert.False(t, status.ComputeIndicator(day, at(12, 1)).Visible)
	assert.False(t, status.ComputeIndicator(nil, at(9, 0)).Visible)

	zero := []model.Course{lesson("z", at(9, 0), at(9, 0))}
	assert.False(t, status.ComputeIndicator(zero, at(9, 0)).Visible)
}

type fakeSource struct {
	mu      sync.Mutex
	courses []model.Course
	calls   int
}

func (f *fakeSource) QueryByDate(date time.Time) []model.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]model.Course, 0)
	for _, c := range f.courses {
		if c.StartTime.In(date.Location()).YearDay() == date.YearDay() {
			out = append(out, c)
		}
	}
	return out
}

func TestTrackerRefresh(t *testing.T) {
	src := &fakeSource{courses: []model.Course{
		lesson("done", at(7, 0), at(8, 0)),
		lesson("now", at(8, 30), at(10, 0)),
		lesson("later", at(14, 0), at(15, 40)),
	}}
	tr := status.NewTracker(src, time.UTC, status.WithClock(func() time.Time { return at(9, 0) }))

	assert.Empty(t, tr.Snapshot().Courses)

	snap := tr.Refresh()
	assert.Equal(t, time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC), snap.Day)
	require.Len(t, snap.Courses, 3)
	assert.Equal(t, status.StateNone, snap.Courses[0].State)
	assert.Equal(t, status.StateCurrent, snap.Courses[1].State)
	assert.Equal(t, status.StateUpcoming, snap.Courses[2].State)
	assert.Equal(t, 1, snap.Current)
	assert.Equal(t, 1, snap.Upcoming)
	assert.True(t, snap.Indicator.Visible)

	// Idempotent.
	assert.Equal(t, snap, tr.Refresh())
	assert.Equal(t, snap, tr.Snapshot())
}

func TestTrackerStartStop(t *testing.T) {
	src := &fakeSource{}
	tr := status.NewTracker(src, time.UTC)

	require.NoError(t, tr.Start("@every 1h"))
	assert.Error(t, tr.Start("@every 1h"))

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	assert.Equal(t, 1, calls, "start refreshes immediately")

	<-tr.Stop().Done()
	<-tr.Stop().Done()
}

func TestTrackerRejectsBadSchedule(t *testing.T) {
	tr := status.NewTracker(&fakeSource{}, time.UTC)
	assert.Error(t, tr.Start("every now and then"))
}
