package status

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

// DefaultSchedule refreshes roughly once per minute.
const DefaultSchedule = "@every 1m"

// Source is the day-agenda query the tracker evaluates.
type Source interface {
	QueryByDate(date time.Time) []model.Course
}

// CourseStatus pairs a course with its live state.
type CourseStatus struct {
	Course model.Course
	State  State
}

// Snapshot is the derived display state for today.
type Snapshot struct {
	Day       time.Time
	Courses   []CourseStatus
	Current   int
	Upcoming  int
	Indicator Indicator
	UpdatedAt time.Time
}

// Tracker periodically recomputes today's Snapshot. Refreshing is
// idempotent; overlapping or missed ticks are skipped.
type Tracker struct {
	src Source
	loc *time.Location
	now func() time.Time

	mu   sync.RWMutex
	snap Snapshot
	cron *cron.Cron
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(src Source, loc *time.Location, opts ...Option) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	t := &Tracker{
		src: src,
		loc: loc,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Refresh recomputes and stores the snapshot for the current day.
func (t *Tracker) Refresh() Snapshot {
	now := t.now().In(t.loc)
	courses := t.src.QueryByDate(now)

	snap := Snapshot{
		Day:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, t.loc),
		Courses:   make([]CourseStatus, 0, len(courses)),
		Indicator: ComputeIndicator(courses, now),
		UpdatedAt: now,
	}
	for _, c := range courses {
		st := Classify(c, now)
		switch st {
		case StateCurrent:
			snap.Current++
		case StateUpcoming:
			snap.Upcoming++
		}
		snap.Courses = append(snap.Courses, CourseStatus{Course: c, State: st})
	}

	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()

	appLog.Debug("status refreshed", "day", snap.Day.Format(time.DateOnly), "courses", len(snap.Courses), "current", snap.Current, "upcoming", snap.Upcoming)
	return snap
}

// Snapshot returns the last computed snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Start refreshes once and then on the given cron schedule.
func (t *Tracker) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	t.mu.Lock()
	if t.cron != nil {
		t.mu.Unlock()
		return errors.New("status: tracker already started")
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(t.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, func() { t.Refresh() }); err != nil {
		t.mu.Unlock()
		return err
	}
	t.cron = c
	t.mu.Unlock()

	t.Refresh()
	c.Start()
	appLog.Info("status tracker started", "schedule", schedule, "timezone", t.loc.String())
	return nil
}

// Stop halts the schedule. The returned context is done once a running
// refresh has finished.
func (t *Tracker) Stop() context.Context {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	if c == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return c.Stop()
}

// cronLogger routes cron's own logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
