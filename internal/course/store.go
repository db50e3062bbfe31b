package course

import (
	"sort"
	"sync"
	"time"

	"coursecal/internal/dateutil"
	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

// LoadResult reports the outcome of a successful Load.
type LoadResult struct {
	Shape    Shape
	Loaded   int
	Rejected int
	Errors   []RecordError
}

// Store owns the in-memory course list. Each successful Load replaces the
// whole list; queries return copies and never alias stored state.
//
// The zero value is not usable; construct with NewStore.
type Store struct {
	opts Options

	mu      sync.RWMutex
	courses []model.Course
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	return &Store{
		opts:    opts,
		courses: []model.Course{},
	}
}

// Location is the display timezone used for calendar-day queries.
func (s *Store) Location() *time.Location {
	return s.opts.location()
}

// Load parses raw and, when the document itself is well formed and of a
// supported shape, replaces the stored list with the accepted records.
//
// Records that fail conversion are dropped and reported in the result; they
// do not fail the call. On ErrMalformedJSON or ErrUnsupportedFormat the
// stored list is left untouched.
func (s *Store) Load(raw string) (LoadResult, error) {
	b, err := parseDocument(raw, s.opts)
	if err != nil {
		return LoadResult{}, err
	}

	s.mu.Lock()
	s.courses = b.courses
	s.mu.Unlock()

	res := LoadResult{
		Shape:    b.shape,
		Loaded:   len(b.courses),
		Rejected: len(b.errs),
		Errors:   b.errs,
	}

	for _, rerr := range b.errs {
		appLog.Debug("course record rejected", "index", rerr.Index, "reason", rerr.Err.Error())
	}
	if res.Rejected > 0 {
		appLog.Warn("course load dropped records", "shape", res.Shape, "loaded", res.Loaded, "rejected", res.Rejected)
	} else {
		appLog.Info("course load completed", "shape", res.Shape, "loaded", res.Loaded)
	}
	return res, nil
}

// QueryByDate returns the courses starting on date's calendar day in the
// store's location, sorted by start time. Ties keep insertion order.
func (s *Store) QueryByDate(date time.Time) []model.Course {
	day := date.In(s.Location())

	s.mu.RLock()
	out := make([]model.Course, 0)
	for _, c := range s.courses {
		if dateutil.IsSameCalendarDay(day, c.StartTime) {
			out = append(out, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Courses returns a copy of every stored course in insertion order.
func (s *Store) Courses() []model.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Course, len(s.courses))
	for i, c := range s.courses {
		out[i] = c.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}

// Validate checks raw with the store's options without changing its state.
func (s *Store) Validate(raw string) ValidationReport {
	return Validate(raw, s.opts)
}
