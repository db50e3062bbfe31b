// Package ics converts between course lists and iCalendar timetables.
package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

const productID = "-//coursecal//Course Schedule//EN"

// Export renders courses as a VCALENDAR with one VEVENT per course. UIDs are
// derived from each course and its position, so re-exporting the same list
// yields the same UIDs and duplicates stay distinct.
func Export(courses []model.Course, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Courses")

	for i, c := range courses {
		ev := cal.AddEvent(eventUID(i, c))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(c.StartTime.UTC())
		ev.SetEndAt(c.EndTime.UTC())
		ev.SetSummary(c.DisplayLessonName())
		if c.ClassRoomName != "" {
			ev.SetLocation(c.ClassRoomName)
		}
		if c.Description != "" {
			ev.SetDescription(c.Description)
		}
		if c.TeacherName != "" {
			ev.SetOrganizer("mailto:noreply@coursecal.invalid", ical.WithCN(c.TeacherName))
		}
	}

	appLog.Debug("ics export completed", "event_count", len(courses))
	return cal.Serialize()
}

func eventUID(i int, c model.Course) string {
	name := fmt.Sprintf("%d|%s|%d|%d", i, c.LessonName, c.StartTime.UnixMilli(), c.EndTime.UnixMilli())
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + "@coursecal"
}

// ImportResult holds the courses produced from an ICS timetable.
type ImportResult struct {
	Courses []model.Course
	// SkippedAllDay counts all-day events, which are not lessons.
	SkippedAllDay int
	// Truncated lists UIDs whose recurrence hit the occurrence cap.
	Truncated []string
}

// Import parses an ICS timetable and expands recurring lessons within w.
// SUMMARY becomes the lesson name, LOCATION the room, ORGANIZER's CN the
// teacher and DESCRIPTION the description. Courses are sorted by start.
func Import(body []byte, w Window, loc *time.Location) (ImportResult, error) {
	if loc == nil {
		loc = time.Local
	}
	var res ImportResult

	events, err := parseCalendar(body, loc)
	if err != nil {
		return res, err
	}
	if len(events) == 0 {
		return res, errors.New("ics: calendar has no events")
	}

	occs, truncated, err := expandEvents(events, w)
	if err != nil {
		return res, err
	}
	res.Truncated = truncated

	res.Courses = make([]model.Course, 0, len(occs))
	for _, o := range occs {
		if o.ev.AllDay {
			res.SkippedAllDay++
			continue
		}
		res.Courses = append(res.Courses, model.Course{
			LessonName:    o.ev.Summary,
			TeacherName:   o.ev.Organizer,
			ClassRoomName: o.ev.Location,
			Description:   o.ev.Description,
			StartTime:     o.start.In(loc).Truncate(time.Millisecond),
			EndTime:       o.end.In(loc).Truncate(time.Millisecond),
		})
	}
	sort.SliceStable(res.Courses, func(i, j int) bool {
		return res.Courses[i].StartTime.Before(res.Courses[j].StartTime)
	})

	appLog.Info("ics import completed", "events", len(events), "courses", len(res.Courses), "skipped_all_day", res.SkippedAllDay)
	return res, nil
}
