package model

import (
	"encoding/json"
	"time"
)

// Course represents a single scheduled session after ingestion.
//
// Optional text fields are empty when absent from the input; they are not
// defaulted here. Presentation fallbacks live in the Display* helpers.
type Course struct {
	LessonName    string
	TeacherName   string
	ClassRoomName string
	Description   string

	// StartTime / EndTime are absolute instants with millisecond precision.
	// EndTime before StartTime is tolerated unless the store is configured
	// to reject inverted intervals.
	StartTime time.Time
	EndTime   time.Time

	// Extra carries every other field of the input record, untouched.
	Extra map[string]json.RawMessage
}

// Field names of the ingestion payload.
const (
	FieldLessonName    = "lessonName"
	FieldTeacherName   = "teacherName"
	FieldClassRoomName = "classRoomName"
	FieldStartTime     = "startTime"
	FieldEndTime       = "endTime"
	FieldDescription   = "description"
)

func (c Course) DisplayLessonName() string {
	return fallback(c.LessonName, "unknown course")
}

func (c Course) DisplayTeacherName() string {
	return fallback(c.TeacherName, "unknown teacher")
}

func (c Course) DisplayClassRoomName() string {
	return fallback(c.ClassRoomName, "unknown room")
}

// Duration is negative for inverted intervals.
func (c Course) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}

// Clone returns a copy whose Extra map is not shared with c.
func (c Course) Clone() Course {
	if c.Extra != nil {
		extra := make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			extra[k] = v
		}
		c.Extra = extra
	}
	return c
}

// MarshalJSON renders the course in the ingestion payload shape, with
// instants as milliseconds since the Unix epoch, so that a marshaled list
// can be fed back into the store.
func (c Course) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+6)
	for k, v := range c.Extra {
		out[k] = v
	}
	putString(out, FieldLessonName, c.LessonName)
	putString(out, FieldTeacherName, c.TeacherName)
	putString(out, FieldClassRoomName, c.ClassRoomName)
	putString(out, FieldDescription, c.Description)
	out[FieldStartTime] = c.StartTime.UnixMilli()
	out[FieldEndTime] = c.EndTime.UnixMilli()
	return json.Marshal(out)
}

func putString(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
