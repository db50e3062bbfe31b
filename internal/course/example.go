package course

import (
	"bytes"
	"encoding/json"
	"time"

	"coursecal/internal/model"
)

// Payload is the canonical {"data":{"list":[...]}} ingestion document.
type Payload struct {
	Data struct {
		List []model.Course `json:"list"`
	} `json:"data"`
}

// NewPayload wraps courses in the canonical document shape.
func NewPayload(courses []model.Course) Payload {
	var p Payload
	p.Data.List = courses
	if p.Data.List == nil {
		p.Data.List = []model.Course{}
	}
	return p
}

// Marshal renders the payload as indented JSON.
func (p Payload) Marshal() (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ExamplePayload builds a small sample schedule relative to now: two
// courses today and one tomorrow, in now's location.
func ExamplePayload(now time.Time) (string, error) {
	at := func(dayOffset, hour, min int) time.Time {
		d := now.AddDate(0, 0, dayOffset)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, now.Location())
	}

	courses := []model.Course{
		{
			LessonName:    "Advanced Mathematics",
			TeacherName:   "Prof. Zhang",
			ClassRoomName: "Building A 101",
			StartTime:     at(0, 8, 0),
			EndTime:       at(0, 9, 40),
			Description:   "Foundations of calculus",
		},
		{
			LessonName:    "English Listening and Speaking",
			TeacherName:   "Ms. Li",
			ClassRoomName: "Language Lab B201",
			StartTime:     at(0, 14, 0),
			EndTime:       at(0, 15, 40),
			Description:   "Spoken English practice",
		},
		{
			LessonName:    "Computer Programming",
			TeacherName:   "Prof. Wang",
			ClassRoomName: "Computer Room C301",
			StartTime:     at(1, 10, 0),
			EndTime:       at(1, 11, 40),
			Description:   "Python basics",
		},
	}
	return NewPayload(courses).Marshal()
}

// FormatJSON re-indents raw with two spaces. Invalid input is returned as is.
func FormatJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
