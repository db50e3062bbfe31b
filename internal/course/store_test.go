package course_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/course"
	"coursecal/internal/model"
)

const canonicalPayload = `{
  "data": {
    "list": [
      {
        "lessonName": "Course Name",
        "teacherName": "Instructor",
        "classRoomName": "Room",
        "startTime": 1725667200000,
        "endTime": 1725674400000,
        "description": "optional text"
      }
    ]
  }
}`

func newUTCStore() *course.Store {
	return course.NewStore(course.Options{Location: time.UTC})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestLoadThenQuery(t *testing.T) {
	s := newUTCStore()

	res, err := s.Load(canonicalPayload)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loaded)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, course.ShapeDataList, res.Shape)

	got := s.QueryByDate(day(2024, 9, 7))
	require.Len(t, got, 1)
	assert.Equal(t, "Course Name", got[0].LessonName)
	assert.Equal(t, "Instructor", got[0].TeacherName)
	assert.Equal(t, "Room", got[0].ClassRoomName)
	assert.Equal(t, "optional text", got[0].Description)
	assert.Equal(t, int64(1725667200000), got[0].StartTime.UnixMilli())
	assert.Equal(t, 2*time.Hour, got[0].Duration())

	assert.Empty(t, s.QueryByDate(day(2024, 9, 8)))
}

func TestLoadShapes(t *testing.T) {
	one := `{"lessonName":"A","startTime":1725667200000,"endTime":1725674400000}`

	tests := []struct {
		name  string
		raw   string
		shape course.Shape
		count int
	}{
		{"data.list", `{"data":{"list":[` + one + `]}}`, course.ShapeDataList, 1},
		{"list", `{"list":[` + one + `]}`, course.ShapeList, 1},
		{"array", `[` + one + `,` + one + `]`, course.ShapeArray, 2},
		{"empty array", `[]`, course.ShapeArray, 0},
		{"data.list wins over list", `{"data":{"list":[` + one + `]},"list":[]}`, course.ShapeDataList, 1},
		{"non-array data.list falls back to list", `{"data":{"list":5},"list":[` + one + `,` + one + `]}`, course.ShapeList, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newUTCStore().Load(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, res.Shape)
			assert.Equal(t, tt.count, res.Loaded)
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	for _, raw := range []string{`{"foo": 1}`, `{"data":{"foo":[]}}`, `{"list":{}}`, `42`, `"text"`, `null`, `true`} {
		_, err := newUTCStore().Load(raw)
		assert.ErrorIs(t, err, course.ErrUnsupportedFormat, raw)
	}
}

func TestLoadMalformedLeavesStateUntouched(t *testing.T) {
	s := newUTCStore()

	_, err := s.Load("{not json")
	require.ErrorIs(t, err, course.ErrMalformedJSON)
	assert.Contains(t, err.Error(), "invalid character")
	assert.Empty(t, s.QueryByDate(day(2024, 9, 7)))

	_, err = s.Load(canonicalPayload)
	require.NoError(t, err)

	for _, raw := range []string{"{not json", "", `[{"a":1}`, `{"list":[]} trailing`} {
		_, err = s.Load(raw)
		assert.ErrorIs(t, err, course.ErrMalformedJSON, raw)
		assert.Len(t, s.QueryByDate(day(2024, 9, 7)), 1)
	}

	_, err = s.Load(`{"foo":1}`)
	assert.ErrorIs(t, err, course.ErrUnsupportedFormat)
	assert.Equal(t, 1, s.Len())
}

func TestLoadReplacesNeverMerges(t *testing.T) {
	s := newUTCStore()
	_, err := s.Load(canonicalPayload)
	require.NoError(t, err)

	res, err := s.Load(`[]`)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Loaded)
	assert.Equal(t, 0, s.Len())
}

func TestBareArrayQueryPerDay(t *testing.T) {
	s := newUTCStore()
	raw := `[
		{"lessonName":"A","startTime":1725667200000,"endTime":1725674400000},
		{"lessonName":"B","startTime":1725782400000,"endTime":1725786000000}
	]`
	res, err := s.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)

	got := s.QueryByDate(day(2024, 9, 7))
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].LessonName)

	got = s.QueryByDate(day(2024, 9, 8))
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].LessonName)
}

func TestQueryByDateSortedAndStable(t *testing.T) {
	s := newUTCStore()
	base := time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)
	ms := func(h int) int64 { return base.Add(time.Duration(h) * time.Hour).UnixMilli() }

	raw := fmt.Sprintf(`[
		{"lessonName":"late","startTime":%d,"endTime":%d},
		{"lessonName":"tie-1","startTime":%d,"endTime":%d},
		{"lessonName":"other-day","startTime":%d,"endTime":%d},
		{"lessonName":"early","startTime":%d,"endTime":%d},
		{"lessonName":"tie-2","startTime":%d,"endTime":%d},
		{"lessonName":"tie-3","startTime":%d,"endTime":%d}
	]`,
		ms(15), ms(16),
		ms(10), ms(11),
		ms(30), ms(31),
		ms(8), ms(9),
		ms(10), ms(12),
		ms(10), ms(10),
	)
	_, err := s.Load(raw)
	require.NoError(t, err)

	got := s.QueryByDate(base)
	names := make([]string, 0, len(got))
	for _, c := range got {
		names = append(names, c.LessonName)
	}
	assert.Equal(t, []string{"early", "tie-1", "tie-2", "tie-3", "late"}, names)

	// Idempotent without an intervening load.
	assert.Equal(t, got, s.QueryByDate(base))
}

func TestQueryByDateUsesStoreLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	s := course.NewStore(course.Options{Location: shanghai})

	// 2024-09-06 20:00 UTC is 2024-09-07 04:00 in UTC+8.
	start := time.Date(2024, 9, 6, 20, 0, 0, 0, time.UTC).UnixMilli()
	_, err := s.Load(fmt.Sprintf(`[{"startTime":%d,"endTime":%d}]`, start, start))
	require.NoError(t, err)

	assert.Len(t, s.QueryByDate(time.Date(2024, 9, 7, 0, 0, 0, 0, shanghai)), 1)
	assert.Empty(t, s.QueryByDate(time.Date(2024, 9, 6, 12, 0, 0, 0, shanghai)))
	// A UTC instant is converted into the store location before comparing.
	assert.Len(t, s.QueryByDate(time.Date(2024, 9, 6, 17, 0, 0, 0, time.UTC)), 1)
}

func TestQueryResultsDoNotAliasStore(t *testing.T) {
	s := newUTCStore()
	_, err := s.Load(`[{"lessonName":"A","room":{"floor":2},"startTime":1725667200000,"endTime":1725667200000}]`)
	require.NoError(t, err)

	got := s.QueryByDate(day(2024, 9, 7))
	require.Len(t, got, 1)
	got[0].LessonName = "mutated"
	got[0].Extra["room"] = json.RawMessage(`null`)

	again := s.QueryByDate(day(2024, 9, 7))
	assert.Equal(t, "A", again[0].LessonName)
	assert.JSONEq(t, `{"floor":2}`, string(again[0].Extra["room"]))

	all := s.Courses()
	all[0].LessonName = "mutated"
	assert.Equal(t, "A", s.Courses()[0].LessonName)
}

func TestLoadRejectsBadRecords(t *testing.T) {
	s := newUTCStore()
	raw := `{"list":[
		{"lessonName":"ok","startTime":1725667200000,"endTime":1725674400000},
		{"lessonName":"no end","startTime":1725667200000},
		{"lessonName":"bad start","startTime":"yesterday","endTime":1725674400000},
		"not an object",
		{"lessonName":{"nested":true},"startTime":1725667200000,"endTime":1725674400000},
		{"lessonName":"iso","startTime":"2024-09-07T09:00:00Z","endTime":"2024-09-07T10:00:00.123Z"}
	]}`

	res, err := s.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 4, res.Rejected)
	require.Len(t, res.Errors, 4)

	assert.Equal(t, 1, res.Errors[0].Index)
	assert.ErrorIs(t, res.Errors[0], course.ErrInvalidInstant)
	assert.Contains(t, res.Errors[0].Error(), "endTime")
	assert.Equal(t, 2, res.Errors[1].Index)
	assert.ErrorIs(t, res.Errors[1], course.ErrInvalidInstant)
	assert.Equal(t, 3, res.Errors[2].Index)
	assert.ErrorIs(t, res.Errors[2], course.ErrNotObject)
	assert.Equal(t, 4, res.Errors[3].Index)
	assert.ErrorIs(t, res.Errors[3], course.ErrInvalidField)

	got := s.QueryByDate(day(2024, 9, 7))
	require.Len(t, got, 2)
	assert.Equal(t, "ok", got[0].LessonName)
	assert.Equal(t, "iso", got[1].LessonName)
	assert.Equal(t, 123*time.Millisecond, got[1].EndTime.Sub(time.Date(2024, 9, 7, 10, 0, 0, 0, time.UTC)))
}

func TestLoadCoercesScalarTextFields(t *testing.T) {
	s := newUTCStore()
	_, err := s.Load(`[{"lessonName":101,"teacherName":null,"classRoomName":true,"startTime":0,"endTime":0}]`)
	require.NoError(t, err)

	got := s.Courses()
	require.Len(t, got, 1)
	assert.Equal(t, "101", got[0].LessonName)
	assert.Equal(t, "", got[0].TeacherName)
	assert.Equal(t, "unknown teacher", got[0].DisplayTeacherName())
	assert.Equal(t, "true", got[0].ClassRoomName)
}

func TestInvertedIntervalRule(t *testing.T) {
	raw := `[
		{"lessonName":"inverted","startTime":1725674400000,"endTime":1725667200000},
		{"lessonName":"zero","startTime":1725667200000,"endTime":1725667200000}
	]`

	lenient := newUTCStore()
	res, err := lenient.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)

	strict := course.NewStore(course.Options{Location: time.UTC, RejectInvertedIntervals: true})
	res, err = strict.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loaded)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], course.ErrInvertedInterval)
	assert.Equal(t, "zero", strict.Courses()[0].LessonName)
}

func TestDuplicatesRetained(t *testing.T) {
	s := newUTCStore()
	one := `{"lessonName":"A","startTime":1725667200000,"endTime":1725674400000}`
	res, err := s.Load(`[` + one + `,` + one + `]`)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Len(t, s.QueryByDate(day(2024, 9, 7)), 2)
}

func TestCourseMarshalRoundTrip(t *testing.T) {
	s := newUTCStore()
	_, err := s.Load(`[{"lessonName":"A","weeks":[1,2,3],"startTime":"2024-09-07T08:00:00Z","endTime":1725674400000}]`)
	require.NoError(t, err)

	payload, err := course.NewPayload(s.Courses()).Marshal()
	require.NoError(t, err)

	again := newUTCStore()
	res, err := again.Load(payload)
	require.NoError(t, err)
	assert.Equal(t, course.ShapeDataList, res.Shape)
	require.Equal(t, 1, res.Loaded)

	c := again.Courses()[0]
	assert.Equal(t, int64(1725696000000), c.StartTime.UnixMilli())
	assert.JSONEq(t, `[1,2,3]`, string(c.Extra["weeks"]))
	_, hasTeacher := c.Extra[model.FieldTeacherName]
	assert.False(t, hasTeacher)
}
