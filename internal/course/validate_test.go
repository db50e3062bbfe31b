package course_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/course"
)

func TestValidateDoesNotMutate(t *testing.T) {
	s := newUTCStore()

	r := s.Validate(canonicalPayload)
	assert.True(t, r.SyntaxValid)
	assert.True(t, r.FormatSupported)
	assert.Equal(t, course.ShapeDataList, r.Shape)
	assert.Equal(t, 1, r.Count)
	assert.Equal(t, 1, r.Valid)
	assert.Equal(t, 0, s.Len())
}

func TestValidateReports(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		syntax    bool
		supported bool
		count     int
		valid     int
	}{
		{"malformed", "{not json", false, false, 0, 0},
		{"unsupported", `{"foo":1}`, true, false, 0, 0},
		{"partial", `[{"startTime":0,"endTime":0},{"startTime":"soon"}]`, true, true, 2, 1},
		{"empty list", `{"list":[]}`, true, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := course.Validate(tt.raw, course.Options{Location: time.UTC})
			assert.Equal(t, tt.syntax, r.SyntaxValid)
			assert.Equal(t, tt.supported, r.FormatSupported)
			assert.Equal(t, tt.count, r.Count)
			assert.Equal(t, tt.valid, r.Valid)
			assert.Equal(t, tt.count-tt.valid, r.Rejected)
			assert.Len(t, r.ErrorMessages(), r.Rejected)
			if !tt.syntax {
				assert.NotEmpty(t, r.SyntaxError)
			}
		})
	}
}

func TestParseInstant(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{`1725667200000`, time.Date(2024, 9, 7, 0, 0, 0, 0, time.UTC)},
		{`1725667200000.9`, time.Date(2024, 9, 7, 0, 0, 0, 0, time.UTC)},
		{`-1000`, time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC)},
		{`"2024-09-07T08:00:00+08:00"`, time.Date(2024, 9, 7, 0, 0, 0, 0, time.UTC)},
		{`"2024-09-07T08:00:00.5Z"`, time.Date(2024, 9, 7, 8, 0, 0, 500_000_000, time.UTC)},
		{`"2024-09-07T08:00:00"`, time.Date(2024, 9, 7, 8, 0, 0, 0, shanghai)},
		{`"2024-09-07T08:00"`, time.Date(2024, 9, 7, 8, 0, 0, 0, shanghai)},
		{`"2024-09-07 08:00:00"`, time.Date(2024, 9, 7, 8, 0, 0, 0, shanghai)},
		{`"2024-09-07 08:00"`, time.Date(2024, 9, 7, 8, 0, 0, 0, shanghai)},
		{`"2024-09-07"`, time.Date(2024, 9, 7, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := course.ParseInstant(json.RawMessage(tt.raw), shanghai)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestParseInstantRejects(t *testing.T) {
	for _, raw := range []string{``, `null`, `""`, `"tomorrow"`, `true`, `{}`, `[1]`, `1e20`} {
		_, err := course.ParseInstant(json.RawMessage(raw), time.UTC)
		assert.ErrorIs(t, err, course.ErrInvalidInstant, raw)
	}
}

func TestExamplePayloadLoads(t *testing.T) {
	now := time.Date(2024, 9, 9, 7, 30, 0, 0, time.UTC)
	raw, err := course.ExamplePayload(now)
	require.NoError(t, err)

	s := newUTCStore()
	res, err := s.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Loaded)

	today := s.QueryByDate(now)
	require.Len(t, today, 2)
	assert.Equal(t, "Advanced Mathematics", today[0].LessonName)
	assert.Equal(t, 100*time.Minute, today[0].Duration())
	assert.Len(t, s.QueryByDate(now.AddDate(0, 0, 1)), 1)
}

func TestFormatJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": [\n    1\n  ]\n}", course.FormatJSON(`{"a":[1]}`))
	assert.Equal(t, "{broken", course.FormatJSON("{broken"))
}
