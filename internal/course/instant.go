package course

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxEpochMillis is the largest magnitude a browser Date accepts (±100,000,000 days).
const maxEpochMillis = 8.64e15

// Layouts tried, in order, for string instants without an explicit offset.
// They are interpreted in the display location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant converts a raw JSON value into an instant.
//
//   - numbers are milliseconds since the Unix epoch (fractions truncated)
//   - strings are RFC 3339, a local date-time in loc, or a date-only value
//     which is taken as UTC midnight
//
// Missing values, null and any other JSON type are rejected.
func ParseInstant(raw json.RawMessage, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("%w: missing value", ErrInvalidInstant)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInstant, err)
		}
		return parseInstantString(s, loc)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return parseInstantMillis(string(raw))
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported value %s", ErrInvalidInstant, raw)
	}
}

func parseInstantMillis(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if math.Abs(float64(ms)) > maxEpochMillis {
			return time.Time{}, fmt.Errorf("%w: %s out of range", ErrInvalidInstant, s)
		}
		return time.UnixMilli(ms), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > maxEpochMillis {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidInstant, s)
	}
	return time.UnixMilli(int64(f)), nil
}

func parseInstantString(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrInvalidInstant)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.Truncate(time.Millisecond), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Truncate(time.Millisecond), nil
		}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
}
