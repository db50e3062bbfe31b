package course

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedJSON is returned when the input is not valid JSON.
	// The wrapping error carries the parser message.
	ErrMalformedJSON = errors.New("malformed JSON")

	// ErrUnsupportedFormat is returned when the JSON parses but matches none
	// of the accepted shapes (data.list, list, bare array).
	ErrUnsupportedFormat = errors.New("unsupported data format")

	ErrNotObject        = errors.New("record is not a JSON object")
	ErrInvalidInstant   = errors.New("invalid instant")
	ErrInvalidField     = errors.New("invalid field type")
	ErrInvertedInterval = errors.New("endTime is before startTime")
)

// RecordError describes why a single element of the resolved list was
// rejected during ingestion.
type RecordError struct {
	Index int
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
}
