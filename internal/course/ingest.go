package course

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"coursecal/internal/model"
)

// Shape names which of the accepted document layouts was resolved.
type Shape string

const (
	ShapeNone     Shape = ""
	ShapeDataList Shape = "data.list"
	ShapeList     Shape = "list"
	ShapeArray    Shape = "array"
)

// Options controls how records are normalized during ingestion.
type Options struct {
	// Location is the display timezone used for calendar-day comparisons
	// and for string instants without an offset. Nil means time.Local.
	Location *time.Location

	// RejectInvertedIntervals rejects records whose endTime precedes their
	// startTime. Equal instants are always accepted.
	RejectInvertedIntervals bool
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// batch is the outcome of parsing one document, before it is committed.
type batch struct {
	shape   Shape
	total   int
	courses []model.Course
	errs    []RecordError
}

// parseDocument parses raw, resolves the record list and converts every
// element. Only document-level failures are returned as errors; per-record
// failures are collected in the batch.
func parseDocument(raw string, opts Options) (batch, error) {
	elems, shape, err := resolveList([]byte(raw))
	if err != nil {
		return batch{}, err
	}

	b := batch{
		shape:   shape,
		total:   len(elems),
		courses: make([]model.Course, 0, len(elems)),
	}
	for i, elem := range elems {
		c, err := decodeCourse(elem, opts)
		if err != nil {
			b.errs = append(b.errs, RecordError{Index: i, Err: err})
			continue
		}
		b.courses = append(b.courses, c)
	}
	return b, nil
}

// resolveList unwraps the record sequence, trying data.list, then list, then
// the document itself.
func resolveList(data []byte) ([]json.RawMessage, Shape, error) {
	var doc json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ShapeNone, malformed(err)
	}

	if isArray(doc) {
		var elems []json.RawMessage
		if err := json.Unmarshal(doc, &elems); err != nil {
			return nil, ShapeNone, malformed(err)
		}
		return elems, ShapeArray, nil
	}

	if !isObject(doc) {
		return nil, ShapeNone, ErrUnsupportedFormat
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, ShapeNone, malformed(err)
	}

	if inner, ok := top["data"]; ok && isObject(inner) {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil {
			if list, ok := nested["list"]; ok && isArray(list) {
				var elems []json.RawMessage
				if err := json.Unmarshal(list, &elems); err != nil {
					return nil, ShapeNone, malformed(err)
				}
				return elems, ShapeDataList, nil
			}
		}
	}

	if list, ok := top["list"]; ok && isArray(list) {
		var elems []json.RawMessage
		if err := json.Unmarshal(list, &elems); err != nil {
			return nil, ShapeNone, malformed(err)
		}
		return elems, ShapeList, nil
	}

	return nil, ShapeNone, ErrUnsupportedFormat
}

// decodeCourse shallow-copies every field of one record and converts the
// typed ones.
func decodeCourse(elem json.RawMessage, opts Options) (model.Course, error) {
	var c model.Course
	if !isObject(elem) {
		return c, ErrNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(elem, &fields); err != nil {
		return c, fmt.Errorf("%w: %v", ErrNotObject, err)
	}

	loc := opts.location()
	var err error

	if c.StartTime, err = ParseInstant(fields[model.FieldStartTime], loc); err != nil {
		return c, fmt.Errorf("%s: %w", model.FieldStartTime, err)
	}
	if c.EndTime, err = ParseInstant(fields[model.FieldEndTime], loc); err != nil {
		return c, fmt.Errorf("%s: %w", model.FieldEndTime, err)
	}
	if opts.RejectInvertedIntervals && c.EndTime.Before(c.StartTime) {
		return c, ErrInvertedInterval
	}

	texts := []struct {
		key string
		dst *string
	}{
		{model.FieldLessonName, &c.LessonName},
		{model.FieldTeacherName, &c.TeacherName},
		{model.FieldClassRoomName, &c.ClassRoomName},
		{model.FieldDescription, &c.Description},
	}
	for _, f := range texts {
		if *f.dst, err = decodeText(fields[f.key]); err != nil {
			return c, fmt.Errorf("%s: %w", f.key, err)
		}
	}

	for k, v := range fields {
		switch k {
		case model.FieldLessonName, model.FieldTeacherName, model.FieldClassRoomName,
			model.FieldDescription, model.FieldStartTime, model.FieldEndTime:
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]json.RawMessage)
		}
		c.Extra[k] = v
	}

	return c, nil
}

// decodeText accepts strings, numbers and booleans. Absent and null fields
// yield the empty string.
func decodeText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidField, raw)
	}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
