package course

import (
	"errors"
)

// ValidationReport previews what Load would do with a document.
type ValidationReport struct {
	SyntaxValid     bool          `json:"syntax_valid"`
	SyntaxError     string        `json:"syntax_error,omitempty"`
	FormatSupported bool          `json:"format_supported"`
	Shape           Shape         `json:"shape,omitempty"`
	Count           int           `json:"count"`
	Valid           int           `json:"valid"`
	Rejected        int           `json:"rejected"`
	Errors          []RecordError `json:"-"`
}

// ErrorMessages returns the record errors as strings for display.
func (r ValidationReport) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// Validate parses raw and resolves its shape without storing anything.
func Validate(raw string, opts Options) ValidationReport {
	var r ValidationReport

	b, err := parseDocument(raw, opts)
	switch {
	case errors.Is(err, ErrMalformedJSON):
		r.SyntaxError = err.Error()
		return r
	case errors.Is(err, ErrUnsupportedFormat):
		r.SyntaxValid = true
		return r
	case err != nil:
		r.SyntaxError = err.Error()
		return r
	}

	r.SyntaxValid = true
	r.FormatSupported = true
	r.Shape = b.shape
	r.Count = b.total
	r.Valid = len(b.courses)
	r.Rejected = len(b.errs)
	r.Errors = b.errs
	return r
}

// Check returns the document-level error Load would fail with, if any:
// ErrMalformedJSON or ErrUnsupportedFormat.
func Check(raw string) error {
	_, _, err := resolveList([]byte(raw))
	return err
}
