// Package app wires the course store to persisted state and turns ingestion
// outcomes into user-facing notices.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"coursecal/internal/course"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/state"
)

var (
	// ErrStorageRead means the persisted course data could not be read.
	// The app keeps running with an empty course set.
	ErrStorageRead = errors.New("failed to read stored course data")

	ErrEmptyInput = errors.New("no data entered")
)

// Level classifies a Notice for display.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notice is a transient, auto-dismissing message for the user.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// App owns the course store and its persisted copy.
type App struct {
	Store *course.Store
	KV    state.KV

	// commitMu keeps the persisted blob and the loaded store in step.
	commitMu sync.Mutex
}

func New(store *course.Store, kv state.KV) *App {
	return &App{Store: store, KV: kv}
}

// Restore loads the persisted course data at startup. A missing blob is not
// an error. Read failures are reported as ErrStorageRead with the store left
// empty; a stored blob that no longer loads is logged and ignored.
func (a *App) Restore() (course.LoadResult, error) {
	raw, err := a.KV.Get(state.CourseDataKey)
	if errors.Is(err, state.ErrNotFound) {
		appLog.Info("no stored course data")
		return course.LoadResult{}, nil
	}
	if err != nil {
		appLog.Error("course data read failed", err, "key", state.CourseDataKey)
		return course.LoadResult{}, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	res, err := a.Store.Load(raw)
	if err != nil {
		appLog.Error("stored course data does not load", err, "key", state.CourseDataKey)
		return course.LoadResult{}, err
	}
	return res, nil
}

// Commit loads raw into the store and, if the document is accepted,
// persists it as the new saved state. A document rejected at the parse or
// shape stage changes neither.
func (a *App) Commit(raw string) (course.LoadResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return course.LoadResult{}, ErrEmptyInput
	}

	a.commitMu.Lock()
	defer a.commitMu.Unlock()

	// Check first so a rejected document is never persisted.
	if err := course.Check(raw); err != nil {
		return course.LoadResult{}, err
	}

	if err := a.KV.Set(state.CourseDataKey, raw); err != nil {
		appLog.Error("course data save failed", err, "key", state.CourseDataKey)
		return course.LoadResult{}, err
	}
	return a.Store.Load(raw)
}

// Validate previews raw without loading or saving it.
func (a *App) Validate(raw string) (course.ValidationReport, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return course.ValidationReport{}, ErrEmptyInput
	}
	return a.Store.Validate(raw), nil
}

// RawData returns the persisted text, pretty-printed for editing. Missing
// data yields the empty string.
func (a *App) RawData() (string, error) {
	raw, err := a.KV.Get(state.CourseDataKey)
	if errors.Is(err, state.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return course.FormatJSON(raw), nil
}

// ImportICS converts an ICS timetable into the course payload and commits it.
func (a *App) ImportICS(body []byte, w ics.Window) (course.LoadResult, ics.ImportResult, error) {
	imp, err := ics.Import(body, w, a.Store.Location())
	if err != nil {
		return course.LoadResult{}, imp, err
	}
	raw, err := course.NewPayload(imp.Courses).Marshal()
	if err != nil {
		return course.LoadResult{}, imp, err
	}
	res, err := a.Commit(raw)
	return res, imp, err
}

// ImportICSURL fetches a timetable and imports it.
func (a *App) ImportICSURL(ctx context.Context, f *ics.Fetcher, url string, w ics.Window) (course.LoadResult, ics.ImportResult, error) {
	body, _, err := f.Fetch(ctx, url)
	if err != nil {
		return course.LoadResult{}, ics.ImportResult{}, err
	}
	return a.ImportICS(body, w)
}

// ImportWindow spans days before and after now.
func ImportWindow(now time.Time, days int) ics.Window {
	return ics.Window{
		Start: now.AddDate(0, 0, -days),
		End:   now.AddDate(0, 0, days),
	}
}

// LoadNotice describes the outcome of a load or commit.
func LoadNotice(res course.LoadResult, err error) Notice {
	switch {
	case err == nil && res.Rejected > 0:
		return Notice{LevelWarning, fmt.Sprintf("Loaded %d courses, skipped %d invalid records", res.Loaded, res.Rejected)}
	case err == nil:
		return Notice{LevelSuccess, fmt.Sprintf("Loaded %d courses", res.Loaded)}
	}
	return ErrorNotice(err)
}

// ValidationNotices describes a validation report; the first notice is
// always the syntax verdict.
func ValidationNotices(r course.ValidationReport) []Notice {
	if !r.SyntaxValid {
		return []Notice{{LevelError, "JSON format error: " + strings.TrimPrefix(r.SyntaxError, course.ErrMalformedJSON.Error()+": ")}}
	}
	out := []Notice{{LevelSuccess, "JSON format is valid"}}
	switch {
	case !r.FormatSupported:
		out = append(out, Notice{LevelError, "Unsupported data format"})
	case r.Rejected > 0:
		out = append(out, Notice{LevelWarning, fmt.Sprintf("Found %d courses, %d invalid", r.Count, r.Rejected)})
	case r.Count > 0:
		out = append(out, Notice{LevelSuccess, fmt.Sprintf("Found %d courses", r.Count)})
	}
	return out
}

// ErrorNotice maps ingestion and storage errors onto user messages.
func ErrorNotice(err error) Notice {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return Notice{LevelWarning, "Please enter data"}
	case errors.Is(err, course.ErrMalformedJSON):
		return Notice{LevelError, "JSON format error: " + strings.TrimPrefix(err.Error(), course.ErrMalformedJSON.Error()+": ")}
	case errors.Is(err, course.ErrUnsupportedFormat):
		return Notice{LevelError, "Unsupported data format"}
	case errors.Is(err, ErrStorageRead):
		return Notice{LevelError, "Failed to load course data"}
	default:
		return Notice{LevelError, "Save failed: " + err.Error()}
	}
}
