package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "coursecal/internal/log"
)

const defaultMaxOccurrencesPerEvent = 1000

// Window bounds recurrence expansion. Non-recurring events are kept
// regardless of the window.
type Window struct {
	Start time.Time
	End   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means the default.
	MaxOccurrencesPerEvent int
}

// occurrence is one concrete instance of a parsed event.
type occurrence struct {
	ev    parsedEvent
	start time.Time
	end   time.Time
}

// expandEvents turns base events plus RECURRENCE-ID overrides into
// occurrences, applying EXDATEs. It returns the UIDs that hit the cap.
func expandEvents(events []parsedEvent, w Window) ([]occurrence, []string, error) {
	if w.End.Before(w.Start) {
		return nil, nil, errors.New("ics: window end is before start")
	}
	if w.MaxOccurrencesPerEvent <= 0 {
		w.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	var order []string
	bases := make(map[string][]parsedEvent)
	overrides := make(map[string][]parsedEvent)
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	out := make([]occurrence, 0, len(events))
	var truncated []string
	for _, uid := range order {
		hit := false
		for _, ev := range bases[uid] {
			occ, capped := expandEvent(ev, overrides[uid], w)
			hit = hit || capped
			out = append(out, occ...)
		}
		if hit {
			truncated = append(truncated, uid)
			appLog.Warn("ics expand truncated", "uid", uid, "cap", w.MaxOccurrencesPerEvent)
		}
	}
	return out, truncated, nil
}

func expandEvent(ev parsedEvent, overrides []parsedEvent, w Window) ([]occurrence, bool) {
	if ev.RawRRule == "" {
		if o, ok := findOverride(overrides, ev.Start); ok {
			return []occurrence{{ev: o, start: o.Start, end: o.End}}, false
		}
		return []occurrence{{ev: ev, start: ev.Start, end: ev.End}}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(w.Start.In(ev.Start.Location()), w.End.In(ev.Start.Location()), true)
	capped := false
	if len(starts) > w.MaxOccurrencesPerEvent {
		starts = starts[:w.MaxOccurrencesPerEvent]
		capped = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		if o, ok := findOverride(overrides, s); ok {
			out = append(out, occurrence{ev: o, start: o.Start, end: o.End})
			continue
		}
		out = append(out, occurrence{ev: ev, start: s, end: s.Add(dur)})
	}
	return out, capped
}

// findOverride finds the override whose RECURRENCE-ID equals start.
func findOverride(overrides []parsedEvent, start time.Time) (parsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return parsedEvent{}, false
}
