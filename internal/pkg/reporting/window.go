package reporting

import (
	"strings"
	"time"
)

// WindowParams holds the raw date inputs of a report request.
type WindowParams struct {
	Start     string
	End       string
	FixedDate string
}

// Window is the inclusive reporting interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ResolveWindow picks the window from an explicit start and end, then a single
// fixed date, then the current day. The end always extends to 23:59:59.999 of
// its day in loc.
func ResolveWindow(p WindowParams, now time.Time, loc *time.Location) (Window, error) {
	start, end := strings.TrimSpace(p.Start), strings.TrimSpace(p.End)
	fixed := strings.TrimSpace(p.FixedDate)

	switch {
	case start != "" && end != "":
		s, err := parseDate(start, loc)
		if err != nil {
			return Window{}, validationError(MsgInvalidRange)
		}
		e, err := parseDate(end, loc)
		if err != nil {
			return Window{}, validationError(MsgInvalidRange)
		}
		return Window{Start: s, End: endOfDay(e)}, nil
	case fixed != "":
		d, err := parseDate(fixed, loc)
		if err != nil {
			return Window{}, validationError(MsgInvalidFixedDate)
		}
		return Window{Start: d, End: endOfDay(d)}, nil
	default:
		today := now.In(loc)
		return Window{Start: startOfDay(today), End: endOfDay(today)}, nil
	}
}

// parseDate accepts RFC 3339 timestamps and bare dates. Bare values are read in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
