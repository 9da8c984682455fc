// Package schedule provides the time primitives for the availability engine:
// half-open intervals, weekly business hours, and slot slicing.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval indicates an interval whose start is not before its end.
var ErrInvalidInterval = errors.New("schedule: interval start must be before end")

// Interval is a half-open time range [Start, End). Immutable once constructed.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates and constructs an interval.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t falls inside the half-open range.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Clip returns the portion of iv that lies inside bounds.
// The second return value is false when nothing remains.
func (iv Interval) Clip(bounds Interval) (Interval, bool) {
	start := iv.Start
	if start.Before(bounds.Start) {
		start = bounds.Start
	}
	end := iv.End
	if end.After(bounds.End) {
		end = bounds.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Slot is a candidate bookable interval of fixed duration.
// Marshals as RFC3339 instants, which is also the shape held in
// conversation state.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DayHours is the open window for a single weekday, in local wall time
// ("HH:MM", 24-hour). Close must be after Open; overnight spans are not
// supported.
type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// WeeklyHours maps weekdays to an optional open window. A missing entry
// (or nil value) means the business is closed that day.
type WeeklyHours map[time.Weekday]*DayHours

// Validate checks every present day has a well-formed Open < Close pair.
func (w WeeklyHours) Validate() error {
	for day, h := range w {
		if h == nil {
			continue
		}
		open, err := parseWallMinutes(h.Open)
		if err != nil {
			return fmt.Errorf("schedule: %s open: %w", day, err)
		}
		closeM, err := parseWallMinutes(h.Close)
		if err != nil {
			return fmt.Errorf("schedule: %s close: %w", day, err)
		}
		if open >= closeM {
			return fmt.Errorf("schedule: %s hours %s-%s: open must precede close", day, h.Open, h.Close)
		}
	}
	return nil
}

// WindowFor resolves the open window for the calendar date of t in loc.
// Returns false when the business is closed that day.
func (w WeeklyHours) WindowFor(t time.Time, loc *time.Location) (Interval, bool) {
	local := t.In(loc)
	h := w[local.Weekday()]
	if h == nil {
		return Interval{}, false
	}
	open, err := parseWallMinutes(h.Open)
	if err != nil {
		return Interval{}, false
	}
	closeM, err := parseWallMinutes(h.Close)
	if err != nil || open >= closeM {
		return Interval{}, false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Interval{
		Start: midnight.Add(time.Duration(open) * time.Minute),
		End:   midnight.Add(time.Duration(closeM) * time.Minute),
	}, true
}

// parseWallMinutes converts "HH:MM" to minutes since midnight.
func parseWallMinutes(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed wall time %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("malformed wall time %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("malformed wall time %q", s)
	}
	return hours*60 + minutes, nil
}

// Daypart is the coarse half-day bucket used by the multi-day scan.
type Daypart string

const (
	DaypartMorning   Daypart = "morning"
	DaypartAfternoon Daypart = "afternoon"
)

// ClipToDaypart restricts an open-day window to its morning (open..noon)
// or afternoon (noon..close) half, relative to noon in loc.
func ClipToDaypart(window Interval, part Daypart, loc *time.Location) (Interval, bool) {
	local := window.Start.In(loc)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	switch part {
	case DaypartMorning:
		return window.Clip(Interval{Start: window.Start, End: noon})
	case DaypartAfternoon:
		if !noon.After(window.Start) {
			noon = window.Start
		}
		if !noon.Before(window.End) {
			return Interval{}, false
		}
		return Interval{Start: noon, End: window.End}, true
	default:
		return window, true
	}
}

// Location resolves an IANA timezone name, falling back to UTC when the
// name is empty or unknown.
func Location(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
