package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReportKind selects which evaluation windows a run computes.
type ReportKind string

const (
	// ReportAfterHours covers the prior evening after-hours range plus the
	// current morning premarket range.
	ReportAfterHours ReportKind = "afterhours"
	// ReportPrevSession covers the most recent prior trading day open to close.
	ReportPrevSession ReportKind = "session"
	// ReportOpenToNow covers today's open up to the current instant.
	ReportOpenToNow ReportKind = "intraday"
)

// ParseReportKind maps a CLI argument onto a ReportKind.
func ParseReportKind(s string) (ReportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "afterhours", "ah", "1":
		return ReportAfterHours, nil
	case "session", "openclose", "2":
		return ReportPrevSession, nil
	case "intraday", "opennow", "3":
		return ReportOpenToNow, nil
	}
	return "", fmt.Errorf("unknown report kind %q (afterhours|session|intraday)", s)
}

// Label names a single evaluation window within a report.
type Label string

const (
	LabelAfterHours Label = "after_hours"
	LabelPremarket  Label = "premarket"
	LabelOpenClose  Label = "open_close"
	LabelOpenNow    Label = "open_now"
)

// Window is a closed time interval over which prices and news are evaluated.
type Window struct {
	Label Label
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, bounds inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Clock is a local wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in clock time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in clock time %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// before reports whether c is numerically earlier in the day than other.
func (c Clock) before(other Clock) bool {
	if c.Hour != other.Hour {
		return c.Hour < other.Hour
	}
	return c.Minute < other.Minute
}

// at anchors the clock time onto the calendar day of d, in d's location.
func (c Clock) at(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, d.Location())
}

// Options fix the reference clock times for the calculator. All clock times
// are local to the reference timezone.
type Options struct {
	AfterHoursStart Clock
	AfterHoursEnd   Clock
	PremarketStart  Clock
	PremarketEnd    Clock
	SessionOpen     Clock
	SessionClose    Clock
}

// Calculator derives evaluation windows from a report kind and an explicit
// "now". It holds no clock of its own.
type Calculator struct {
	opts Options
}

// NewCalculator constructs a window calculator.
func NewCalculator(opts Options) *Calculator {
	return &Calculator{opts: opts}
}

// ComputeWindows resolves the evaluation windows for the given report kind.
// now must carry the reference timezone; window instants are produced in the
// same location.
func (c *Calculator) ComputeWindows(kind ReportKind, now time.Time) (map[Label]Window, error) {
	switch kind {
	case ReportAfterHours:
		ah := c.span(now.AddDate(0, 0, -1), c.opts.AfterHoursStart, c.opts.AfterHoursEnd, LabelAfterHours)
		pm := c.span(now, c.opts.PremarketStart, c.opts.PremarketEnd, LabelPremarket)
		return map[Label]Window{LabelAfterHours: ah, LabelPremarket: pm}, nil
	case ReportPrevSession:
		day := previousTradingDay(now)
		w := c.span(day, c.opts.SessionOpen, c.opts.SessionClose, LabelOpenClose)
		return map[Label]Window{LabelOpenClose: w}, nil
	case ReportOpenToNow:
		open := c.opts.SessionOpen.at(now)
		end := now
		if end.Before(open) {
			// Pre-open invocation: zero-length but well-defined window.
			end = open
		}
		return map[Label]Window{LabelOpenNow: {Label: LabelOpenNow, Start: open, End: end}}, nil
	}
	return nil, fmt.Errorf("unknown report kind %q", kind)
}

// ReportSpan returns the earliest start and latest end across the report's
// windows, used for the macro headline query.
func (c *Calculator) ReportSpan(kind ReportKind, now time.Time) (Window, error) {
	windows, err := c.ComputeWindows(kind, now)
	if err != nil {
		return Window{}, err
	}
	var span Window
	for _, w := range windows {
		if span.Start.IsZero() || w.Start.Before(span.Start) {
			span.Start = w.Start
		}
		if w.End.After(span.End) {
			span.End = w.End
		}
	}
	return span, nil
}

// span anchors start on day and places end on the following calendar day when
// the end clock time precedes the start clock time (midnight wraparound).
func (c *Calculator) span(day time.Time, start, end Clock, label Label) Window {
	startAt := start.at(day)
	endDay := day
	if end.before(start) {
		endDay = day.AddDate(0, 0, 1)
	}
	return Window{Label: label, Start: startAt, End: end.at(endDay)}
}

// previousTradingDay steps back one day at a time until a weekday is reached.
// No holiday calendar is consulted.
func previousTradingDay(now time.Time) time.Time {
	day := now.AddDate(0, 0, -1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
