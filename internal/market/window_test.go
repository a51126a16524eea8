package market

import (
	"testing"
	"time"
)

func testCalculator(t *testing.T) *Calculator {
	t.Helper()
	return NewCalculator(Options{
		AfterHoursStart: Clock{22, 0},
		AfterHoursEnd:   Clock{2, 0},
		PremarketStart:  Clock{10, 0},
		PremarketEnd:    Clock{15, 30},
		SessionOpen:     Clock{15, 30},
		SessionClose:    Clock{22, 0},
	})
}

func budapest(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Budapest")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestAfterHoursWindowWrapsMidnight(t *testing.T) {
	loc := budapest(t)
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, loc)

	windows, err := testCalculator(t).ComputeWindows(ReportAfterHours, now)
	if err != nil {
		t.Fatalf("ComputeWindows: %v", err)
	}

	ah := windows[LabelAfterHours]
	wantStart := time.Date(2025, 3, 11, 22, 0, 0, 0, loc)
	wantEnd := time.Date(2025, 3, 12, 2, 0, 0, 0, loc)
	if !ah.Start.Equal(wantStart) {
		t.Fatalf("after-hours start = %v, want %v", ah.Start, wantStart)
	}
	if !ah.End.Equal(wantEnd) {
		t.Fatalf("after-hours end = %v, want %v (day after start)", ah.End, wantEnd)
	}

	inside := time.Date(2025, 3, 12, 0, 30, 0, 0, loc)
	if !ah.Contains(inside) {
		t.Fatalf("00:30 on the following day should be inside the window")
	}
	outside := time.Date(2025, 3, 11, 21, 0, 0, 0, loc)
	if ah.Contains(outside) {
		t.Fatalf("21:00 before the start should be outside the window")
	}

	pm := windows[LabelPremarket]
	if !pm.Start.Equal(time.Date(2025, 3, 12, 10, 0, 0, 0, loc)) {
		t.Fatalf("premarket start on the current day, got %v", pm.Start)
	}
	if !pm.End.After(pm.Start) {
		t.Fatalf("premarket window must not wrap")
	}
}

func TestWindowBoundsInclusive(t *testing.T) {
	loc := budapest(t)
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, loc)
	windows, _ := testCalculator(t).ComputeWindows(ReportAfterHours, now)

	ah := windows[LabelAfterHours]
	if !ah.Contains(ah.Start) || !ah.Contains(ah.End) {
		t.Fatal("window bounds must be inclusive")
	}
}

func TestPrevSessionSkipsWeekend(t *testing.T) {
	loc := budapest(t)
	// Monday morning: previous session is Friday, not Sunday.
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)

	windows, err := testCalculator(t).ComputeWindows(ReportPrevSession, now)
	if err != nil {
		t.Fatalf("ComputeWindows: %v", err)
	}

	oc := windows[LabelOpenClose]
	wantStart := time.Date(2025, 3, 7, 15, 30, 0, 0, loc)
	if !oc.Start.Equal(wantStart) {
		t.Fatalf("session start = %v, want Friday %v", oc.Start, wantStart)
	}
	if !oc.End.Equal(time.Date(2025, 3, 7, 22, 0, 0, 0, loc)) {
		t.Fatalf("session end = %v", oc.End)
	}
}

func TestOpenToNowClampsBeforeOpen(t *testing.T) {
	loc := budapest(t)
	now := time.Date(2025, 3, 12, 14, 0, 0, 0, loc) // before 15:30 open

	windows, err := testCalculator(t).ComputeWindows(ReportOpenToNow, now)
	if err != nil {
		t.Fatalf("ComputeWindows: %v", err)
	}

	on := windows[LabelOpenNow]
	open := time.Date(2025, 3, 12, 15, 30, 0, 0, loc)
	if !on.Start.Equal(open) || !on.End.Equal(open) {
		t.Fatalf("pre-open invocation should clamp to a zero-length window at open, got %v -> %v", on.Start, on.End)
	}

	later := time.Date(2025, 3, 12, 17, 45, 0, 0, loc)
	windows, _ = testCalculator(t).ComputeWindows(ReportOpenToNow, later)
	on = windows[LabelOpenNow]
	if !on.End.Equal(later) {
		t.Fatalf("post-open invocation should end at now, got %v", on.End)
	}
}

func TestReportSpanCoversAllWindows(t *testing.T) {
	loc := budapest(t)
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, loc)

	span, err := testCalculator(t).ReportSpan(ReportAfterHours, now)
	if err != nil {
		t.Fatalf("ReportSpan: %v", err)
	}
	if !span.Start.Equal(time.Date(2025, 3, 11, 22, 0, 0, 0, loc)) {
		t.Fatalf("span start = %v", span.Start)
	}
	if !span.End.Equal(time.Date(2025, 3, 12, 15, 30, 0, 0, loc)) {
		t.Fatalf("span end = %v", span.End)
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("22:00")
	if err != nil || c.Hour != 22 || c.Minute != 0 {
		t.Fatalf("ParseClock(22:00) = %+v, %v", c, err)
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatal("hour out of range should fail")
	}
	if _, err := ParseClock("nope"); err == nil {
		t.Fatal("malformed clock should fail")
	}
}

func TestParseReportKind(t *testing.T) {
	for arg, want := range map[string]ReportKind{
		"1": ReportAfterHours, "afterhours": ReportAfterHours,
		"2": ReportPrevSession, "session": ReportPrevSession,
		"3": ReportOpenToNow, "intraday": ReportOpenToNow,
	} {
		got, err := ParseReportKind(arg)
		if err != nil || got != want {
			t.Fatalf("ParseReportKind(%q) = %q, %v; want %q", arg, got, err, want)
		}
	}
	if _, err := ParseReportKind("4"); err == nil {
		t.Fatal("unknown kind should fail")
	}
}
