package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mover-report/internal/market"
)

type fakeBars struct {
	minute    []Bar
	five      []Bar
	daily     []Bar
	minuteErr error
	calls     map[Interval]int
}

func (f *fakeBars) IntradayBars(_ context.Context, _ string, interval Interval, _, _ time.Time, _ bool) ([]Bar, error) {
	if f.calls == nil {
		f.calls = map[Interval]int{}
	}
	f.calls[interval]++
	switch interval {
	case IntervalMinute:
		return f.minute, f.minuteErr
	case IntervalFiveMinute:
		return f.five, nil
	}
	return nil, nil
}

func (f *fakeBars) DailyBars(_ context.Context, _ string, _ int) ([]Bar, error) {
	return f.daily, nil
}

type fakeSnaps struct {
	snap  Snapshot
	err   error
	calls int
}

func (f *fakeSnaps) Quote(_ context.Context, _ string) (Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

func testWindow(t *testing.T) market.Window {
	t.Helper()
	start := time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC)
	return market.Window{Label: market.LabelOpenNow, Start: start, End: start.Add(2 * time.Hour)}
}

func bar(t *testing.T, w market.Window, offset time.Duration, open, close string) Bar {
	t.Helper()
	return Bar{
		Timestamp: w.Start.Add(offset),
		Open:      decimal.RequireFromString(open),
		High:      decimal.RequireFromString(close),
		Low:       decimal.RequireFromString(open),
		Close:     decimal.RequireFromString(close),
	}
}

func newTestFetcher(bars BarProvider, snaps SnapshotProvider) *Fetcher {
	return NewFetcher(bars, snaps, FetcherOptions{
		OpenTolerance: 5 * time.Minute,
		RetryBackoff:  time.Millisecond,
	}, zerolog.Nop())
}

func TestFetchResolvesFromMinuteBars(t *testing.T) {
	w := testWindow(t)
	bars := &fakeBars{minute: []Bar{
		bar(t, w, 0, "10", "10.1"),
		bar(t, w, time.Hour, "10.1", "10.5"),
	}}
	snaps := &fakeSnaps{snap: Snapshot{PreviousClose: dec("9.8")}}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "ABC", w)

	if obs.Open == nil || !obs.Open.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("open = %v, want 10 from first bar", obs.Open)
	}
	if obs.Last == nil || !obs.Last.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("last = %v, want 10.5 from final bar close", obs.Last)
	}
	if obs.BarSource != "1m" {
		t.Fatalf("bar source = %q, want 1m", obs.BarSource)
	}
	if obs.PreviousClose == nil {
		t.Fatal("previous close should be filled from snapshot tier")
	}
}

func TestFetchLaterTierNeverOverwrites(t *testing.T) {
	w := testWindow(t)
	// Tier 1 resolves open only (single bar is also the last close, so force
	// the gap by making the snapshot disagree on open).
	bars := &fakeBars{minute: []Bar{bar(t, w, 0, "10", "10")}}
	snaps := &fakeSnaps{snap: Snapshot{
		Open:          dec("99"),
		Last:          dec("10.4"),
		PreviousClose: dec("9.9"),
	}}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "ABC", w)

	if !obs.Open.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("snapshot must not overwrite tier-1 open: got %v", obs.Open)
	}
	if !obs.Last.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("tier-1 last must survive: got %v", obs.Last)
	}
	if !obs.PreviousClose.Equal(decimal.RequireFromString("9.9")) {
		t.Fatalf("snapshot should fill the missing previous close: got %v", obs.PreviousClose)
	}
}

func TestFetchFallsBackToFiveMinuteBars(t *testing.T) {
	w := testWindow(t)
	bars := &fakeBars{
		minute: nil,
		five:   []Bar{bar(t, w, 0, "20", "20.4")},
	}
	snaps := &fakeSnaps{}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "XYZ", w)

	if obs.BarSource != "5m" {
		t.Fatalf("bar source = %q, want 5m fallback", obs.BarSource)
	}
	if obs.Open == nil || obs.Last == nil {
		t.Fatalf("five-minute tier should resolve open and last: %+v", obs)
	}
}

func TestFetchOpenToleranceExceeded(t *testing.T) {
	w := testWindow(t)
	// First bar ten minutes after window start: beyond the 5m tolerance, so
	// open must stay absent rather than be approximated from a stale bar.
	bars := &fakeBars{minute: []Bar{bar(t, w, 10*time.Minute, "10", "10.2")}}
	snaps := &fakeSnaps{}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "ABC", w)

	if obs.Open != nil {
		t.Fatalf("open beyond tolerance should be absent, got %v", obs.Open)
	}
	if obs.Last == nil {
		t.Fatal("last should still come from the bar series")
	}
}

func TestFetchFiltersBarsOutsideWindow(t *testing.T) {
	w := testWindow(t)
	bars := &fakeBars{minute: []Bar{
		bar(t, w, -time.Hour, "9", "9.5"), // before the window
		bar(t, w, time.Minute, "10", "10.1"),
		bar(t, w, 3*time.Hour, "11", "11.5"), // after the window
	}}
	snaps := &fakeSnaps{}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "ABC", w)

	if !obs.Open.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("out-of-window bars must be ignored for open, got %v", obs.Open)
	}
	if !obs.Last.Equal(decimal.RequireFromString("10.1")) {
		t.Fatalf("out-of-window bars must be ignored for last, got %v", obs.Last)
	}
}

func TestFetchHighLowAcrossWindowBars(t *testing.T) {
	w := testWindow(t)
	bars := &fakeBars{minute: []Bar{
		{Timestamp: w.Start, Open: decimal.NewFromInt(10), High: decimal.NewFromInt(12), Low: decimal.NewFromInt(9), Close: decimal.NewFromInt(11)},
		{Timestamp: w.Start.Add(time.Minute), Open: decimal.NewFromInt(11), High: decimal.NewFromInt(15), Low: decimal.NewFromInt(10), Close: decimal.NewFromInt(14)},
	}}
	snaps := &fakeSnaps{}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "ABC", w)

	if !obs.High.Equal(decimal.NewFromInt(15)) || !obs.Low.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("high/low = %v/%v, want 15/9", obs.High, obs.Low)
	}
}

func TestFetchRetriesOnceThenSnapshots(t *testing.T) {
	w := testWindow(t)
	bars := &fakeBars{minuteErr: errors.New("timeout")}
	snaps := &fakeSnaps{snap: Snapshot{Open: dec("10"), Last: dec("10.3"), PreviousClose: dec("9.9")}}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "ABC", w)

	if bars.calls[IntervalMinute] != 2 {
		t.Fatalf("minute tier should be retried exactly once, got %d calls", bars.calls[IntervalMinute])
	}
	if obs.Unavailable() {
		t.Fatal("snapshot tier should have resolved the observation")
	}
	if !obs.Open.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("open from snapshot = %v", obs.Open)
	}
}

func TestFetchAllTiersExhausted(t *testing.T) {
	w := testWindow(t)
	bars := &fakeBars{}
	snaps := &fakeSnaps{err: errors.New("down")}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "DEF", w)

	if !obs.Unavailable() {
		t.Fatalf("exhausted chain should be marked unavailable: %+v", obs)
	}
	if snaps.calls != 2 {
		t.Fatalf("snapshot should be retried once, got %d calls", snaps.calls)
	}
}

func TestFetchDailyCloseLastResort(t *testing.T) {
	w := testWindow(t)
	bars := &fakeBars{
		minute: []Bar{bar(t, w, 0, "10", "10.2")},
		daily:  []Bar{{Timestamp: w.Start.AddDate(0, 0, -1), Close: decimal.RequireFromString("9.7")}},
	}
	snaps := &fakeSnaps{err: errors.New("down")}

	obs := newTestFetcher(bars, snaps).Fetch(context.Background(), "ABC", w)

	if obs.PreviousClose == nil || !obs.PreviousClose.Equal(decimal.RequireFromString("9.7")) {
		t.Fatalf("daily tier should fill previous close: %v", obs.PreviousClose)
	}
}
