package news

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mover-report/internal/market"
)

type fakeFeeds struct {
	byURL map[string][]Item
	errFor map[string]error
}

func (f *fakeFeeds) Entries(_ context.Context, feedURL string) ([]Item, error) {
	if err, ok := f.errFor[feedURL]; ok {
		return nil, err
	}
	for url, items := range f.byURL {
		if strings.Contains(feedURL, url) {
			return items, nil
		}
	}
	return nil, nil
}

type fakeFilings struct {
	items []Item
	err   error
}

func (f *fakeFilings) Filings(_ context.Context, _ string) ([]Item, error) {
	return f.items, f.err
}

func newsWindow() market.Window {
	start := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	return market.Window{Label: market.LabelPremarket, Start: start, End: start.Add(5 * time.Hour)}
}

func inWin(w market.Window, offset time.Duration) time.Time {
	return w.Start.Add(offset)
}

func TestCorrelateFiltersToWindowInclusive(t *testing.T) {
	w := newsWindow()
	feeds := &fakeFeeds{byURL: map[string][]Item{
		"ticker-feed": {
			{Title: "At start", PublishedAt: w.Start},
			{Title: "At end", PublishedAt: w.End},
			{Title: "Too early", PublishedAt: w.Start.Add(-time.Minute)},
			{Title: "Too late", PublishedAt: w.End.Add(time.Minute)},
		},
	}}

	c := NewCorrelator(feeds, nil, nil, CorrelatorOptions{TickerFeedURL: "https://ticker-feed/%s"}, zerolog.Nop())
	items := c.Correlate(context.Background(), "ABC", w)

	if len(items) != 2 {
		t.Fatalf("expected the two boundary items, got %+v", items)
	}
}

func TestCorrelateDedupPriorityWins(t *testing.T) {
	w := newsWindow()
	feeds := &fakeFeeds{byURL: map[string][]Item{
		"ticker-feed": {
			{Title: "company x reports q3 earnings!", Source: "Random Blog", PublishedAt: inWin(w, time.Hour)},
			{Title: "Company X Reports Q3 Earnings", Source: "Reuters Business", PublishedAt: inWin(w, 2 * time.Hour)},
		},
	}}

	c := NewCorrelator(feeds, nil, nil, CorrelatorOptions{TickerFeedURL: "https://ticker-feed/%s"}, zerolog.Nop())
	items := c.Correlate(context.Background(), "ABC", w)

	if len(items) != 1 {
		t.Fatalf("duplicate titles should collapse to one, got %d", len(items))
	}
	if items[0].Source != "Reuters Business" {
		t.Fatalf("higher-priority source should win the dedup, got %q", items[0].Source)
	}
}

func TestCorrelateOrdering(t *testing.T) {
	w := newsWindow()
	resolver := NewFilerIndex(map[string]Filer{"ABC": {CIK: "0000000001", Name: "ABC Corp"}})
	filings := &fakeFilings{items: []Item{
		{Title: "8-K current report", Source: "SEC EDGAR", PublishedAt: inWin(w, 3 * time.Hour)},
	}}
	feeds := &fakeFeeds{byURL: map[string][]Item{
		"ticker-feed": {
			{Title: "Late wire item", Source: "Reuters", PublishedAt: inWin(w, 2 * time.Hour)},
			{Title: "Early wire item", Source: "Reuters", PublishedAt: inWin(w, time.Hour)},
			{Title: "Generic item", Source: "Aggregator", PublishedAt: inWin(w, time.Minute)},
		},
	}}

	c := NewCorrelator(feeds, filings, resolver, CorrelatorOptions{TickerFeedURL: "https://ticker-feed/%s"}, zerolog.Nop())
	items := c.Correlate(context.Background(), "ABC", w)

	want := []string{"8-K current report", "Early wire item", "Late wire item", "Generic item"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %+v", len(want), items)
	}
	for i, title := range want {
		if items[i].Title != title {
			t.Fatalf("position %d = %q, want %q (priority then ascending publish time)", i, items[i].Title, title)
		}
	}
}

func TestCorrelateWireFeedsRequireMention(t *testing.T) {
	w := newsWindow()
	resolver := NewFilerIndex(map[string]Filer{"TSLA": {CIK: "0001318605", Name: "Tesla, Inc."}})
	feeds := &fakeFeeds{byURL: map[string][]Item{
		"wire-feed": {
			{Title: "Tesla recalls vehicles", Source: "Reuters", PublishedAt: inWin(w, time.Hour)},
			{Title: "TSLA shares jump premarket", Source: "Reuters", PublishedAt: inWin(w, time.Hour)},
			{Title: "Fed holds rates steady", Source: "Reuters", PublishedAt: inWin(w, time.Hour)},
		},
	}}

	c := NewCorrelator(feeds, nil, resolver, CorrelatorOptions{WireFeeds: []string{"https://wire-feed/business"}}, zerolog.Nop())
	items := c.Correlate(context.Background(), "TSLA", w)

	if len(items) != 2 {
		t.Fatalf("only symbol or company mentions should survive, got %+v", items)
	}
	for _, item := range items {
		if item.Title == "Fed holds rates steady" {
			t.Fatal("unrelated wire headline leaked through")
		}
	}
}

func TestCorrelateProviderFailureIsolated(t *testing.T) {
	w := newsWindow()
	resolver := NewFilerIndex(map[string]Filer{"ABC": {CIK: "01", Name: "ABC Corp"}})
	filings := &fakeFilings{err: errors.New("edgar down")}
	feeds := &fakeFeeds{byURL: map[string][]Item{
		"ticker-feed": {{Title: "Still here", Source: "Reuters", PublishedAt: inWin(w, time.Hour)}},
	}}

	c := NewCorrelator(feeds, filings, resolver, CorrelatorOptions{TickerFeedURL: "https://ticker-feed/%s"}, zerolog.Nop())
	items := c.Correlate(context.Background(), "ABC", w)

	if len(items) != 1 || items[0].Title != "Still here" {
		t.Fatalf("a failing filing source must only shrink the result, got %+v", items)
	}
}

func TestMacroHeadlines(t *testing.T) {
	w := newsWindow()
	feeds := &fakeFeeds{byURL: map[string][]Item{
		"wire-feed": {
			{Title: "Markets rally on earnings", PublishedAt: inWin(w, time.Hour)},
			{Title: "markets rally on earnings", PublishedAt: inWin(w, 2 * time.Hour)},
			{Title: "Fed signals rate path", PublishedAt: inWin(w, time.Hour)},
			{Title: "Stale news", PublishedAt: w.Start.Add(-time.Hour)},
		},
	}}

	c := NewCorrelator(feeds, nil, nil, CorrelatorOptions{WireFeeds: []string{"https://wire-feed/business"}}, zerolog.Nop())
	headlines := c.MacroHeadlines(context.Background(), w, 5, []string{"fed"})

	if len(headlines) != 2 {
		t.Fatalf("expected deduped in-window headlines, got %v", headlines)
	}
	if headlines[0] != "Fed signals rate path" {
		t.Fatalf("highlighted headline should be pulled to the front, got %v", headlines)
	}
}

func TestExcerptUsesConfiguredLimits(t *testing.T) {
	c := NewCorrelator(&fakeFeeds{}, nil, nil, CorrelatorOptions{MaxItems: 2, MaxSentences: 2}, zerolog.Nop())
	items := []Item{{Title: "One"}, {Title: "Two"}, {Title: "Three"}}
	got := c.Excerpt(items)
	if got != "One. Two." {
		t.Fatalf("Excerpt = %q, want %q", got, "One. Two.")
	}
}
