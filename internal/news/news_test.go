package news

import (
	"testing"
	"time"
)

func TestNormalizeTitle(t *testing.T) {
	a := NormalizeTitle("Company X Reports Q3 Earnings")
	b := NormalizeTitle("company x reports q3 earnings!")
	if a != b {
		t.Fatalf("normalized titles should collapse: %q vs %q", a, b)
	}
	if a != "companyxreportsq3earnings" {
		t.Fatalf("unexpected normalization: %q", a)
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	items := []Item{
		{Title: "Company X Reports Q3 Earnings", Source: "Reuters"},
		{Title: "company x reports q3 earnings!", Source: "Some Blog"},
		{Title: "Unrelated headline", Source: "AP"},
	}
	out := Dedupe(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 items after dedup, got %d", len(out))
	}
	if out[0].Source != "Reuters" {
		t.Fatalf("first occurrence should win, got %q", out[0].Source)
	}
}

func TestSummarizeCapsSentences(t *testing.T) {
	items := []Item{
		{Title: "One. Two. Three"},
		{Title: "Four"},
		{Title: "Five"},
		{Title: "Six"},
	}
	got := Summarize(items, 3, 4)
	want := "One. Two. Three. Four."
	if got != want {
		t.Fatalf("Summarize = %q, want %q", got, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil, 3, 4); got != "" {
		t.Fatalf("no items should yield empty excerpt, got %q", got)
	}
	if got := Summarize([]Item{{Title: "   "}}, 3, 4); got != "" {
		t.Fatalf("blank titles should yield empty excerpt, got %q", got)
	}
}

func TestAnalystActions(t *testing.T) {
	now := time.Now()
	items := []Item{
		{Title: "Broker upgrades Company X to Overweight", PublishedAt: now},
		{Title: "BROKER UPGRADES COMPANY X TO OVERWEIGHT!", PublishedAt: now},
		{Title: "Company X opens new factory", PublishedAt: now},
		{Title: "Analyst raises target on Company Y", PublishedAt: now},
	}
	hits := AnalystActions(items)
	if len(hits) != 2 {
		t.Fatalf("expected 2 deduped analyst hits, got %v", hits)
	}
}

func TestSourcePriorityOrdering(t *testing.T) {
	filing := Item{Title: "8-K", Source: "SEC EDGAR"}
	wire := Item{Title: "wire", Source: "Reuters Business"}
	ir := Item{Title: "ir", Link: "https://www.prnewswire.com/release"}
	other := Item{Title: "other", Source: "Random Aggregator"}

	pf := sourcePriority(filing, DefaultSourcePriority)
	pw := sourcePriority(wire, DefaultSourcePriority)
	pi := sourcePriority(ir, DefaultSourcePriority)
	po := sourcePriority(other, DefaultSourcePriority)

	if !(pf < pw && pw < pi && pi < po) {
		t.Fatalf("priority order filing(%d) < wire(%d) < ir(%d) < other(%d) violated", pf, pw, pi, po)
	}
}

func TestNameVariants(t *testing.T) {
	variants := nameVariants("Tesla, Inc.")
	if len(variants) == 0 || variants[0] != "tesla" {
		t.Fatalf("suffix should be stripped: %v", variants)
	}

	variants = nameVariants("Advanced Micro Devices Inc")
	found := false
	for _, v := range variants {
		if v == "advancedmicrodevices" {
			found = true
		}
	}
	if !found {
		t.Fatalf("full stripped name missing from variants: %v", variants)
	}
}
