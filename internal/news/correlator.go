package news

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"mover-report/internal/market"
)

// CorrelatorOptions parameterise news correlation.
type CorrelatorOptions struct {
	// TickerFeedURL is a format string taking the symbol.
	TickerFeedURL string
	// WireFeeds are general business wires scanned for symbol mentions.
	WireFeeds []string
	// SourcePriority overrides DefaultSourcePriority when set.
	SourcePriority []string
	MaxItems       int
	MaxSentences   int
}

// Correlator gathers candidate news and filing items for a symbol, filters
// them to a window, dedupes, and orders them by source priority. Provider
// failures shrink the result, they never propagate.
type Correlator struct {
	feeds    FeedProvider
	filings  FilingProvider
	resolver FilerResolver
	opts     CorrelatorOptions
	priority []string
	logger   zerolog.Logger
}

// NewCorrelator constructs a correlator. resolver may be nil when no filing
// index could be built; the filing source is then skipped.
func NewCorrelator(feeds FeedProvider, filings FilingProvider, resolver FilerResolver, opts CorrelatorOptions, logger zerolog.Logger) *Correlator {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 3
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = 4
	}
	priority := opts.SourcePriority
	if len(priority) == 0 {
		priority = DefaultSourcePriority
	}
	return &Correlator{
		feeds:    feeds,
		filings:  filings,
		resolver: resolver,
		opts:     opts,
		priority: priority,
		logger:   logger.With().Str("component", "news_correlator").Logger(),
	}
}

// Correlate returns the window-relevant items for a symbol, highest-priority
// sources first, ties broken by ascending publish time.
func (c *Correlator) Correlate(ctx context.Context, symbol string, window market.Window) []Item {
	var candidates []Item

	filer, hasFiler := Filer{}, false
	if c.resolver != nil {
		filer, hasFiler = c.resolver.Lookup(symbol)
	}

	if hasFiler && c.filings != nil {
		filings, err := c.filings.Filings(ctx, filer.CIK)
		if err != nil {
			c.logger.Debug().Err(err).Str("symbol", symbol).Msg("filing fetch failed")
		} else {
			candidates = append(candidates, filings...)
		}
	}

	if c.opts.TickerFeedURL != "" {
		entries, err := c.feeds.Entries(ctx, fmt.Sprintf(c.opts.TickerFeedURL, symbol))
		if err != nil {
			c.logger.Debug().Err(err).Str("symbol", symbol).Msg("ticker feed fetch failed")
		} else {
			candidates = append(candidates, entries...)
		}
	}

	for _, feedURL := range c.opts.WireFeeds {
		entries, err := c.feeds.Entries(ctx, feedURL)
		if err != nil {
			c.logger.Debug().Err(err).Str("feed", feedURL).Msg("wire feed fetch failed")
			continue
		}
		// Wire feeds are not symbol-keyed; keep only entries that mention
		// the symbol or a company-name variant.
		for _, entry := range entries {
			if mentions(entry, symbol, filer.Name) {
				candidates = append(candidates, entry)
			}
		}
	}

	inWindow := candidates[:0:0]
	for _, item := range candidates {
		if window.Contains(item.PublishedAt) {
			inWindow = append(inWindow, item)
		}
	}

	sort.SliceStable(inWindow, func(i, j int) bool {
		pi := sourcePriority(inWindow[i], c.priority)
		pj := sourcePriority(inWindow[j], c.priority)
		if pi != pj {
			return pi < pj
		}
		return inWindow[i].PublishedAt.Before(inWindow[j].PublishedAt)
	})

	return Dedupe(inWindow)
}

// Excerpt renders the human-readable reason line for a set of correlated
// items, bounded by the configured item and sentence limits.
func (c *Correlator) Excerpt(items []Item) string {
	return Summarize(items, c.opts.MaxItems, c.opts.MaxSentences)
}

// MacroHeadlines returns deduped wire headlines published inside the window,
// capped at max. Headlines matching a highlight keyword are moved to the
// front.
func (c *Correlator) MacroHeadlines(ctx context.Context, window market.Window, max int, highlight []string) []string {
	var items []Item
	for _, feedURL := range c.opts.WireFeeds {
		entries, err := c.feeds.Entries(ctx, feedURL)
		if err != nil {
			c.logger.Debug().Err(err).Str("feed", feedURL).Msg("macro feed fetch failed")
			continue
		}
		for _, entry := range entries {
			if window.Contains(entry.PublishedAt) {
				items = append(items, entry)
			}
		}
	}

	items = Dedupe(items)

	headlines := make([]string, 0, len(items))
	for _, item := range items {
		if item.Title != "" {
			headlines = append(headlines, item.Title)
		}
	}

	if len(highlight) > 0 {
		sort.SliceStable(headlines, func(i, j int) bool {
			return highlighted(headlines[i], highlight) && !highlighted(headlines[j], highlight)
		})
	}

	if max > 0 && len(headlines) > max {
		headlines = headlines[:max]
	}
	return headlines
}

func highlighted(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// mentions reports whether the item text refers to the symbol or to a
// company-name variant.
func mentions(item Item, symbol, companyName string) bool {
	text := NormalizeTitle(item.Title + " " + item.Summary)
	if sym := NormalizeTitle(symbol); sym != "" && strings.Contains(text, sym) {
		return true
	}
	for _, variant := range nameVariants(companyName) {
		if strings.Contains(text, variant) {
			return true
		}
	}
	return false
}

// corporate suffixes stripped when deriving name variants.
var nameSuffixes = []string{"inc", "corp", "corporation", "co", "ltd", "plc", "sa", "nv", "ag", "holdings", "group"}

// nameVariants derives normalized match keys from a filer name: the full
// normalized name and the name with trailing corporate suffixes stripped.
func nameVariants(name string) []string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil
	}

	words := strings.FieldsFunc(name, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for len(words) > 1 {
		last := words[len(words)-1]
		stripped := false
		for _, suffix := range nameSuffixes {
			if last == suffix {
				words = words[:len(words)-1]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	if len(words) == 0 {
		return nil
	}

	full := strings.Join(words, "")
	variants := []string{full}
	// A distinctive leading word ("tesla", "nvidia") is a usable variant on
	// its own; short leading words ("us", "am") match too much.
	if len(words) > 1 && len(words[0]) >= 5 {
		variants = append(variants, words[0])
	}
	return variants
}
