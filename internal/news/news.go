package news

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Item is one news or filing entry. Identity for dedup purposes is the
// normalized title, regardless of source.
type Item struct {
	Title       string
	Summary     string
	Link        string
	Source      string
	PublishedAt time.Time
}

// FeedProvider retrieves entries from a syndication feed. Malformed feeds
// yield an empty result.
type FeedProvider interface {
	Entries(ctx context.Context, feedURL string) ([]Item, error)
}

// Filer identifies a regulatory filer resolved from a ticker symbol.
type Filer struct {
	CIK  string
	Name string
}

// FilerResolver looks up a filer for a symbol. The backing table is built
// once per invocation and read-only afterwards.
type FilerResolver interface {
	Lookup(symbol string) (Filer, bool)
}

// FilingProvider retrieves recent filing entries for a filer.
type FilingProvider interface {
	Filings(ctx context.Context, cik string) ([]Item, error)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTitle lowercases and strips non-alphanumerics; two items with the
// same normalized title are the same item.
func NormalizeTitle(title string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(title), "")
}

// DefaultSourcePriority orders sources from regulatory filings through major
// wires down to investor-relations feeds. Anything unlisted ranks last.
var DefaultSourcePriority = []string{
	"sec edgar",
	"sec.gov",
	"reuters",
	"apnews",
	"associated press",
	"bloomberg",
	"businesswire",
	"prnewswire",
	"globenewswire",
	"investor relations",
	"ir.",
}

const unrankedPriority = 999

func sourcePriority(item Item, priority []string) int {
	haystack := strings.ToLower(item.Source + " " + item.Link)
	for i, key := range priority {
		if strings.Contains(haystack, key) {
			return i
		}
	}
	return unrankedPriority
}

// Dedupe collapses items sharing a normalized title, keeping the first
// occurrence of the incoming order. Callers sort by priority beforehand so
// the higher-priority source wins.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, item := range items {
		key := NormalizeTitle(item.Title)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Summarize joins the top item titles into an excerpt of at most
// maxSentences, split naively on period characters.
func Summarize(items []Item, maxItems, maxSentences int) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	titles := make([]string, 0, len(items))
	for _, item := range items {
		if t := strings.TrimSpace(item.Title); t != "" {
			titles = append(titles, t)
		}
	}
	text := strings.TrimSpace(strings.Join(titles, ". "))
	if text == "" {
		return ""
	}
	if !strings.HasSuffix(text, ".") {
		text += "."
	}

	var sentences []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	if len(sentences) == 0 {
		return ""
	}
	return strings.Join(sentences, ". ") + "."
}

var analystPattern = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`\b(upgrade[sd]?|downgrade[sd]?|initiates? coverage)\b`,
	`\b(price target|pt)\b`,
	`\b(overweight|equal[- ]weight|underweight|buy|hold|sell|outperform|market perform|neutral)\b`,
	`\braise[sd]? target\b|\blower[sd]? target\b`,
}, "|"))

// AnalystActions extracts titles that look like analyst moves (upgrades,
// downgrades, price-target changes), deduped by normalized title.
func AnalystActions(items []Item) []string {
	var hits []Item
	for _, item := range items {
		if analystPattern.MatchString(item.Title) {
			hits = append(hits, item)
		}
	}
	hits = Dedupe(hits)
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Title)
	}
	return out
}
