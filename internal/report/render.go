package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mover-report/internal/market"
)

var kindTitles = map[market.ReportKind]string{
	market.ReportAfterHours:  "Movement Report – After-hours & Premarket",
	market.ReportPrevSession: "Movement Report – Previous Session (Open→Close)",
	market.ReportOpenToNow:   "Movement Report – Today (Open→Now)",
}

var windowTitles = map[market.Label]string{
	market.LabelAfterHours: "After-hours",
	market.LabelPremarket:  "Premarket",
	market.LabelOpenClose:  "Open→Close",
	market.LabelOpenNow:    "Open→Now",
}

// FormatPct renders a metric as a signed two-decimal percentage, or "n/a"
// when absent.
func FormatPct(p *decimal.Decimal) string {
	if p == nil {
		return "n/a"
	}
	sign := ""
	if p.Sign() >= 0 {
		sign = "+"
	}
	return sign + p.StringFixed(2) + "%"
}

// RenderMarkdown renders the report as Markdown.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	title := kindTitles[r.Kind]
	if title == "" {
		title = "Movement Report"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	fmt.Fprintf(&b, "*Run:* %s\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if r.Source != "" {
		fmt.Fprintf(&b, "*Universe:* %s\n", r.Source)
	}
	fmt.Fprintf(&b, "**Coverage:** %s\n\n", r.Coverage)

	b.WriteString("## Politics / Fed / Macro\n")
	if len(r.Macro) == 0 {
		b.WriteString("- No notable macro, Fed, or political headlines in the evaluated window.\n")
	}
	for _, headline := range r.Macro {
		fmt.Fprintf(&b, "- %s\n", headline)
	}
	b.WriteString("\n")

	var positions, watchlist, overrides []TickerResult
	for _, res := range r.Results {
		switch {
		case res.Override:
			overrides = append(overrides, res)
		case res.IsPosition:
			positions = append(positions, res)
		default:
			watchlist = append(watchlist, res)
		}
	}

	writeSection(&b, "Position tickers", positions)
	writeSection(&b, "Watchlist movers", watchlist)
	writeSection(&b, "Extreme movers (override threshold)", overrides)

	b.WriteString("## Announcements & rating changes\n")
	if len(r.Announcements) == 0 {
		b.WriteString("- No relevant announcements or analyst moves in the evaluated window.\n")
	}
	for _, a := range r.Announcements {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	b.WriteString("\n")

	b.WriteString("## Upcoming catalysts (next few days)\n")
	b.WriteString("- n/a (fill in manually)\n")

	return b.String()
}

func writeSection(b *strings.Builder, title string, results []TickerResult) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n", title)
	for _, res := range results {
		fmt.Fprintf(b, "**%s**\n", res.Symbol)
		for _, w := range res.Windows {
			name := windowTitles[w.Label]
			if name == "" {
				name = string(w.Label)
			}
			pct := w.HeadlinePct()
			if pct == nil {
				fmt.Fprintf(b, "- %s: n/a – no data in the evaluated range.\n", name)
				continue
			}
			line := fmt.Sprintf("- %s: %s", name, FormatPct(pct))
			if reason := strings.TrimSpace(w.Reason); reason != "" {
				line += " – " + reason
			}
			b.WriteString(line + "\n")
		}
		if res.EffectOpen != "" {
			fmt.Fprintf(b, "- Expected effect at the open: %s\n", res.EffectOpen)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// Writer persists rendered reports to the output directory.
type Writer struct {
	Dir          string
	MarkdownFile string
	JSONFile     string
}

// Write renders and stores both report artifacts, returning the paths
// written.
func (w Writer) Write(r *Report) (mdPath, jsonPath string, err error) {
	dir := w.Dir
	if dir == "" {
		dir = "out"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	mdName := w.MarkdownFile
	if mdName == "" {
		mdName = "report_summary.md"
	}
	jsonName := w.JSONFile
	if jsonName == "" {
		jsonName = "report.json"
	}

	mdPath = filepath.Join(dir, mdName)
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return "", "", fmt.Errorf("write markdown report: %w", err)
	}

	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath = filepath.Join(dir, jsonName)
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return "", "", fmt.Errorf("write json report: %w", err)
	}

	return mdPath, jsonPath, nil
}

// Stamp returns a run timestamp normalised to UTC seconds, so repeated runs
// in the same second compare equal in tests.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
