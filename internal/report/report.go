package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mover-report/internal/market"
	"mover-report/internal/news"
	"mover-report/internal/quotes"
)

// WindowResult carries the metrics and correlated news for one evaluation
// window of one ticker.
type WindowResult struct {
	Label   market.Label   `json:"label"`
	Metrics quotes.Metrics `json:"metrics"`
	Reason  string         `json:"reason,omitempty"`
	News    []news.Item    `json:"news,omitempty"`
}

// HeadlinePct is the window's leading metric: previous-close movement for
// extended-hours windows, open movement for session windows.
func (w WindowResult) HeadlinePct() *decimal.Decimal {
	switch w.Label {
	case market.LabelAfterHours, market.LabelPremarket:
		return w.Metrics.PrevCloseToNow
	default:
		return w.Metrics.OpenToNow
	}
}

// TickerResult is the per-ticker outcome handed to renderers.
type TickerResult struct {
	Symbol        string         `json:"ticker"`
	IsPosition    bool           `json:"is_position"`
	Qualifies     bool           `json:"qualifies"`
	Override      bool           `json:"override,omitempty"`
	ReasonMetrics []string       `json:"reason_metrics,omitempty"`
	Windows       []WindowResult `json:"windows"`
	EffectOpen    string         `json:"effect_open,omitempty"`
}

// Report is the complete outcome of one invocation.
type Report struct {
	Kind            market.ReportKind `json:"report"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Source          string            `json:"source,omitempty"`
	Coverage        string            `json:"coverage"`
	TickersTotal    int               `json:"tickers_total"`
	TickersReported int               `json:"tickers_reported"`
	Results         []TickerResult    `json:"items"`
	Missing         []string          `json:"missing,omitempty"`
	Macro           []string          `json:"macro,omitempty"`
	Announcements   []string          `json:"announcements,omitempty"`
}

// CoverageComplete is the coverage value when every ticker produced data.
const CoverageComplete = "complete"

// Coverage renders the coverage status for a missing-symbol list.
func Coverage(missing []string) string {
	if len(missing) == 0 {
		return CoverageComplete
	}
	sorted := append([]string(nil), missing...)
	sort.Strings(sorted)
	return "partial: " + strings.Join(sorted, ", ")
}

// SortResults orders results for output: position tickers before watchlist,
// then alphabetical. Fetch completion order carries no meaning.
func SortResults(results []TickerResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].IsPosition != results[j].IsPosition {
			return results[i].IsPosition
		}
		return results[i].Symbol < results[j].Symbol
	})
}

// EffectAtOpen phrases the expected impact at the next session open from the
// largest extended-hours move.
func EffectAtOpen(maxAbsPct *decimal.Decimal) string {
	if maxAbsPct == nil {
		return "No meaningful effect at the open expected."
	}
	switch {
	case maxAbsPct.GreaterThanOrEqual(decimal.NewFromInt(3)):
		return "Stronger move expected after the open."
	case maxAbsPct.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return "Moderate effect expected after the open."
	default:
		return "No meaningful effect at the open expected."
	}
}
