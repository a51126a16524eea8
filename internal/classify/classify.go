package classify

import (
	"github.com/shopspring/decimal"

	"mover-report/internal/quotes"
	"mover-report/internal/universe"
)

// Metric names reported in ReasonMetrics.
const (
	MetricOpenToNow      = "open_to_now"
	MetricPrevCloseToNow = "prev_close_to_now"
	MetricHighOverOpen   = "high_over_open"
	MetricLowOverOpen    = "low_over_open"
)

// Options fix the global thresholds. Per-ticker overrides from the universe
// record take precedence over DefaultThresholdPct.
type Options struct {
	DefaultThresholdPct  decimal.Decimal
	OverrideThresholdPct decimal.Decimal
}

// Result is the classification outcome for one ticker.
type Result struct {
	Symbol     string
	IsPosition bool
	// Qualifies marks inclusion under the primary rule: positions always,
	// watchlist tickers when a metric crosses the threshold.
	Qualifies bool
	// Override marks the extreme-move bucket: the previous-close metric
	// crossed the override threshold on a ticker that did not already
	// qualify. Never set together with Qualifies.
	Override bool
	// ReasonMetrics names the metrics that crossed the primary threshold.
	ReasonMetrics []string
	// ThresholdPct is the primary threshold that applied to this ticker.
	ThresholdPct decimal.Decimal
}

// Included reports whether the ticker appears in the report at all.
func (r Result) Included() bool {
	return r.Qualifies || r.Override
}

// Classify decides inclusion and bucket for one ticker. Absent metrics never
// count as a qualifying condition.
func Classify(rec universe.TickerRecord, m quotes.Metrics, opts Options) Result {
	threshold := opts.DefaultThresholdPct
	if rec.ThresholdPct != nil {
		threshold = decimal.NewFromFloat(*rec.ThresholdPct)
	}

	res := Result{
		Symbol:       rec.Symbol,
		IsPosition:   rec.IsPosition(),
		ThresholdPct: threshold,
	}

	for _, candidate := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{MetricOpenToNow, m.OpenToNow},
		{MetricPrevCloseToNow, m.PrevCloseToNow},
		{MetricHighOverOpen, m.HighOverOpen},
		{MetricLowOverOpen, m.LowOverOpen},
	} {
		if crosses(candidate.value, threshold) {
			res.ReasonMetrics = append(res.ReasonMetrics, candidate.name)
		}
	}

	// Position tickers are always reported, whatever the metrics say.
	res.Qualifies = res.IsPosition || len(res.ReasonMetrics) > 0

	if !res.Qualifies && !opts.OverrideThresholdPct.IsZero() && crosses(m.PrevCloseToNow, opts.OverrideThresholdPct) {
		res.Override = true
	}

	return res
}

func crosses(value *decimal.Decimal, threshold decimal.Decimal) bool {
	if value == nil || threshold.IsZero() {
		return false
	}
	return value.Abs().GreaterThanOrEqual(threshold)
}
