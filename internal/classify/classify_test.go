package classify

import (
	"testing"

	"github.com/shopspring/decimal"

	"mover-report/internal/quotes"
	"mover-report/internal/universe"
)

func opts(threshold, override float64) Options {
	return Options{
		DefaultThresholdPct:  decimal.NewFromFloat(threshold),
		OverrideThresholdPct: decimal.NewFromFloat(override),
	}
}

func metric(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestPositionAlwaysQualifies(t *testing.T) {
	rec := universe.TickerRecord{Symbol: "ABC", Quantity: 100}

	res := Classify(rec, quotes.Metrics{}, opts(3.0, 8.0))
	if !res.Qualifies {
		t.Fatal("a position ticker with all metrics absent must still qualify")
	}
	if !res.IsPosition {
		t.Fatal("IsPosition should be set")
	}
	if len(res.ReasonMetrics) != 0 {
		t.Fatalf("no metric crossed, reasons should be empty: %v", res.ReasonMetrics)
	}
}

func TestWatchlistThreshold(t *testing.T) {
	rec := universe.TickerRecord{Symbol: "XYZ"}
	m := quotes.Metrics{OpenToNow: metric(2.5)}

	if res := Classify(rec, m, opts(3.0, 0)); res.Qualifies {
		t.Fatal("2.5% against a 3.0 threshold must not qualify")
	}

	res := Classify(rec, m, opts(2.0, 0))
	if !res.Qualifies {
		t.Fatal("2.5% against a 2.0 threshold must qualify")
	}
	if len(res.ReasonMetrics) != 1 || res.ReasonMetrics[0] != MetricOpenToNow {
		t.Fatalf("reason metrics = %v", res.ReasonMetrics)
	}
}

func TestPerTickerThresholdOverride(t *testing.T) {
	custom := 2.0
	rec := universe.TickerRecord{Symbol: "XYZ", ThresholdPct: &custom}
	m := quotes.Metrics{OpenToNow: metric(2.5)}

	res := Classify(rec, m, opts(3.0, 0))
	if !res.Qualifies {
		t.Fatal("per-ticker override of 2.0 should beat the global 3.0")
	}
	if !res.ThresholdPct.Equal(decimal.NewFromFloat(2.0)) {
		t.Fatalf("applied threshold = %v", res.ThresholdPct)
	}
}

func TestNegativeMoveQualifiesByMagnitude(t *testing.T) {
	rec := universe.TickerRecord{Symbol: "XYZ"}
	m := quotes.Metrics{OpenToNow: metric(-4.2)}

	if res := Classify(rec, m, opts(3.0, 0)); !res.Qualifies {
		t.Fatal("movement is judged by absolute value")
	}
}

func TestAbsentMetricsNeverQualify(t *testing.T) {
	rec := universe.TickerRecord{Symbol: "XYZ"}

	res := Classify(rec, quotes.Metrics{}, opts(3.0, 8.0))
	if res.Qualifies || res.Override {
		t.Fatal("absence is not zero; a watchlist ticker with no metrics stays out")
	}
}

func TestOverrideBucket(t *testing.T) {
	rec := universe.TickerRecord{Symbol: "XYZ"}
	m := quotes.Metrics{
		OpenToNow:      metric(1.0),
		PrevCloseToNow: metric(9.0),
	}

	// Primary threshold high enough that nothing qualifies primarily.
	res := Classify(rec, m, opts(10.0, 8.0))
	if res.Qualifies {
		t.Fatal("nothing crossed the primary threshold")
	}
	if !res.Override {
		t.Fatal("9.0 against an 8.0 override threshold should land in the override bucket")
	}
	if !res.Included() {
		t.Fatal("override results are included in the report")
	}
}

func TestOverrideNotDuplicatedWhenPrimaryQualifies(t *testing.T) {
	rec := universe.TickerRecord{Symbol: "XYZ"}
	m := quotes.Metrics{PrevCloseToNow: metric(9.0)}

	// 9.0 crosses both the 3.0 primary and the 8.0 override thresholds.
	res := Classify(rec, m, opts(3.0, 8.0))
	if !res.Qualifies {
		t.Fatal("should qualify under the primary rule")
	}
	if res.Override {
		t.Fatal("a primary-qualified ticker must not also sit in the override bucket")
	}
}
