package quotes

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Metrics are the percentage-change figures derived from one observation.
// Each metric is present only when both of its defining prices are present
// and the denominator is non-zero.
type Metrics struct {
	OpenToNow      *decimal.Decimal
	PrevCloseToNow *decimal.Decimal
	HighOverOpen   *decimal.Decimal
	LowOverOpen    *decimal.Decimal
}

// Any reports whether at least one metric is present.
func (m Metrics) Any() bool {
	return m.OpenToNow != nil || m.PrevCloseToNow != nil || m.HighOverOpen != nil || m.LowOverOpen != nil
}

// ComputeMetrics derives the movement metrics from an observation. The four
// metrics are independent: a missing open does not block prev-close-to-now.
func ComputeMetrics(obs Observation) Metrics {
	return Metrics{
		OpenToNow:      PctChange(obs.Open, obs.Last),
		PrevCloseToNow: PctChange(obs.PreviousClose, obs.Last),
		HighOverOpen:   PctChange(obs.Open, obs.High),
		LowOverOpen:    PctChange(obs.Open, obs.Low),
	}
}

// PctChange returns (to-from)/from*100, or nil when from is absent or zero or
// to is absent. Absence is never coerced to zero.
func PctChange(from, to *decimal.Decimal) *decimal.Decimal {
	if from == nil || to == nil || from.IsZero() {
		return nil
	}
	v := to.Sub(*from).Div(*from).Mul(hundred)
	return &v
}
