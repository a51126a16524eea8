package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"mover-report/internal/market"
	"mover-report/internal/news"
	"mover-report/internal/quotes"
	"mover-report/internal/service"
	"mover-report/internal/universe"
)

// SimulateAlert runs the alert pipeline for a synthetic mover with the given
// previous-close-to-now move, delivering through the configured channels.
func (a *App) SimulateAlert(ctx context.Context, symbol string, pct decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	calc, err := a.newCalculator()
	if err != nil {
		return err
	}

	prevClose := decimal.NewFromInt(100)
	last := prevClose.Add(prevClose.Mul(pct).Div(decimal.NewFromInt(100)))
	prices := &staticPriceSource{prevClose: prevClose, last: last}

	svc := service.New(calc, prices, &silentNewsSource{}, service.Options{
		Workers:    1,
		Deadline:   time.Minute,
		Thresholds: a.thresholdOptions(),
		Source:     "simulated",
	}, a.Logger)

	// A per-ticker threshold beyond the simulated move keeps the mover out
	// of the primary bucket so only the override path can fire.
	blocking := pct.Abs().Add(decimal.NewFromInt(100)).InexactFloat64()
	records := []universe.TickerRecord{{Symbol: symbol, ThresholdPct: &blocking}}

	rep, err := svc.BuildReport(ctx, market.ReportOpenToNow, time.Now().In(loc), records)
	if err != nil {
		return err
	}

	if len(rep.Results) == 0 {
		a.Logger.Info().Str("pct", pct.StringFixed(2)).Msg("simulated move did not cross the override threshold")
		return nil
	}

	a.alertExtremeMovers(ctx, notifier, rep)
	return nil
}

type staticPriceSource struct {
	prevClose decimal.Decimal
	last      decimal.Decimal
}

func (s *staticPriceSource) Fetch(_ context.Context, symbol string, _ market.Window) quotes.Observation {
	prev := s.prevClose
	last := s.last
	return quotes.Observation{Symbol: symbol, PreviousClose: &prev, Last: &last}
}

type silentNewsSource struct{}

func (silentNewsSource) Correlate(context.Context, string, market.Window) []news.Item {
	return nil
}

func (silentNewsSource) Excerpt([]news.Item) string { return "" }

func (silentNewsSource) MacroHeadlines(context.Context, market.Window, int, []string) []string {
	return nil
}

var _ service.PriceSource = (*staticPriceSource)(nil)
var _ service.NewsSource = (*silentNewsSource)(nil)
