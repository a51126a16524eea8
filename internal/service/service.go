package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mover-report/internal/classify"
	"mover-report/internal/market"
	"mover-report/internal/news"
	"mover-report/internal/quotes"
	"mover-report/internal/report"
	"mover-report/internal/universe"
)

// PriceSource resolves a price observation for one symbol over one window.
type PriceSource interface {
	Fetch(ctx context.Context, symbol string, window market.Window) quotes.Observation
}

// NewsSource correlates news for one symbol and supplies macro headlines.
type NewsSource interface {
	Correlate(ctx context.Context, symbol string, window market.Window) []news.Item
	Excerpt(items []news.Item) string
	MacroHeadlines(ctx context.Context, window market.Window, max int, highlight []string) []string
}

// Options tune a report run.
type Options struct {
	Workers           int
	Deadline          time.Duration
	Thresholds        classify.Options
	MacroMaxHeadlines int
	HighlightKeywords []string
	Source            string
}

// Service runs the per-ticker fetch, metric, classify, and correlate
// pipeline and assembles the report. Each run is stateless given its inputs.
type Service struct {
	calc   *market.Calculator
	prices PriceSource
	newsrc NewsSource
	opts   Options
	logger zerolog.Logger
}

// New constructs the report service.
func New(calc *market.Calculator, prices PriceSource, newsrc NewsSource, opts Options, logger zerolog.Logger) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 4 * time.Minute
	}
	if opts.MacroMaxHeadlines <= 0 {
		opts.MacroMaxHeadlines = 5
	}
	return &Service{
		calc:   calc,
		prices: prices,
		newsrc: newsrc,
		opts:   opts,
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// tickerOutcome is the result of one per-ticker unit of work.
type tickerOutcome struct {
	result        report.TickerResult
	included      bool
	missing       bool
	announcements []string
}

// BuildReport evaluates the universe for the given kind at the given
// instant. now must carry the reference timezone.
func (s *Service) BuildReport(ctx context.Context, kind market.ReportKind, now time.Time, records []universe.TickerRecord) (*report.Report, error) {
	if len(records) == 0 {
		return nil, universe.ErrNoTickers
	}

	windows, err := s.calc.ComputeWindows(kind, now)
	if err != nil {
		return nil, err
	}
	ordered := orderedWindows(kind, windows)

	span, err := s.calc.ReportSpan(kind, now)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.Deadline)
	defer cancel()

	outcomes := make([]tickerOutcome, len(records))

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.opts.Workers)
	for i, rec := range records {
		g.Go(func() error {
			outcomes[i] = s.processTicker(gctx, rec, ordered)
			return nil
		})
	}
	// Worker funcs never return errors; Wait only surfaces ctx teardown.
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	rep := &report.Report{
		Kind:         kind,
		GeneratedAt:  report.Stamp(now),
		Source:       s.opts.Source,
		TickersTotal: len(records),
	}

	for _, out := range outcomes {
		if out.missing {
			rep.Missing = append(rep.Missing, out.result.Symbol)
			continue
		}
		if out.included {
			rep.Results = append(rep.Results, out.result)
			rep.Announcements = appendUnique(rep.Announcements, out.announcements)
		}
	}

	report.SortResults(rep.Results)
	rep.TickersReported = len(rep.Results)
	rep.Coverage = report.Coverage(rep.Missing)
	rep.Macro = s.newsrc.MacroHeadlines(runCtx, span, s.opts.MacroMaxHeadlines, s.opts.HighlightKeywords)

	s.logger.Info().
		Str("kind", string(kind)).
		Int("total", rep.TickersTotal).
		Int("reported", rep.TickersReported).
		Int("missing", len(rep.Missing)).
		Msg("report built")

	return rep, nil
}

// processTicker runs the full pipeline for one record. It never fails; a
// ticker with no data in any window is marked missing.
func (s *Service) processTicker(ctx context.Context, rec universe.TickerRecord, windows []market.Window) tickerOutcome {
	out := tickerOutcome{result: report.TickerResult{
		Symbol:     rec.Symbol,
		IsPosition: rec.IsPosition(),
	}}

	if ctx.Err() != nil {
		// Deadline hit before this ticker started; abandoned, not blocked on.
		out.missing = true
		return out
	}

	merged := classify.Result{Symbol: rec.Symbol, IsPosition: rec.IsPosition()}
	windowMetrics := make([]quotes.Metrics, len(windows))
	unavailable := 0

	for i, w := range windows {
		obs := s.prices.Fetch(ctx, rec.Symbol, w)
		if obs.Unavailable() {
			unavailable++
		}
		windowMetrics[i] = quotes.ComputeMetrics(obs)

		res := classify.Classify(rec, windowMetrics[i], s.opts.Thresholds)
		merged = mergeClassification(merged, res, w.Label, len(windows) > 1)
	}

	if unavailable == len(windows) {
		out.missing = true
		return out
	}

	out.result.Qualifies = merged.Qualifies
	out.result.Override = merged.Override
	out.result.ReasonMetrics = merged.ReasonMetrics
	out.included = merged.Included()
	if !out.included {
		return out
	}

	for i, w := range windows {
		wr := report.WindowResult{Label: w.Label, Metrics: windowMetrics[i]}
		items := s.newsrc.Correlate(ctx, rec.Symbol, w)
		if len(items) > 0 {
			wr.News = items
			if wr.HeadlinePct() != nil {
				wr.Reason = s.newsrc.Excerpt(items)
			}
			for _, hit := range news.AnalystActions(items) {
				out.announcements = append(out.announcements, fmt.Sprintf("%s — %s", rec.Symbol, hit))
			}
		}
		out.result.Windows = append(out.result.Windows, wr)
	}

	if hasExtendedWindows(windows) {
		out.result.EffectOpen = report.EffectAtOpen(maxHeadlineMove(out.result.Windows))
	}

	return out
}

// mergeClassification folds a per-window classification into the merged
// ticker outcome. Override never coexists with primary qualification.
func mergeClassification(merged, res classify.Result, label market.Label, prefix bool) classify.Result {
	for _, reason := range res.ReasonMetrics {
		if prefix {
			reason = string(label) + ":" + reason
		}
		merged.ReasonMetrics = append(merged.ReasonMetrics, reason)
	}
	merged.Qualifies = merged.Qualifies || res.Qualifies
	merged.Override = (merged.Override || res.Override) && !merged.Qualifies
	return merged
}

// orderedWindows returns the report windows in presentation order.
func orderedWindows(kind market.ReportKind, windows map[market.Label]market.Window) []market.Window {
	var labels []market.Label
	switch kind {
	case market.ReportAfterHours:
		labels = []market.Label{market.LabelAfterHours, market.LabelPremarket}
	case market.ReportPrevSession:
		labels = []market.Label{market.LabelOpenClose}
	case market.ReportOpenToNow:
		labels = []market.Label{market.LabelOpenNow}
	}
	out := make([]market.Window, 0, len(labels))
	for _, label := range labels {
		if w, ok := windows[label]; ok {
			out = append(out, w)
		}
	}
	return out
}

func hasExtendedWindows(windows []market.Window) bool {
	for _, w := range windows {
		if w.Label == market.LabelAfterHours || w.Label == market.LabelPremarket {
			return true
		}
	}
	return false
}

func maxHeadlineMove(windows []report.WindowResult) *decimal.Decimal {
	var max *decimal.Decimal
	for _, w := range windows {
		pct := w.HeadlinePct()
		if pct == nil {
			continue
		}
		abs := pct.Abs()
		if max == nil || abs.GreaterThan(*max) {
			max = &abs
		}
	}
	return max
}

func appendUnique(existing []string, extra []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[news.NormalizeTitle(s)] = struct{}{}
	}
	for _, s := range extra {
		key := news.NormalizeTitle(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, s)
	}
	return existing
}
