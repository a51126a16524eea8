package quotes

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mover-report/internal/market"
)

// Observation holds the prices resolved for one symbol over one window. Each
// field is independently optional: nil means unavailable, never zero.
type Observation struct {
	Symbol        string
	Open          *decimal.Decimal
	Last          *decimal.Decimal
	High          *decimal.Decimal
	Low           *decimal.Decimal
	PreviousClose *decimal.Decimal
	// BarSource records which tier supplied the window bars, for diagnostics.
	BarSource string
}

// Unavailable reports whether the fallback chain was exhausted without any
// usable in-window price.
func (o Observation) Unavailable() bool {
	return o.Open == nil && o.Last == nil
}

// FetcherOptions tune the fallback chain.
type FetcherOptions struct {
	// OpenTolerance bounds how far after the window start the opening bar may
	// sit and still count as the open. Beyond it, open stays absent.
	OpenTolerance time.Duration
	RetryBackoff  time.Duration
	PrevCloseDays int
}

// Fetcher resolves price observations through a tiered fallback chain:
// minute bars, five-minute bars, snapshot quote, daily previous close. Later
// tiers only fill fields still missing; they never overwrite earlier values.
type Fetcher struct {
	bars   BarProvider
	snaps  SnapshotProvider
	opts   FetcherOptions
	logger zerolog.Logger
}

// NewFetcher constructs a price fetcher.
func NewFetcher(bars BarProvider, snaps SnapshotProvider, opts FetcherOptions, logger zerolog.Logger) *Fetcher {
	if opts.OpenTolerance <= 0 {
		opts.OpenTolerance = 5 * time.Minute
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.PrevCloseDays <= 0 {
		opts.PrevCloseDays = 7
	}
	return &Fetcher{
		bars:   bars,
		snaps:  snaps,
		opts:   opts,
		logger: logger.With().Str("component", "price_fetcher").Logger(),
	}
}

// Fetch resolves an observation for the symbol over the window. Provider
// failures are absorbed into absent fields; Fetch never returns an error.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, window market.Window) Observation {
	obs := Observation{Symbol: symbol}

	bars := f.windowBars(ctx, symbol, IntervalMinute, window)
	if len(bars) == 0 {
		bars = f.windowBars(ctx, symbol, IntervalFiveMinute, window)
		if len(bars) > 0 {
			obs.BarSource = string(IntervalFiveMinute)
		}
	} else {
		obs.BarSource = string(IntervalMinute)
	}
	if len(bars) > 0 {
		f.applyBars(&obs, bars, window)
	}

	if obs.Open == nil || obs.Last == nil || obs.PreviousClose == nil {
		f.applySnapshot(ctx, &obs, symbol)
	}

	if obs.PreviousClose == nil {
		f.applyDailyClose(ctx, &obs, symbol)
	}

	if obs.Unavailable() {
		f.logger.Warn().Str("symbol", symbol).Msg("all price tiers exhausted")
	}
	return obs
}

// windowBars fetches bars once with a single retry on transient failure, and
// filters them to the window.
func (f *Fetcher) windowBars(ctx context.Context, symbol string, interval Interval, window market.Window) []Bar {
	// Pad the query so the provider's bar alignment cannot shave the edges.
	start := window.Start.Add(-2 * time.Minute)
	end := window.End.Add(2 * time.Minute)

	bars, err := f.bars.IntradayBars(ctx, symbol, interval, start, end, true)
	if err != nil {
		f.logger.Debug().Err(err).Str("symbol", symbol).Str("interval", string(interval)).Msg("bar fetch failed, retrying")
		if !f.backoff(ctx) {
			return nil
		}
		bars, err = f.bars.IntradayBars(ctx, symbol, interval, start, end, true)
		if err != nil {
			f.logger.Debug().Err(err).Str("symbol", symbol).Str("interval", string(interval)).Msg("bar fetch retry failed")
			return nil
		}
	}

	inWindow := bars[:0:0]
	for _, bar := range bars {
		if window.Contains(bar.Timestamp) {
			inWindow = append(inWindow, bar)
		}
	}
	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Timestamp.Before(inWindow[j].Timestamp) })
	return inWindow
}

// applyBars fills open, last, high, and low from sorted in-window bars.
func (f *Fetcher) applyBars(obs *Observation, bars []Bar, window market.Window) {
	first := bars[0]
	if obs.Open == nil && !first.Timestamp.After(window.Start.Add(f.opts.OpenTolerance)) {
		open := first.Open
		obs.Open = &open
	}

	if obs.Last == nil {
		last := bars[len(bars)-1].Close
		obs.Last = &last
	}

	high := bars[0].High
	low := bars[0].Low
	for _, bar := range bars[1:] {
		if bar.High.GreaterThan(high) {
			high = bar.High
		}
		if bar.Low.LessThan(low) {
			low = bar.Low
		}
	}
	if obs.High == nil {
		obs.High = &high
	}
	if obs.Low == nil {
		obs.Low = &low
	}
}

func (f *Fetcher) applySnapshot(ctx context.Context, obs *Observation, symbol string) {
	snap, err := f.snaps.Quote(ctx, symbol)
	if err != nil {
		if !f.backoff(ctx) {
			return
		}
		snap, err = f.snaps.Quote(ctx, symbol)
		if err != nil {
			f.logger.Debug().Err(err).Str("symbol", symbol).Msg("snapshot fetch failed")
			return
		}
	}

	if obs.Open == nil {
		obs.Open = snap.Open
	}
	if obs.Last == nil {
		obs.Last = snap.Last
	}
	if obs.PreviousClose == nil {
		obs.PreviousClose = snap.PreviousClose
	}
}

func (f *Fetcher) applyDailyClose(ctx context.Context, obs *Observation, symbol string) {
	bars, err := f.bars.DailyBars(ctx, symbol, f.opts.PrevCloseDays)
	if err != nil {
		if !f.backoff(ctx) {
			return
		}
		bars, err = f.bars.DailyBars(ctx, symbol, f.opts.PrevCloseDays)
		if err != nil {
			f.logger.Debug().Err(err).Str("symbol", symbol).Msg("daily close fetch failed")
			return
		}
	}
	if len(bars) == 0 {
		return
	}
	prev := bars[len(bars)-1].Close
	obs.PreviousClose = &prev
}

func (f *Fetcher) backoff(ctx context.Context) bool {
	timer := time.NewTimer(f.opts.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
