package quotes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is a bar granularity accepted by the quote provider.
type Interval string

const (
	IntervalMinute     Interval = "1m"
	IntervalFiveMinute Interval = "5m"
	IntervalDay        Interval = "1d"
)

// Bar is a single OHLC observation.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
}

// Snapshot is a single current-quote observation. Absent fields are nil.
type Snapshot struct {
	Open          *decimal.Decimal
	Last          *decimal.Decimal
	PreviousClose *decimal.Decimal
}

// BarProvider retrieves historical price bars. Unknown symbols yield an empty
// slice, not an error.
type BarProvider interface {
	IntradayBars(ctx context.Context, symbol string, interval Interval, start, end time.Time, includeExtended bool) ([]Bar, error)
	DailyBars(ctx context.Context, symbol string, days int) ([]Bar, error)
}

// SnapshotProvider retrieves a current quote.
type SnapshotProvider interface {
	Quote(ctx context.Context, symbol string) (Snapshot, error)
}
