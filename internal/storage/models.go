package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ReportRun represents one persisted report invocation.
type ReportRun struct {
	ID              int64
	Kind            string
	GeneratedAt     time.Time
	Coverage        string
	TickersTotal    int
	TickersReported int
	Missing         []string
	Payload         json.RawMessage
	CreatedAt       time.Time
}

// MoverRow captures one reported ticker inside a run, flattened to its
// headline window for querying and charting.
type MoverRow struct {
	ID          int64
	RunID       int64
	Symbol      string
	IsPosition  bool
	Qualifies   bool
	Override    bool
	WindowLabel string
	PctChange   *decimal.Decimal
	Reason      *string
	CreatedAt   time.Time
}
