package universe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoTickers indicates the source yielded no usable records. This is the
// only fatal condition for a report run.
var ErrNoTickers = errors.New("universe: no tickers loaded")

// TickerRecord is one instrument from the universe source. Immutable after
// load.
type TickerRecord struct {
	Symbol string
	// Quantity marks a held position when positive; zero means watchlist.
	Quantity int64
	// ThresholdPct overrides the global movement threshold when set.
	ThresholdPct *float64
	// VolumeMultiplier and DistanceFromExtremePct are auxiliary per-ticker
	// thresholds carried through for renderers that use them.
	VolumeMultiplier       *float64
	DistanceFromExtremePct *float64
}

// IsPosition reports whether the record carries a positive holding.
func (r TickerRecord) IsPosition() bool {
	return r.Quantity > 0
}

// Column synonym lists, matched case-insensitively against the header row.
// The Hungarian names come from the original sheet layout.
var (
	symbolColumns    = []string{"ticker", "symbol"}
	quantityColumns  = []string{"darabszám", "qty", "quantity", "db", "darab", "shares"}
	thresholdColumns = []string{"threshold", "threshold_pct", "küszöb"}
	volumeColumns    = []string{"volume_multiplier", "vol_mult"}
	distanceColumns  = []string{"distance_from_extreme_pct", "distance_pct"}
)

// Options parameterise the loader.
type Options struct {
	Source      string
	SkipSymbols []string
	Timeout     time.Duration
	UserAgent   string
}

// Loader reads ticker records from a CSV file or URL.
type Loader struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
	skip   map[string]struct{}
}

// NewLoader constructs a universe loader.
func NewLoader(opts Options, logger zerolog.Logger) *Loader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	skip := make(map[string]struct{}, len(opts.SkipSymbols))
	for _, s := range opts.SkipSymbols {
		skip[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return &Loader{
		opts:   opts,
		logger: logger.With().Str("component", "universe").Logger(),
		client: &http.Client{Timeout: timeout},
		skip:   skip,
	}
}

// Load reads and normalises the ticker universe. Malformed rows are skipped;
// only an empty result is an error.
func (l *Loader) Load(ctx context.Context) ([]TickerRecord, error) {
	if l.opts.Source == "" {
		return nil, errors.New("universe source not configured")
	}

	body, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	records, err := l.parse(body)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoTickers
	}
	return records, nil
}

func (l *Loader) open(ctx context.Context) (io.ReadCloser, error) {
	src := l.opts.Source
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("build universe request: %w", err)
		}
		if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch universe: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch universe: unexpected status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	return file, nil
}

// columnIndex resolves header columns against the synonym lists once, so the
// per-row code only deals in canonical fields.
type columnIndex struct {
	symbol    int
	quantity  int
	threshold int
	volume    int
	distance  int
}

func resolveColumns(header []string) (columnIndex, error) {
	idx := columnIndex{symbol: -1, quantity: -1, threshold: -1, volume: -1, distance: -1}
	find := func(synonyms []string) int {
		for i, col := range header {
			name := strings.ToLower(strings.TrimSpace(col))
			for _, syn := range synonyms {
				if name == syn {
					return i
				}
			}
		}
		return -1
	}
	idx.symbol = find(symbolColumns)
	if idx.symbol < 0 {
		return idx, fmt.Errorf("universe header missing a ticker column (have: %s)", strings.Join(header, ", "))
	}
	idx.quantity = find(quantityColumns)
	idx.threshold = find(thresholdColumns)
	idx.volume = find(volumeColumns)
	idx.distance = find(distanceColumns)
	return idx, nil
}

func (l *Loader) parse(r io.Reader) ([]TickerRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read universe header: %w", err)
	}
	idx, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var records []TickerRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			l.logger.Warn().Err(err).Msg("skipping malformed universe row")
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(field(row, idx.symbol)))
		if symbol == "" {
			continue
		}
		if _, skipped := l.skip[symbol]; skipped {
			l.logger.Debug().Str("symbol", symbol).Msg("symbol on skip list")
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		rec := TickerRecord{Symbol: symbol}
		if qty, ok := parseInt(field(row, idx.quantity)); ok {
			rec.Quantity = qty
		}
		rec.ThresholdPct = parseFloatPtr(field(row, idx.threshold))
		rec.VolumeMultiplier = parseFloatPtr(field(row, idx.volume))
		rec.DistanceFromExtremePct = parseFloatPtr(field(row, idx.distance))

		records = append(records, rec)
	}

	return records, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Sheets export whole quantities as "100.0"; take the integer part.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
