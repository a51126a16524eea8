package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	chartPath = "/v8/finance/chart/"
	quotePath = "/v7/finance/quote"
)

// YahooOptions parameterise the Yahoo-style quote client.
type YahooOptions struct {
	BaseURL       string
	Timeout       time.Duration
	UserAgent     string
	RatePerSecond float64
	RateBurst     int
}

// Yahoo fetches bars and snapshot quotes from the Yahoo Finance chart and
// quote endpoints. A shared limiter keeps concurrent per-ticker work inside
// the provider's rate budget.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewYahoo constructs a quote client.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	rps := opts.RatePerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "quote_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// IntradayBars returns bars of the given interval between start and end.
func (y *Yahoo) IntradayBars(ctx context.Context, symbol string, interval Interval, start, end time.Time, includeExtended bool) ([]Bar, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))
	params.Set("interval", string(interval))
	params.Set("includePrePost", fmt.Sprintf("%t", includeExtended))

	return y.chart(ctx, symbol, params)
}

// DailyBars returns up to days daily bars ending today.
func (y *Yahoo) DailyBars(ctx context.Context, symbol string, days int) ([]Bar, error) {
	if days <= 0 {
		days = 7
	}
	params := url.Values{}
	params.Set("range", fmt.Sprintf("%dd", days))
	params.Set("interval", string(IntervalDay))

	return y.chart(ctx, symbol, params)
}

// Quote returns the current snapshot quote for the symbol.
func (y *Yahoo) Quote(ctx context.Context, symbol string) (Snapshot, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	payload, err := y.get(ctx, y.baseURL+quotePath+"?"+params.Encode())
	if err != nil {
		return Snapshot{}, err
	}

	var res quoteResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return Snapshot{}, fmt.Errorf("decode quote response: %w", err)
	}
	if len(res.QuoteResponse.Result) == 0 {
		// Unknown symbol: absent, not an error.
		return Snapshot{}, nil
	}

	q := res.QuoteResponse.Result[0]
	return Snapshot{
		Open:          fromFloat(q.RegularMarketOpen),
		Last:          fromFloat(q.RegularMarketPrice),
		PreviousClose: fromFloat(q.RegularMarketPreviousClose),
	}, nil
}

func (y *Yahoo) chart(ctx context.Context, symbol string, params url.Values) ([]Bar, error) {
	endpoint := y.baseURL + chartPath + url.PathEscape(symbol) + "?" + params.Encode()
	payload, err := y.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var res chartResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if len(res.Chart.Result) == 0 {
		return nil, nil
	}

	result := res.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := result.Indicators.Quote[0]

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open := at(q.Open, i)
		high := at(q.High, i)
		low := at(q.Low, i)
		closeP := at(q.Close, i)
		if closeP == nil {
			// Bars with no close are placeholders the chart API emits for
			// halted minutes; nothing usable in them.
			continue
		}
		bar := Bar{Timestamp: time.Unix(ts, 0).UTC(), Close: *closeP}
		if open != nil {
			bar.Open = *open
		} else {
			bar.Open = *closeP
		}
		if high != nil {
			bar.High = *high
		} else {
			bar.High = bar.Close
		}
		if low != nil {
			bar.Low = *low
		} else {
			bar.Low = bar.Close
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (y *Yahoo) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "moverwatch/1.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		// Unknown symbol.
		return []byte("{}"), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}

func at(values []*float64, i int) *decimal.Decimal {
	if i >= len(values) {
		return nil
	}
	return fromFloat(values[i])
}

func fromFloat(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			RegularMarketOpen          *float64 `json:"regularMarketOpen"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

var _ BarProvider = (*Yahoo)(nil)
var _ SnapshotProvider = (*Yahoo)(nil)
