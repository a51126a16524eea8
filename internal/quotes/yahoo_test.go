package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestYahooIntradayBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1m" {
			t.Fatalf("interval param missing, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("includePrePost") != "true" {
			t.Fatal("extended hours flag should be passed through")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1700000000,1700000060,1700000120],
			"indicators":{"quote":[{
				"open":[10.0,10.1,null],
				"high":[10.2,10.4,null],
				"low":[9.9,10.0,null],
				"close":[10.1,10.3,null]
			}]}
		}]}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second, RatePerSecond: 1000}, noopLogger())
	bars, err := y.IntradayBars(context.Background(), "ABC", IntervalMinute, time.Unix(1700000000, 0), time.Unix(1700000200, 0), true)
	if err != nil {
		t.Fatalf("IntradayBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("null-close placeholder bars should be dropped, got %d bars", len(bars))
	}
	if !bars[0].Open.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("bar open = %v", bars[0].Open)
	}
	if !bars[1].Close.Equal(decimal.RequireFromString("10.3")) {
		t.Fatalf("bar close = %v", bars[1].Close)
	}
}

func TestYahooQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbols") != "META" {
			t.Fatalf("symbols param = %q", r.URL.Query().Get("symbols"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{
			"regularMarketOpen":512.5,
			"regularMarketPrice":530.25,
			"regularMarketPreviousClose":508.0
		}]}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second, RatePerSecond: 1000}, noopLogger())
	snap, err := y.Quote(context.Background(), "META")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if snap.Open == nil || !snap.Open.Equal(decimal.RequireFromString("512.5")) {
		t.Fatalf("open = %v", snap.Open)
	}
	if snap.Last == nil || !snap.Last.Equal(decimal.RequireFromString("530.25")) {
		t.Fatalf("last = %v", snap.Last)
	}
	if snap.PreviousClose == nil || !snap.PreviousClose.Equal(decimal.RequireFromString("508")) {
		t.Fatalf("previous close = %v", snap.PreviousClose)
	}
}

func TestYahooUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[]}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second, RatePerSecond: 1000}, noopLogger())
	snap, err := y.Quote(context.Background(), "NOSUCH")
	if err != nil {
		t.Fatalf("unknown symbol must not error: %v", err)
	}
	if snap.Open != nil || snap.Last != nil || snap.PreviousClose != nil {
		t.Fatalf("unknown symbol should yield an empty snapshot: %+v", snap)
	}
}

func TestYahooHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second, RatePerSecond: 1000}, noopLogger())
	if _, err := y.Quote(context.Background(), "ABC"); err == nil {
		t.Fatal("HTTP 429 should surface as an error for the retry layer")
	}
}
