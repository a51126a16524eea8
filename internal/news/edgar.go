package news

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
)

const (
	tickerMapPath  = "/files/company_tickers.json"
	filingFeedPath = "/cgi-bin/browse-edgar"
)

// EdgarOptions parameterise the SEC EDGAR client. The SEC requires a contact
// address in the User-Agent.
type EdgarOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	FeedTypes string
}

// Edgar resolves ticker symbols to CIK filer identifiers and fetches recent
// filing entries from the EDGAR atom feed.
type Edgar struct {
	opts    EdgarOptions
	logger  zerolog.Logger
	client  *http.Client
	feeds   FeedProvider
	baseURL string
}

// NewEdgar constructs an EDGAR client. The feed provider parses the atom
// filing feed.
func NewEdgar(opts EdgarOptions, feeds FeedProvider, logger zerolog.Logger) *Edgar {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.sec.gov"
	}
	if opts.FeedTypes == "" {
		opts.FeedTypes = "8-K|6-K"
	}
	return &Edgar{
		opts:    opts,
		logger:  logger.With().Str("component", "edgar").Logger(),
		client:  &http.Client{Timeout: timeout},
		feeds:   feeds,
		baseURL: baseURL,
	}
}

// FilerIndex is the symbol to filer table, built once per invocation and
// safe for concurrent readers.
type FilerIndex struct {
	bySymbol map[string]Filer
}

// Lookup returns the filer for a symbol, if known.
func (idx *FilerIndex) Lookup(symbol string) (Filer, bool) {
	if idx == nil {
		return Filer{}, false
	}
	f, ok := idx.bySymbol[strings.ToUpper(symbol)]
	return f, ok
}

// Len reports the number of known filers.
func (idx *FilerIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.bySymbol)
}

// NewFilerIndex builds an index from an explicit table; used by tests and by
// callers that cache the mapping.
func NewFilerIndex(table map[string]Filer) *FilerIndex {
	bySymbol := make(map[string]Filer, len(table))
	for sym, f := range table {
		bySymbol[strings.ToUpper(sym)] = f
	}
	return &FilerIndex{bySymbol: bySymbol}
}

// LoadIndex downloads the SEC ticker map and builds the filer index.
func (e *Edgar) LoadIndex(ctx context.Context) (*FilerIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+tickerMapPath, nil)
	if err != nil {
		return nil, err
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker map: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ticker map: unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		CIK    json.Number `json:"cik_str"`
		Ticker string      `json:"ticker"`
		Title  string      `json:"title"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode ticker map: %w", err)
	}

	bySymbol := make(map[string]Filer, len(raw))
	for _, rec := range raw {
		sym := strings.ToUpper(strings.TrimSpace(rec.Ticker))
		if sym == "" {
			continue
		}
		bySymbol[sym] = Filer{
			CIK:  padCIK(rec.CIK.String()),
			Name: strings.TrimSpace(rec.Title),
		}
	}

	e.logger.Debug().Int("filers", len(bySymbol)).Msg("filer index loaded")
	return &FilerIndex{bySymbol: bySymbol}, nil
}

// Filings fetches recent filing entries for a filer from the atom feed.
func (e *Edgar) Filings(ctx context.Context, cik string) ([]Item, error) {
	params := url.Values{}
	params.Set("action", "getcompany")
	params.Set("CIK", cik)
	params.Set("type", e.opts.FeedTypes)
	params.Set("owner", "exclude")
	params.Set("count", "40")
	params.Set("output", "atom")

	items, err := e.feeds.Entries(ctx, e.baseURL+filingFeedPath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Source = "SEC EDGAR"
	}
	return items, nil
}

func (e *Edgar) setHeaders(req *http.Request) {
	if ua := strings.TrimSpace(e.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "moverwatch/1.0")
	}
	req.Header.Set("Accept", "application/json")
}

// padCIK zero-pads a CIK to the ten digits EDGAR expects.
func padCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

var _ FilingProvider = (*Edgar)(nil)
