package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mover-report/internal/alerting"
	"mover-report/internal/classify"
	"mover-report/internal/config"
	"mover-report/internal/market"
	"mover-report/internal/news"
	"mover-report/internal/quotes"
	"mover-report/internal/scheduler"
	"mover-report/internal/service"
	"mover-report/internal/storage"
	"mover-report/internal/universe"
)

// watchLockKey guards against concurrent watch instances sharing a database.
const watchLockKey int64 = 7734001

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Config.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load market timezone %q: %w", a.Config.Market.Timezone, err)
	}
	return loc, nil
}

func (a *App) newCalculator() (*market.Calculator, error) {
	var err error
	parse := func(name, value string) market.Clock {
		if err != nil {
			return market.Clock{}
		}
		clock, parseErr := market.ParseClock(value)
		if parseErr != nil {
			err = fmt.Errorf("parse %s: %w", name, parseErr)
		}
		return clock
	}

	opts := market.Options{
		AfterHoursStart: parse("market.after_hours_start", a.Config.Market.AfterHoursStart),
		AfterHoursEnd:   parse("market.after_hours_end", a.Config.Market.AfterHoursEnd),
		PremarketStart:  parse("market.premarket_start", a.Config.Market.PremarketStart),
		PremarketEnd:    parse("market.premarket_end", a.Config.Market.PremarketEnd),
		SessionOpen:     parse("market.session_open", a.Config.Market.SessionOpen),
		SessionClose:    parse("market.session_close", a.Config.Market.SessionClose),
	}
	if err != nil {
		return nil, err
	}
	return market.NewCalculator(opts), nil
}

func (a *App) newUniverseLoader() *universe.Loader {
	return universe.NewLoader(universe.Options{
		Source:      a.Config.Universe.Source,
		SkipSymbols: a.Config.Universe.SkipSymbols,
		Timeout:     a.Config.News.RequestTimeout,
		UserAgent:   a.Config.Quotes.UserAgent,
	}, a.Logger)
}

func (a *App) newPriceSource() *quotes.Fetcher {
	yahoo := quotes.NewYahoo(quotes.YahooOptions{
		BaseURL:       a.Config.Quotes.BaseURL,
		Timeout:       a.Config.Quotes.RequestTimeout,
		UserAgent:     a.Config.Quotes.UserAgent,
		RatePerSecond: a.Config.Quotes.RatePerSecond,
		RateBurst:     a.Config.Quotes.RateBurst,
	}, a.Logger)

	return quotes.NewFetcher(yahoo, yahoo, quotes.FetcherOptions{
		OpenTolerance: a.Config.Market.OpenTolerance,
		RetryBackoff:  a.Config.Quotes.RetryBackoff,
	}, a.Logger)
}

// newNewsSource builds the correlator. The EDGAR filer index is fetched up
// front; when it cannot be loaded the filing source is skipped and the run
// proceeds on feeds alone.
func (a *App) newNewsSource(ctx context.Context) *news.Correlator {
	feeds := news.NewFeedClient(news.FeedClientOptions{
		Timeout:   a.Config.News.RequestTimeout,
		UserAgent: a.Config.News.EdgarUserAgent,
	}, a.Logger)

	edgar := news.NewEdgar(news.EdgarOptions{
		BaseURL:   a.Config.News.EdgarBaseURL,
		UserAgent: a.Config.News.EdgarUserAgent,
		Timeout:   a.Config.News.RequestTimeout,
	}, feeds, a.Logger)

	var resolver news.FilerResolver
	index, err := edgar.LoadIndex(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("EDGAR filer index unavailable; filings skipped")
	} else {
		resolver = index
	}

	return news.NewCorrelator(feeds, edgar, resolver, news.CorrelatorOptions{
		TickerFeedURL: a.Config.News.TickerFeedURL,
		WireFeeds:     a.Config.News.MacroFeeds,
		MaxItems:      a.Config.News.MaxItems,
		MaxSentences:  a.Config.News.MaxSentences,
	}, a.Logger)
}

func (a *App) newService(newsrc service.NewsSource) (*service.Service, error) {
	calc, err := a.newCalculator()
	if err != nil {
		return nil, err
	}
	return service.New(calc, a.newPriceSource(), newsrc, service.Options{
		Workers:           a.Config.Runner.Workers,
		Deadline:          a.Config.Runner.Deadline,
		Thresholds:        a.thresholdOptions(),
		MacroMaxHeadlines: a.Config.News.MacroMaxHeadlines,
		HighlightKeywords: a.Config.News.HighlightKeywords,
		Source:            a.Config.Universe.Source,
	}, a.Logger), nil
}

func (a *App) thresholdOptions() classify.Options {
	return classify.Options{
		DefaultThresholdPct:  decimal.NewFromFloat(a.Config.Thresholds.DefaultPct),
		OverrideThresholdPct: decimal.NewFromFloat(a.Config.Thresholds.OverridePct),
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Watch runs scheduled report generation until interrupted.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kind, err := market.ParseReportKind(opts.Kind)
	if err != nil {
		return err
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		SkipWeekends: a.Config.Scheduler.SkipWeekends,
		Location:     loc,
	}, a.Logger)

	notifier := a.newNotifier()

	a.Logger.Info().Str("kind", string(kind)).Msg("starting watch loop")
	err = sched.Run(ctx, func(tickCtx context.Context, _ time.Time) error {
		if store != nil {
			unlock, acquired, lockErr := store.TryAdvisoryLock(tickCtx, watchLockKey)
			if lockErr != nil {
				return lockErr
			}
			if !acquired {
				a.Logger.Warn().Msg("another watch instance holds the run lock; skipping")
				return nil
			}
			defer unlock()
		}
		return a.runOnce(tickCtx, kind, loc, store, notifier)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}

// Report generates a single report for the given kind.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	kind, err := market.ParseReportKind(opts.Kind)
	if err != nil {
		return err
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	return a.runOnce(ctx, kind, loc, store, a.newNotifier())
}

// ReportOptions configure a one-shot report run.
type ReportOptions struct {
	Kind string
}

// WatchOptions configure the scheduled watch loop.
type WatchOptions struct {
	Kind string
}

// ExportOptions hold parameters for exporting mover history.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
