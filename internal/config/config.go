package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"mover-report/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Universe   UniverseConfig   `mapstructure:"universe"`
	Market     MarketConfig     `mapstructure:"market"`
	Quotes     QuotesConfig     `mapstructure:"quotes"`
	News       NewsConfig       `mapstructure:"news"`
	Thresholds ThresholdConfig  `mapstructure:"thresholds"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Output     OutputConfig     `mapstructure:"output"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// UniverseConfig locates the ticker universe source.
type UniverseConfig struct {
	Source      string   `mapstructure:"source"`
	SkipSymbols []string `mapstructure:"skip_symbols"`
}

// MarketConfig fixes the reference timezone and the local clock times the
// evaluation windows are anchored to.
type MarketConfig struct {
	Timezone        string        `mapstructure:"timezone"`
	AfterHoursStart string        `mapstructure:"after_hours_start"`
	AfterHoursEnd   string        `mapstructure:"after_hours_end"`
	PremarketStart  string        `mapstructure:"premarket_start"`
	PremarketEnd    string        `mapstructure:"premarket_end"`
	SessionOpen     string        `mapstructure:"session_open"`
	SessionClose    string        `mapstructure:"session_close"`
	OpenTolerance   time.Duration `mapstructure:"open_tolerance"`
}

// QuotesConfig captures quote provider connectivity.
type QuotesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	RateBurst      int           `mapstructure:"rate_burst"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// NewsConfig captures feed endpoints and summarisation limits.
type NewsConfig struct {
	TickerFeedURL     string        `mapstructure:"ticker_feed_url"`
	MacroFeeds        []string      `mapstructure:"macro_feeds"`
	EdgarBaseURL      string        `mapstructure:"edgar_base_url"`
	EdgarUserAgent    string        `mapstructure:"edgar_user_agent"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxItems          int           `mapstructure:"max_items"`
	MaxSentences      int           `mapstructure:"max_sentences"`
	MacroMaxHeadlines int           `mapstructure:"macro_max_headlines"`
	HighlightKeywords []string      `mapstructure:"highlight_keywords"`
}

// ThresholdConfig defines movement qualification thresholds.
type ThresholdConfig struct {
	DefaultPct  float64 `mapstructure:"default_pct"`
	OverridePct float64 `mapstructure:"override_pct"`
}

// RunnerConfig governs per-ticker concurrency and the overall deadline.
type RunnerConfig struct {
	Workers  int           `mapstructure:"workers"`
	Deadline time.Duration `mapstructure:"deadline"`
}

// OutputConfig sets report file destinations.
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	MarkdownFile string `mapstructure:"markdown_file"`
	JSONFile     string `mapstructure:"json_file"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the watch command cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	SkipWeekends  bool          `mapstructure:"skip_weekends"`
}

// AlertingConfig defines extreme-mover alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOVERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "moverwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("market.timezone", "Europe/Budapest")
	v.SetDefault("market.after_hours_start", "22:00")
	v.SetDefault("market.after_hours_end", "02:00")
	v.SetDefault("market.premarket_start", "10:00")
	v.SetDefault("market.premarket_end", "15:30")
	v.SetDefault("market.session_open", "15:30")
	v.SetDefault("market.session_close", "22:00")
	v.SetDefault("market.open_tolerance", "5m")

	v.SetDefault("quotes.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("quotes.request_timeout", "8s")
	v.SetDefault("quotes.user_agent", "moverwatch/1.0")
	v.SetDefault("quotes.rate_per_second", 4.0)
	v.SetDefault("quotes.rate_burst", 2)
	v.SetDefault("quotes.retry_backoff", "500ms")

	v.SetDefault("news.ticker_feed_url", "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US")
	v.SetDefault("news.macro_feeds", []string{
		"https://feeds.reuters.com/reuters/businessNews",
		"https://feeds.reuters.com/reuters/marketsNews",
		"https://apnews.com/hub/apf-business?utm_source=rss",
	})
	v.SetDefault("news.edgar_base_url", "https://www.sec.gov")
	v.SetDefault("news.edgar_user_agent", "moverwatch/1.0 (admin@example.com)")
	v.SetDefault("news.request_timeout", "12s")
	v.SetDefault("news.max_items", 3)
	v.SetDefault("news.max_sentences", 4)
	v.SetDefault("news.macro_max_headlines", 5)
	v.SetDefault("news.highlight_keywords", []string{"trump"})

	v.SetDefault("thresholds.default_pct", 3.0)
	v.SetDefault("thresholds.override_pct", 8.0)

	v.SetDefault("runner.workers", 8)
	v.SetDefault("runner.deadline", "4m")

	v.SetDefault("output.dir", "out")
	v.SetDefault("output.markdown_file", "report_summary.md")
	v.SetDefault("output.json_file", "report.json")

	v.SetDefault("scheduler.interval", "30m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.skip_weekends", true)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Thresholds.DefaultPct < 0 {
		return fmt.Errorf("thresholds.default_pct cannot be negative")
	}
	if c.Thresholds.OverridePct < 0 {
		return fmt.Errorf("thresholds.override_pct cannot be negative")
	}
	if c.Runner.Workers <= 0 {
		return fmt.Errorf("runner.workers must be greater than zero")
	}
	if c.Runner.Deadline <= 0 {
		return fmt.Errorf("runner.deadline must be greater than zero")
	}
	if c.Market.OpenTolerance < 0 {
		return fmt.Errorf("market.open_tolerance cannot be negative")
	}
	if c.News.MaxItems <= 0 {
		return fmt.Errorf("news.max_items must be greater than zero")
	}
	if c.News.MaxSentences <= 0 {
		return fmt.Errorf("news.max_sentences must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
