// Package config provides application configuration loading.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Retry     RetryConfig     `koanf:"retry"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Translate TranslateConfig `koanf:"translate"`
	Feeds     FeedsConfig     `koanf:"feeds"`
	Scrape    ScrapeConfig    `koanf:"scrape"`
	Ingest    IngestConfig    `koanf:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    string `koanf:"port" validate:"required_if=Enabled true"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxConns        int           `koanf:"max_conns" validate:"gte=1"`
	MinConns        int           `koanf:"min_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=1"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// TelegramConfig holds chat API settings.
type TelegramConfig struct {
	APIURL    string        `koanf:"api_url" validate:"required,url"`
	BotToken  string        `koanf:"bot_token" validate:"required"`
	ChatID    string        `koanf:"chat_id" validate:"required"`
	RateLimit float64       `koanf:"rate_limit" validate:"gt=0"`
	Timeout   time.Duration `koanf:"timeout"`
}

// RetryConfig controls classification and re-delivery of failed notifications.
type RetryConfig struct {
	MaxAttempts  int           `koanf:"max_attempts" validate:"gte=1"`
	Interval     time.Duration `koanf:"interval"`
	PollInterval time.Duration `koanf:"poll_interval"`
	StatusFloor  int           `koanf:"status_floor" validate:"gte=400,lte=599"`
	BodyMarkers  []string      `koanf:"body_markers"`
}

// DedupConfig controls the in-memory seen cache.
type DedupConfig struct {
	Epoch time.Duration `koanf:"epoch"`
}

// TranslateConfig controls title translation.
type TranslateConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Endpoint         string        `koanf:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	TargetLanguage   string        `koanf:"target_language" validate:"required_if=Enabled true"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
}

// FeedsConfig lists RSS sources.
type FeedsConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Interval  time.Duration `koanf:"interval"`
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`
	Layout    string        `koanf:"layout"`
	Endpoints []FeedConfig  `koanf:"endpoints" validate:"dive"`
}

// FeedConfig is one polled feed URL.
type FeedConfig struct {
	Name     string `koanf:"name" validate:"required"`
	URL      string `koanf:"url" validate:"required,url"`
	SourceID int    `koanf:"source_id" validate:"oneof=1 2 3"`
	Pin      bool   `koanf:"pin"`
}

// ScrapeConfig controls the browser-rendered page source.
type ScrapeConfig struct {
	Enabled        bool            `koanf:"enabled"`
	PageURL        string          `koanf:"page_url" validate:"required_if=Enabled true,omitempty,url"`
	BaseURL        string          `koanf:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Interval       time.Duration   `koanf:"interval"`
	Layout         string          `koanf:"layout"`
	TitleMaxLength int             `koanf:"title_max_length" validate:"gte=1"`
	Translate      bool            `koanf:"translate"`
	Selectors      SelectorsConfig `koanf:"selectors"`
	Browser        BrowserConfig   `koanf:"browser"`
}

// SelectorsConfig holds CSS selectors for the scraped page.
type SelectorsConfig struct {
	Block          string `koanf:"block" validate:"required"`
	Title          string `koanf:"title" validate:"required"`
	TitleFallback  string `koanf:"title_fallback"`
	Link           string `koanf:"link" validate:"required"`
	Timestamp      string `koanf:"timestamp"`
	Photos         string `koanf:"photos"`
	PhotosFallback string `koanf:"photos_fallback"`
}

// BrowserConfig controls the headless browser session.
type BrowserConfig struct {
	Bin          string        `koanf:"bin"`
	RemoteURL    string        `koanf:"remote_url"`
	Headless     bool          `koanf:"headless"`
	BlockImages  bool          `koanf:"block_images"`
	Settle       time.Duration `koanf:"settle" validate:"gte=0"`
	NavTimeout   time.Duration `koanf:"nav_timeout" validate:"gte=0"`
	ParkURL      string        `koanf:"park_url"`
	RecycleAfter int           `koanf:"recycle_after"`
}

// IngestConfig controls the per-item pipeline.
type IngestConfig struct {
	ItemDelay     time.Duration `koanf:"item_delay"`
	TimeZone      string        `koanf:"time_zone" validate:"required"`
	TimeZoneLabel string        `koanf:"time_zone_label"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Retry.PollInterval >= c.Retry.Interval {
		return fmt.Errorf("invalid config: retry.poll_interval (%s) must be shorter than retry.interval (%s)",
			c.Retry.PollInterval, c.Retry.Interval)
	}
	if c.Scrape.Enabled {
		if budget := c.Scrape.Browser.Settle + c.Scrape.Browser.NavTimeout; budget >= c.Scrape.Interval {
			return fmt.Errorf("invalid config: scrape.browser.settle plus nav_timeout (%s) must be shorter than scrape.interval (%s)",
				budget, c.Scrape.Interval)
		}
	}
	if _, err := time.LoadLocation(c.Ingest.TimeZone); err != nil {
		return fmt.Errorf("invalid config: ingest.time_zone: %w", err)
	}
	return nil
}

// Location returns the configured display time zone.
func (c IngestConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
