package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("NEWSRELAY_TELEGRAM__BOT_TOKEN", "123:abc")
	t.Setenv("NEWSRELAY_TELEGRAM__CHAT_ID", "@channel")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing-is-not-used.yaml"))
	require.Error(t, err, "explicit path must exist")
	assert.Nil(t, cfg)

	t.Chdir(t.TempDir())
	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Retry.Interval)
	assert.Equal(t, time.Minute, cfg.Retry.PollInterval)
	assert.Equal(t, 500, cfg.Retry.StatusFloor)
	assert.Contains(t, cfg.Retry.BodyMarkers, "WEBPAGE_CURL_FAILED")
	assert.Len(t, cfg.Feeds.Endpoints, 2)
	assert.Equal(t, 1, cfg.Feeds.Endpoints[0].SourceID)
	assert.Equal(t, "div.right", cfg.Scrape.Selectors.Block)
	assert.Equal(t, 60*time.Second, cfg.Scrape.Browser.Settle)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("NEWSRELAY_LOG__LEVEL", "debug")
	t.Setenv("NEWSRELAY_RETRY__MAX_ATTEMPTS", "3")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: warn
  format: text
dedup:
  epoch: 96h
feeds:
  interval: 2m
  endpoints:
    - name: only
      url: https://example.com/rss
      source_id: 1
scrape:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level, "env wins over file")
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 96*time.Hour, cfg.Dedup.Epoch)
	assert.Equal(t, 2*time.Minute, cfg.Feeds.Interval)
	require.Len(t, cfg.Feeds.Endpoints, 1)
	assert.Equal(t, "only", cfg.Feeds.Endpoints[0].Name)
	assert.False(t, cfg.Scrape.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing bot token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: "BotToken",
		},
		{
			name:    "poll interval not shorter than retry interval",
			mutate:  func(c *Config) { c.Retry.PollInterval = c.Retry.Interval },
			wantErr: "poll_interval",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "Level",
		},
		{
			name:    "unknown time zone",
			mutate:  func(c *Config) { c.Ingest.TimeZone = "Mars/Olympus" },
			wantErr: "time_zone",
		},
		{
			name:    "feed with unknown source",
			mutate:  func(c *Config) { c.Feeds.Endpoints[0].SourceID = 9 },
			wantErr: "SourceID",
		},
		{
			name: "page settle outlasting scrape interval",
			mutate: func(c *Config) {
				c.Scrape.Interval = time.Minute
				c.Scrape.Browser.Settle = 50 * time.Second
				c.Scrape.Browser.NavTimeout = 10 * time.Second
			},
			wantErr: "scrape.interval",
		},
		{
			name:    "negative settle",
			mutate:  func(c *Config) { c.Scrape.Browser.Settle = -time.Second },
			wantErr: "Settle",
		},
		{
			name: "settle longer than nav timeout",
			mutate: func(c *Config) {
				c.Scrape.Browser.Settle = 2 * time.Minute
				c.Scrape.Browser.NavTimeout = 30 * time.Second
			},
		},
		{
			name: "disabled scrape ignores browser budget",
			mutate: func(c *Config) {
				c.Scrape.Enabled = false
				c.Scrape.Interval = time.Second
			},
		},
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Telegram.BotToken = "token"
			cfg.Telegram.ChatID = "@chat"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "scrape.browser.settle", envKey("NEWSRELAY_SCRAPE__BROWSER__SETTLE"))
	assert.Equal(t, "telegram.bot_token", envKey("NEWSRELAY_TELEGRAM__BOT_TOKEN"))
}
