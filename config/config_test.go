package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/killswitch/calendar"
)

const accountsJSON = `{
	"accounts": [
		{
			"id": 1,
			"platform": "MatchTrader",
			"base_url": "https://mtr.example.com",
			"account": 123456,
			"email": "a@example.com",
			"password": "pw",
			"past_delta": "15 minutes",
			"future_delta": "24 hours",
			"event_impact": ["High", "medium"],
			"country_symbols": {"USD": ["EURUSD", "GBPUSD"]}
		}
	]
}`

const accountsYAML = `
interval: 30s
journal:
  type: sqlite
  path: ./closes.db
accounts:
  - id: tl
    platform: tradelocker
    base_url: https://demo.tradelocker.com/backend-api/
    account: "555"
    email: a@example.com
    password: pw
    server: DEMO
    past_delta: 0s
    future_delta: 1 day 2 hours
    event_impact: [high]
    country_symbols:
      GBP: [GBPUSD]
`

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Len(t, cfg.Accounts, 3)
	assert.Equal(t, DefaultInterval, cfg.Interval.Std())
	assert.True(t, cfg.IsParallel())
	assert.NoError(t, cfg.Validate())
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(accountsJSON))
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 1)

	a := cfg.Accounts[0]
	assert.Equal(t, "1", a.ID.String())
	assert.Equal(t, "123456", a.Account.String())
	assert.Equal(t, MatchTrader, a.Platform)
	assert.Equal(t, "https://mtr.example.com/", a.BaseURL)

	p := a.Policy()
	assert.Equal(t, 15*time.Minute, p.Past)
	assert.Equal(t, 24*time.Hour, p.Future)
	assert.True(t, p.Impacts.Has(calendar.High))
	assert.True(t, p.Impacts.Has(calendar.Medium))
	assert.False(t, p.Impacts.Has(calendar.Low))
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, p.CountrySymbols["USD"])

	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout.Std())
	assert.Equal(t, calendar.DefaultFeedURL, cfg.CalendarURL)
	assert.Equal(t, "none", cfg.Journal.Type)
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(accountsYAML))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Interval.Std())
	assert.Equal(t, "sqlite", cfg.Journal.Type)
	a := cfg.Accounts[0]
	assert.Equal(t, TradeLocker, a.Platform)
	assert.Equal(t, time.Duration(0), a.Policy().Past)
	assert.Equal(t, 26*time.Hour, a.Policy().Future)
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"accounts.yaml", "accounts.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Default().SaveToFile(path))

		loaded, err := LoadFromFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, Default().Accounts[2].Policy(), loaded.Accounts[2].Policy(), name)
		assert.Equal(t, Default().Accounts[1].Domain, loaded.Accounts[1].Domain, name)
	}

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveToFileIsPrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, Default().SaveToFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func validAccount() Account {
	past := Duration(15 * time.Minute)
	future := Duration(time.Hour)
	return Account{
		ID:             "a1",
		Platform:       DXtrade,
		BaseURL:        "https://dx.example.com/",
		Account:        "1210",
		Password:       "pw",
		PastDelta:      &past,
		FutureDelta:    &future,
		EventImpact:    []string{"high"},
		CountrySymbols: map[string][]string{},
	}
}

func TestValidate(t *testing.T) {
	negative := Duration(-time.Minute)

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no accounts", func(c *Config) { c.Accounts = nil }, "at least one account is required"},
		{"bad interval", func(c *Config) { c.Interval = -1 }, "interval must be positive"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"journal without path", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }, "journal.path is required"},
		{"unknown journal", func(c *Config) { c.Journal = JournalConfig{Type: "kafka"} }, "journal.type"},
		{"missing id", func(c *Config) { c.Accounts[0].ID = "" }, "id is required"},
		{"duplicate id", func(c *Config) { c.Accounts = append(c.Accounts, c.Accounts[0]) }, "duplicate id"},
		{"unknown platform", func(c *Config) { c.Accounts[0].Platform = "mt5" }, "unknown platform"},
		{"relative base url", func(c *Config) { c.Accounts[0].BaseURL = "dx.example.com/" }, "absolute http(s) url"},
		{"missing password", func(c *Config) { c.Accounts[0].Password = "" }, "password is required"},
		{"matchtrader needs email", func(c *Config) { c.Accounts[0].Platform = MatchTrader }, "email is required for matchtrader"},
		{"tradelocker needs server", func(c *Config) {
			c.Accounts[0].Platform = TradeLocker
			c.Accounts[0].Email = "a@example.com"
		}, "server is required"},
		{"missing past delta", func(c *Config) { c.Accounts[0].PastDelta = nil }, "past_delta is required"},
		{"negative future delta", func(c *Config) { c.Accounts[0].FutureDelta = &negative }, "negative"},
		{"empty impacts", func(c *Config) { c.Accounts[0].EventImpact = []string{} }, "event_impact list is empty"},
		{"bad impact", func(c *Config) { c.Accounts[0].EventImpact = []string{"severe"} }, "unknown impact"},
		{"missing mapping", func(c *Config) { c.Accounts[0].CountrySymbols = nil }, "country_symbols is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Accounts: []Account{validAccount()}}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("accounts: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"15m", 15 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"15 minutes", 15 * time.Minute, false},
		{"24 hours", 24 * time.Hour, false},
		{"1 day 2 hours", 26 * time.Hour, false},
		{"1 Day, 30 Mins", 24*time.Hour + 30*time.Minute, false},
		{"0.5 hours", 30 * time.Minute, false},
		{"2 weeks", 14 * 24 * time.Hour, false},
		{"", 0, true},
		{"soon", 0, true},
		{"5 fortnights", 0, true},
		{"5 minutes later", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
