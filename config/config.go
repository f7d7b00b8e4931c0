package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/killswitch/calendar"
	"github.com/rustyeddy/killswitch/internal/httpjson"
)

// ErrInvalid is wrapped by every validation failure. It is fatal at startup.
var ErrInvalid = errors.New("invalid config")

// Platform identifiers accepted in accounts[].platform.
const (
	MatchTrader = "matchtrader"
	DXtrade     = "dxtrade"
	TradeLocker = "tradelocker"
)

// Config is the complete accounts file.
type Config struct {
	Interval    Duration      `json:"interval,omitempty" yaml:"interval,omitempty"`
	CalendarURL string        `json:"calendar_url,omitempty" yaml:"calendar_url,omitempty"`
	HTTPTimeout Duration      `json:"http_timeout,omitempty" yaml:"http_timeout,omitempty"`
	RateLimit   float64       `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Parallel    *bool         `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	LogLevel    string        `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat   string        `json:"log_format,omitempty" yaml:"log_format,omitempty"`
	MetricsAddr string        `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	Journal     JournalConfig `json:"journal" yaml:"journal"`
	Accounts    []Account     `json:"accounts" yaml:"accounts"`
}

// JournalConfig selects where close outcomes are recorded.
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Account is one brokerage account and its news policy.
type Account struct {
	ID             httpjson.FlexString `json:"id" yaml:"id"`
	Platform       string              `json:"platform" yaml:"platform"`
	BaseURL        string              `json:"base_url" yaml:"base_url"`
	Account        httpjson.FlexString `json:"account" yaml:"account"`
	Email          string              `json:"email,omitempty" yaml:"email,omitempty"`
	Password       string              `json:"password" yaml:"password"`
	Server         string              `json:"server,omitempty" yaml:"server,omitempty"`
	Domain         string              `json:"domain,omitempty" yaml:"domain,omitempty"`
	BrokerID       string              `json:"broker_id,omitempty" yaml:"broker_id,omitempty"`
	PastDelta      *Duration           `json:"past_delta" yaml:"past_delta"`
	FutureDelta    *Duration           `json:"future_delta" yaml:"future_delta"`
	EventImpact    []string            `json:"event_impact" yaml:"event_impact"`
	CountrySymbols map[string][]string `json:"country_symbols" yaml:"country_symbols"`
}

const (
	DefaultInterval    = 50 * time.Second
	DefaultHTTPTimeout = 30 * time.Second
)

// LoadFromFile reads YAML or JSON, applies defaults and validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse tries YAML first and falls back to JSON.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("%w: parse config (tried YAML and JSON): %v", ErrInvalid, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = Duration(DefaultInterval)
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = Duration(DefaultHTTPTimeout)
	}
	if c.CalendarURL == "" {
		c.CalendarURL = calendar.DefaultFeedURL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Journal.Type == "" {
		c.Journal.Type = "none"
	}
	for i := range c.Accounts {
		a := &c.Accounts[i]
		a.Platform = strings.ToLower(strings.TrimSpace(a.Platform))
		if a.BaseURL != "" && !strings.HasSuffix(a.BaseURL, "/") {
			a.BaseURL += "/"
		}
	}
}

// IsParallel reports whether accounts are evaluated concurrently (default).
func (c *Config) IsParallel() bool {
	return c.Parallel == nil || *c.Parallel
}

// Validate checks the whole file and reports the first problem found.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return invalid("interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return invalid("http_timeout must be positive")
	}
	if c.RateLimit < 0 {
		return invalid("rate_limit must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level must be one of debug, info, warn, error")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return invalid("log_format must be 'console' or 'json'")
	}
	switch c.Journal.Type {
	case "none":
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return invalid("journal.path is required for %s journals", c.Journal.Type)
		}
	default:
		return invalid("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if len(c.Accounts) == 0 {
		return invalid("at least one account is required")
	}
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if seen[a.ID.String()] {
			return invalid("accounts[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID.String()] = true
	}
	return nil
}

func (a Account) Validate() error {
	if a.ID == "" {
		return invalid("id is required")
	}
	field := func(format string, args ...any) error {
		return invalid("id %s: "+format, append([]any{a.ID}, args...)...)
	}

	switch a.Platform {
	case MatchTrader, DXtrade, TradeLocker:
	case "":
		return field("platform is required")
	default:
		return field("unknown platform %q (want matchtrader|dxtrade|tradelocker)", a.Platform)
	}

	if a.BaseURL == "" {
		return field("base_url is required")
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return field("base_url %q must be an absolute http(s) url", a.BaseURL)
	}
	if a.Account == "" {
		return field("account is required")
	}
	if a.Password == "" {
		return field("password is required")
	}
	if (a.Platform == MatchTrader || a.Platform == TradeLocker) && a.Email == "" {
		return field("email is required for %s", a.Platform)
	}
	if a.Platform == TradeLocker && a.Server == "" {
		return field("server is required for tradelocker")
	}

	if a.PastDelta == nil {
		return field("past_delta is required")
	}
	if a.FutureDelta == nil {
		return field("future_delta is required")
	}
	if len(a.EventImpact) == 0 {
		return field("event_impact list is empty")
	}
	if _, err := calendar.ParseImpactSet(a.EventImpact); err != nil {
		return field("event_impact: %v", err)
	}
	if a.CountrySymbols == nil {
		return field("country_symbols is required")
	}

	if err := a.Policy().Validate(); err != nil {
		return field("%v", err)
	}
	return nil
}

// Policy converts the account's news settings. Call it on a validated
// account; unparseable impacts are dropped.
func (a Account) Policy() calendar.Policy {
	impacts, _ := calendar.ParseImpactSet(a.EventImpact)

	symbols := make(map[string][]string, len(a.CountrySymbols))
	for country, syms := range a.CountrySymbols {
		symbols[country] = append([]string(nil), syms...)
	}

	var past, future time.Duration
	if a.PastDelta != nil {
		past = a.PastDelta.Std()
	}
	if a.FutureDelta != nil {
		future = a.FutureDelta.Std()
	}
	return calendar.Policy{
		Past:           past,
		Future:         future,
		Impacts:        impacts,
		CountrySymbols: symbols,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Default returns an example file with one account per platform.
func Default() *Config {
	past := Duration(15 * time.Minute)
	future := Duration(24 * time.Hour)
	fx := map[string][]string{
		"USD": {"EURUSD", "GBPUSD", "USDJPY"},
		"EUR": {"EURUSD"},
		"GBP": {"GBPUSD"},
	}
	cfg := &Config{
		Journal: JournalConfig{Type: "csv", Path: "./closes.csv"},
		Accounts: []Account{
			{
				ID:             "matchtrader-1",
				Platform:       MatchTrader,
				BaseURL:        "https://mtr.example.com/",
				Account:        "123456",
				Email:          "trader@example.com",
				Password:       "change-me",
				PastDelta:      &past,
				FutureDelta:    &future,
				EventImpact:    []string{"high"},
				CountrySymbols: fx,
			},
			{
				ID:             "dxtrade-1",
				Platform:       DXtrade,
				BaseURL:        "https://dx.example.com/dxsca-web/",
				Account:        "1210",
				Password:       "change-me",
				Domain:         "default",
				PastDelta:      &past,
				FutureDelta:    &future,
				EventImpact:    []string{"high", "medium"},
				CountrySymbols: fx,
			},
			{
				ID:             "tradelocker-1",
				Platform:       TradeLocker,
				BaseURL:        "https://demo.tradelocker.com/backend-api/",
				Account:        "555000",
				Email:          "trader@example.com",
				Password:       "change-me",
				Server:         "DEMO-SERVER",
				PastDelta:      &past,
				FutureDelta:    &future,
				EventImpact:    []string{"high"},
				CountrySymbols: fx,
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}
