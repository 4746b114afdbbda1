package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/srtrader/strategies"
	"gopkg.in/yaml.v3"
)

// Config represents the complete paper trading configuration
type Config struct {
	Instrument InstrumentConfig `json:"instrument" yaml:"instrument"`
	Strategy   StrategyConfig   `json:"strategy" yaml:"strategy"`
	Replay     ReplayConfig     `json:"replay" yaml:"replay"`
	Feed       FeedConfig       `json:"feed" yaml:"feed"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Redis      RedisConfig      `json:"redis" yaml:"redis"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// InstrumentConfig names the traded pair on each Kraken API
type InstrumentConfig struct {
	Pair     string `json:"pair" yaml:"pair"`           // WebSocket name, e.g. "XBT/USD"
	RESTPair string `json:"rest_pair" yaml:"rest_pair"` // REST name, e.g. "XBTUSD"
	Interval int    `json:"interval" yaml:"interval"`   // candle minutes
}

// StrategyConfig contains entry and exit parameters
type StrategyConfig struct {
	ProfitTarget      float64 `json:"profit_target" yaml:"profit_target"`
	StopLoss          float64 `json:"stop_loss" yaml:"stop_loss"`
	BarCount          int     `json:"bar_count" yaml:"bar_count"`
	ExcludeFormingBar bool    `json:"exclude_forming_bar" yaml:"exclude_forming_bar"`
	EntryRefresh      string  `json:"entry_refresh,omitempty" yaml:"entry_refresh,omitempty"` // "always", "when-absent" or "" for the mode default
	ClearEntryOnExit  bool    `json:"clear_entry_on_exit" yaml:"clear_entry_on_exit"`
}

// ReplayConfig selects backtest replay vs live trading
type ReplayConfig struct {
	Backtest bool   `json:"backtest" yaml:"backtest"`
	DelayMS  int    `json:"delay_ms" yaml:"delay_ms"`
	StepMS   int    `json:"step_ms,omitempty" yaml:"step_ms,omitempty"` // alias of delay_ms, wins when positive
	DataFile string `json:"data_file,omitempty" yaml:"data_file,omitempty"`
}

// FeedConfig contains exchange endpoints and the staleness policy
type FeedConfig struct {
	RESTURL           string `json:"rest_url" yaml:"rest_url"`
	WSURL             string `json:"ws_url" yaml:"ws_url"`
	StaleAfter        string `json:"stale_after" yaml:"stale_after"` // e.g. "90s"
	ReconnectDelay    string `json:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectDelay string `json:"max_reconnect_delay" yaml:"max_reconnect_delay"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	PnLFile    string `json:"pnl_file,omitempty" yaml:"pnl_file,omitempty"`
}

// RedisConfig enables snapshot publishing
type RedisConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db" yaml:"db"`
	Channel   string `json:"channel" yaml:"channel"`
	LatestKey string `json:"latest_key" yaml:"latest_key"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"` // e.g. ":9102"
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
}

// Kraken OHLC intervals in minutes.
var validIntervals = map[int]bool{1: true, 5: true, 15: true, 30: true, 60: true, 240: true, 1440: true, 10080: true, 21600: true}

// LoadFromFile loads configuration from a file (JSON or YAML), applies
// SRTRADER_* environment overrides and validates the result. Fields missing
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from SRTRADER_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"SRTRADER_PROFIT_TARGET", &c.Strategy.ProfitTarget},
		{"SRTRADER_STOP_LOSS", &c.Strategy.StopLoss},
	}
	for _, f := range floats {
		if v := getenv(f.key); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = n
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SRTRADER_BAR_COUNT", &c.Strategy.BarCount},
		{"SRTRADER_DELAY_MS", &c.Replay.DelayMS},
	}
	for _, i := range ints {
		if v := getenv(i.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", i.key, err)
			}
			*i.dst = n
		}
	}

	if v := getenv("SRTRADER_BACKTEST"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SRTRADER_BACKTEST: %w", err)
		}
		c.Replay.Backtest = b
	}
	if v := getenv("SRTRADER_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("SRTRADER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("SRTRADER_JOURNAL_DB"); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v := getenv("SRTRADER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Instrument.Pair == "" {
		return fmt.Errorf("instrument.pair is required")
	}
	if c.Instrument.RESTPair == "" {
		return fmt.Errorf("instrument.rest_pair is required")
	}
	if !validIntervals[c.Instrument.Interval] {
		return fmt.Errorf("instrument.interval %d is not a Kraken OHLC interval", c.Instrument.Interval)
	}
	if c.Strategy.ProfitTarget <= 0 || c.Strategy.ProfitTarget >= 1 {
		return fmt.Errorf("strategy.profit_target must be between 0 and 1")
	}
	if c.Strategy.StopLoss <= 0 || c.Strategy.StopLoss >= 1 {
		return fmt.Errorf("strategy.stop_loss must be between 0 and 1")
	}
	if c.Strategy.BarCount < 5 {
		return fmt.Errorf("strategy.bar_count must be at least 5")
	}
	if _, err := strategies.RefreshByName(c.Strategy.EntryRefresh, c.Replay.Backtest); err != nil {
		return fmt.Errorf("strategy.entry_refresh: %w", err)
	}
	if c.Replay.DelayMS < 0 || c.Replay.StepMS < 0 {
		return fmt.Errorf("replay.delay_ms must not be negative")
	}
	for name, v := range map[string]string{
		"feed.stale_after":         c.Feed.StaleAfter,
		"feed.reconnect_delay":     c.Feed.ReconnectDelay,
		"feed.max_reconnect_delay": c.Feed.MaxReconnectDelay,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch c.Journal.Type {
	case "none", "":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.PnLFile == "" {
			return fmt.Errorf("journal trades_file and pnl_file required for CSV type")
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required when redis is enabled")
	}
	return nil
}

// Delay is the replay pacing interval. step_ms wins over delay_ms when set.
func (c *Config) Delay() time.Duration {
	ms := c.Replay.DelayMS
	if c.Replay.StepMS > 0 {
		ms = c.Replay.StepMS
	}
	return time.Duration(ms) * time.Millisecond
}

// StaleAfter is how long the live feed may stay silent before reconnecting.
func (c *Config) StaleAfter() time.Duration {
	d, _ := parseDuration(c.Feed.StaleAfter)
	return d
}

func (c *Config) ReconnectDelay() time.Duration {
	d, _ := parseDuration(c.Feed.ReconnectDelay)
	return d
}

func (c *Config) MaxReconnectDelay() time.Duration {
	d, _ := parseDuration(c.Feed.MaxReconnectDelay)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			Pair:     "XBT/USD",
			RESTPair: "XBTUSD",
			Interval: 1,
		},
		Strategy: StrategyConfig{
			ProfitTarget: 0.005,
			StopLoss:     0.005,
			BarCount:     120,
		},
		Replay: ReplayConfig{
			Backtest: true,
			DelayMS:  100,
		},
		Feed: FeedConfig{
			RESTURL:           "https://api.kraken.com",
			WSURL:             "wss://ws.kraken.com",
			StaleAfter:        "90s",
			ReconnectDelay:    "2s",
			MaxReconnectDelay: "30s",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./srtrader.db",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Channel:   "srtrader:snapshots",
			LatestKey: "srtrader:snapshot:latest",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
