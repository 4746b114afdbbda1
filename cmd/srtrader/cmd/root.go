package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/srtrader/config"
	"github.com/rustyeddy/srtrader/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "srtrader",
	Short: "Support/resistance paper trader for Kraken candles",
	Long: `srtrader detects support and resistance pivots in a rolling candle window
and paper trades a limit order at the nearest level on each side.

It provides tools for:
  - Backtesting against historical Kraken OHLC data
  - Live paper trading on the Kraken WebSocket feed
  - Journaling trades and P/L to SQLite or CSV
  - Publishing snapshots to Redis and metrics to Prometheus`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
	logJSON  bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON lines")
}

// loadConfig reads --config, or the defaults with environment overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		c, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = config.Default()
		if err := cfg.ApplyEnv(os.Getenv); err != nil {
			return nil, err
		}
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logJSON {
		cfg.Log.JSON = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
}

// validate re-checks cfg after flag overrides.
func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
