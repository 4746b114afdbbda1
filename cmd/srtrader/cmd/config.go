package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/rustyeddy/srtrader/config"
	"github.com/rustyeddy/srtrader/strategies"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, check or print srtrader configuration",
	Long: `Configuration comes from the defaults, an optional YAML or JSON file given
with --config, then SRTRADER_* environment variables.

Examples:
  srtrader config init srtrader.yaml
  srtrader config check srtrader.yaml
  SRTRADER_BAR_COUNT=120 srtrader config show --config srtrader.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to path (srtrader.yaml)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "srtrader.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := writeDefaultConfig(path, configInitForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:     "check [path]",
	Aliases: []string{"validate"},
	Short:   "Load a configuration file and summarize the session it describes",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no config file: pass a path or --config")
		}
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return err
		}
		return summarize(cmd.OutOrStdout(), cfg)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := validate(cfg); err != nil {
			return err
		}
		out, err := renderConfig(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configCheckCmd, configShowCmd)

	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s exists, use --force to overwrite", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return config.Default().SaveToFile(path)
}

// renderConfig marshals cfg as YAML with the Redis password masked.
func renderConfig(cfg *config.Config) ([]byte, error) {
	shown := *cfg
	if shown.Redis.Password != "" {
		shown.Redis.Password = "********"
	}
	return yaml.Marshal(&shown)
}

func summarize(w io.Writer, cfg *config.Config) error {
	refresh, err := strategies.RefreshByName(cfg.Strategy.EntryRefresh, cfg.Replay.Backtest)
	if err != nil {
		return err
	}

	mode := "live"
	if cfg.Replay.Backtest {
		mode = fmt.Sprintf("backtest, %s per candle", cfg.Delay())
	}
	journal := cfg.Journal.Type
	switch cfg.Journal.Type {
	case "sqlite":
		journal += " " + cfg.Journal.DBPath
	case "csv":
		journal += fmt.Sprintf(" %s, %s", cfg.Journal.TradesFile, cfg.Journal.PnLFile)
	}
	redis := "off"
	if cfg.Redis.Enabled {
		redis = fmt.Sprintf("%s channel %q key %q", cfg.Redis.Addr, cfg.Redis.Channel, cfg.Redis.LatestKey)
	}
	metrics := "off"
	if cfg.Metrics.Addr != "" {
		metrics = cfg.Metrics.Addr
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"pair", fmt.Sprintf("%s (%s), %dm candles", cfg.Instrument.Pair, cfg.Instrument.RESTPair, cfg.Instrument.Interval)},
		{"mode", mode},
		{"window", fmt.Sprintf("%d bars", cfg.Strategy.BarCount)},
		{"targets", fmt.Sprintf("take profit %.2f%%, stop loss %.2f%%", cfg.Strategy.ProfitTarget*100, cfg.Strategy.StopLoss*100)},
		{"entry refresh", refresh.String()},
		{"journal", journal},
		{"redis", redis},
		{"metrics", metrics},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}
