package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/srtrader/config"
	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/replay"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical candles through the strategy",
	Long: `Backtest seeds the window with the first bar-count candles and replays the
rest one at a time, paced by --delay. Use --delay 0 for an unpaced run.

Candles come from --data (Kraken OHLC JSON or CSV) or, when no data file is
given, from the Kraken REST API.

Example:
  srtrader backtest --data data/xbtusd.json --delay 0 --org session.org`,
	RunE: runBacktest,
}

var (
	btDataPath     string
	btDelay        time.Duration
	btBarCount     int
	btProfitTarget float64
	btStopLoss     float64
	btRefresh      string
	btJournal      string
	btDBPath       string
	btOrgPath      string
	btExclude      bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btDataPath, "data", "", "historical data file (.json Kraken OHLC or .csv)")
	backtestCmd.Flags().DurationVar(&btDelay, "delay", 100*time.Millisecond, "pause before each replayed candle (0 = unpaced)")
	backtestCmd.Flags().IntVarP(&btBarCount, "bar-count", "n", 120, "candles in the rolling window")
	backtestCmd.Flags().Float64Var(&btProfitTarget, "profit-target", 0.005, "take profit distance as a fraction of entry")
	backtestCmd.Flags().Float64Var(&btStopLoss, "stop-loss", 0.005, "stop loss distance as a fraction of entry")
	backtestCmd.Flags().StringVar(&btRefresh, "entry-refresh", "", "entry refresh policy (always, when-absent)")
	backtestCmd.Flags().StringVar(&btJournal, "journal", "", "journal type (sqlite, csv, none)")
	backtestCmd.Flags().StringVarP(&btDBPath, "db", "d", "", "path to SQLite journal DB")
	backtestCmd.Flags().StringVar(&btOrgPath, "org", "", "write an Org-mode session report to this path")
	backtestCmd.Flags().BoolVar(&btExclude, "exclude-forming-bar", false, "ignore pivots that depend on the newest bar")
}

// applyBacktestFlags overrides cfg with the flags the user set.
func applyBacktestFlags(cmd *cobra.Command, cfg *config.Config) {
	cfg.Replay.Backtest = true
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Replay.DataFile = btDataPath
	}
	if flags.Changed("delay") {
		cfg.Replay.DelayMS = int(btDelay / time.Millisecond)
		cfg.Replay.StepMS = 0
	}
	if flags.Changed("bar-count") {
		cfg.Strategy.BarCount = btBarCount
	}
	if flags.Changed("profit-target") {
		cfg.Strategy.ProfitTarget = btProfitTarget
	}
	if flags.Changed("stop-loss") {
		cfg.Strategy.StopLoss = btStopLoss
	}
	if flags.Changed("entry-refresh") {
		cfg.Strategy.EntryRefresh = btRefresh
	}
	if flags.Changed("journal") {
		cfg.Journal.Type = btJournal
	}
	if flags.Changed("db") {
		cfg.Journal.DBPath = btDBPath
	}
	if flags.Changed("exclude-forming-bar") {
		cfg.Strategy.ExcludeFormingBar = btExclude
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cmd, cfg)
	if err := validate(cfg); err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	candles, dataset, err := loadCandles(ctx, cfg, log)
	if err != nil {
		return err
	}

	driver, err := replay.New(candles, replay.Options{BarCount: cfg.Strategy.BarCount, Delay: cfg.Delay()})
	if err != nil {
		return err
	}
	if driver.Remaining() == 0 {
		log.Warn().Int("candles", len(candles)).Int("bar_count", cfg.Strategy.BarCount).Msg("nothing to replay after seeding")
	}

	sess, err := openSession(ctx, cfg, log, "backtest")
	if err != nil {
		return err
	}
	defer sess.close()

	firstClose := driver.First().Close
	p, err := sess.newPipeline(&firstClose)
	if err != nil {
		return err
	}
	if err := p.Seed(driver.Seed()); err != nil {
		return err
	}

	out := make(chan market.Candle)
	replayErr := make(chan error, 1)
	go func() {
		replayErr <- driver.Run(ctx, out)
		close(out)
	}()

	runErr := p.RunCandles(ctx, out)
	if err := <-replayErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay: %w", err)
	}
	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		return runErr
	}
	if interrupted {
		log.Warn().Msg("interrupted, summarizing partial run")
	}

	ledger := p.Ledger()
	r := replay.NewResult(&ledger, p.State())
	r.Dataset = dataset
	r.Candles = p.Candles()
	r.Start = driver.First().Time()
	r.End = p.Snapshot().Candle.Time()
	return sess.finish(p, r, btOrgPath)
}
