package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/srtrader/kraken"
	"github.com/rustyeddy/srtrader/replay"
	"github.com/spf13/cobra"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Paper trade the Kraken OHLC WebSocket feed",
	Long: `Live seeds the window from the Kraken REST API (or --data), then subscribes
to the OHLC channel and trades every update until interrupted.

Example:
  srtrader live --metrics :9102 --redis localhost:6379`,
	RunE: runLive,
}

var (
	liveMetricsAddr string
	liveRedisAddr   string
	liveDataPath    string
	liveRefresh     string
	liveOrgPath     string
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVar(&liveMetricsAddr, "metrics", "", "serve Prometheus metrics on this address")
	liveCmd.Flags().StringVar(&liveRedisAddr, "redis", "", "publish snapshots to this Redis address")
	liveCmd.Flags().StringVar(&liveDataPath, "data", "", "seed from a data file instead of the REST API")
	liveCmd.Flags().StringVar(&liveRefresh, "entry-refresh", "", "entry refresh policy (always, when-absent)")
	liveCmd.Flags().StringVar(&liveOrgPath, "org", "", "write an Org-mode session report on exit")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Replay.Backtest = false
	flags := cmd.Flags()
	if flags.Changed("metrics") {
		cfg.Metrics.Addr = liveMetricsAddr
	}
	if flags.Changed("redis") {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = liveRedisAddr
	}
	if flags.Changed("data") {
		cfg.Replay.DataFile = liveDataPath
	}
	if flags.Changed("entry-refresh") {
		cfg.Strategy.EntryRefresh = liveRefresh
	}
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
	// The newest REST bar is still forming; the stream delivers it.
	if len(candles) > 1 {
		candles = candles[:len(candles)-1]
	}

	sess, err := openSession(ctx, cfg, log, "live")
	if err != nil {
		return err
	}
	defer sess.close()

	p, err := sess.newPipeline(nil)
	if err != nil {
		return err
	}
	if err := p.Seed(candles); err != nil {
		return err
	}
	start := p.Snapshot().Candle.Time()

	stream, err := kraken.NewStream(kraken.StreamConfig{
		URL:               cfg.Feed.WSURL,
		Pair:              cfg.Instrument.Pair,
		Interval:          cfg.Instrument.Interval,
		ReconnectDelay:    cfg.ReconnectDelay(),
		MaxReconnectDelay: cfg.MaxReconnectDelay(),
		StaleAfter:        cfg.StaleAfter(),
		Logger:            log,
	})
	if err != nil {
		return err
	}
	if sess.metrics != nil {
		stream.OnReconnect = sess.metrics.WSReconnects.Inc
	}

	msgs := make(chan []byte, 64)
	go func() {
		if err := stream.Start(ctx, msgs); err != nil {
			log.Error().Err(err).Msg("stream stopped")
		}
	}()

	if err := p.RunMessages(ctx, msgs); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Int("candles", p.Candles()).Msg("live session stopped")

	ledger := p.Ledger()
	r := replay.NewResult(&ledger, p.State())
	r.Dataset = dataset
	r.Candles = p.Candles()
	r.Start = start
	r.End = p.Snapshot().Candle.Time()
	return sess.finish(p, r, liveOrgPath)
}
