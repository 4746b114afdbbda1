package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rustyeddy/srtrader/config"
	"github.com/rustyeddy/srtrader/indicators"
	"github.com/rustyeddy/srtrader/internal/id"
	"github.com/rustyeddy/srtrader/journal"
	"github.com/rustyeddy/srtrader/kraken"
	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/metrics"
	"github.com/rustyeddy/srtrader/pipeline"
	"github.com/rustyeddy/srtrader/publish"
	"github.com/rustyeddy/srtrader/replay"
	"github.com/rustyeddy/srtrader/sim"
	"github.com/rustyeddy/srtrader/strategies"
)

// session owns everything one backtest or live run writes to.
type session struct {
	id      string
	mode    string
	created time.Time
	cfg     *config.Config
	log     zerolog.Logger

	journal journal.Journal
	metrics *metrics.Metrics
	redis   *redis.Client
	server  *http.Server
	sinks   []pipeline.Sink
}

func openSession(ctx context.Context, cfg *config.Config, log zerolog.Logger, mode string) (*session, error) {
	s := &session{
		id:      id.New(),
		mode:    mode,
		created: time.Now().UTC(),
		cfg:     cfg,
		log:     log,
	}

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.DBPath, cfg.Journal.TradesFile, cfg.Journal.PnLFile)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	s.journal = j
	s.sinks = append(s.sinks,
		pipeline.NewLogSink(log),
		pipeline.NewJournalSink(j, s.id, cfg.Instrument.Pair),
	)

	if cfg.Metrics.Addr != "" {
		s.metrics = metrics.New()
		s.sinks = append(s.sinks, s.metrics)
		s.serveMetrics()
	}

	if cfg.Redis.Enabled {
		client, err := publish.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			s.close()
			return nil, err
		}
		s.redis = client
		opts := publish.Options{
			Channel:   cfg.Redis.Channel,
			LatestKey: cfg.Redis.LatestKey,
			Logger:    log,
		}
		if s.metrics != nil {
			opts.OnError = func(error) { s.metrics.PublishFailures.Inc() }
		}
		s.sinks = append(s.sinks, publish.NewRedis(client, opts))
	}

	log.Info().
		Str("session", s.id).
		Str("mode", mode).
		Str("pair", cfg.Instrument.Pair).
		Str("journal", cfg.Journal.Type).
		Bool("redis", cfg.Redis.Enabled).
		Str("metrics", cfg.Metrics.Addr).
		Msg("session started")
	return s, nil
}

func (s *session) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.server = &http.Server{Addr: s.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Str("addr", s.cfg.Metrics.Addr).Msg("metrics server")
		}
	}()
}

// newPipeline builds a pipeline with the session sinks.
func (s *session) newPipeline(firstClose *float64) (*pipeline.Pipeline, error) {
	refresh, err := strategies.RefreshByName(s.cfg.Strategy.EntryRefresh, s.cfg.Replay.Backtest)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Config{
		Pair:     s.cfg.Instrument.Pair,
		BarCount: s.cfg.Strategy.BarCount,
		Levels:   indicators.LevelOptions{ExcludeFormingBar: s.cfg.Strategy.ExcludeFormingBar},
		Params: sim.Params{
			ProfitTarget:     s.cfg.Strategy.ProfitTarget,
			StopLoss:         s.cfg.Strategy.StopLoss,
			ClearEntryOnExit: s.cfg.Strategy.ClearEntryOnExit,
			FirstClose:       firstClose,
		},
		Refresh: refresh,
		Logger:  s.log,
	}, s.sinks...)
}

// finish records the session row and prints the summary.
func (s *session) finish(p *pipeline.Pipeline, r replay.Result, orgPath string) error {
	r.Mode = s.mode
	r.SessionID = s.id
	r.Instrument = s.cfg.Instrument.Pair

	ledger := p.Ledger()
	closed := make([]journal.TradeRecord, 0, len(ledger.Trades))
	for _, t := range ledger.Trades {
		closed = append(closed, pipeline.TradeRecord(t, s.id, s.cfg.Instrument.Pair))
	}

	row := journal.Session{
		SessionID:    s.id,
		Created:      s.created,
		Mode:         s.mode,
		Instrument:   r.Instrument,
		Dataset:      r.Dataset,
		ProfitTarget: s.cfg.Strategy.ProfitTarget,
		StopLoss:     s.cfg.Strategy.StopLoss,
		BarCount:     s.cfg.Strategy.BarCount,
		Start:        r.Start,
		End:          r.End,
		Candles:      r.Candles,
		Trades:       r.Trades,
		Wins:         r.Wins,
		Losses:       r.Losses,
		RunningPL:    r.Running,
		HoldPL:       r.HoldBenchmark,
	}
	if rec, ok := s.journal.(journal.SessionRecorder); ok {
		if err := rec.RecordSession(row); err != nil {
			s.log.Error().Err(err).Msg("record session")
		}
	}

	if orgPath != "" {
		report := journal.SessionReport{Session: row, Summary: journal.Summarize(closed), Closed: closed}
		if err := journal.WriteSessionOrg(orgPath, report); err != nil {
			return fmt.Errorf("write org report: %w", err)
		}
		s.log.Info().Str("path", orgPath).Msg("org report written")
	}

	replay.PrintResult(os.Stdout, r)
	return nil
}

func (s *session) close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.server.Shutdown(ctx)
		cancel()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.log.Error().Err(err).Msg("close journal")
		}
	}
}

// loadCandles reads the configured data file, or fetches from the Kraken
// REST API when none is set.
func loadCandles(ctx context.Context, cfg *config.Config, log zerolog.Logger) ([]market.Candle, string, error) {
	var (
		candles []market.Candle
		skipped []error
		dataset string
	)

	switch path := cfg.Replay.DataFile; {
	case path != "" && strings.EqualFold(filepath.Ext(path), ".csv"):
		c, sk, err := replay.LoadCSV(path)
		if err != nil {
			return nil, "", err
		}
		candles, skipped, dataset = c, sk, path
	case path != "":
		resp, err := kraken.LoadFile(path)
		if err != nil {
			return nil, "", err
		}
		candles, skipped, dataset = resp.Candles, resp.Skipped, path
	default:
		client := kraken.NewClient(cfg.Feed.RESTURL)
		resp, err := client.OHLC(ctx, kraken.OHLCRequest{Pair: cfg.Instrument.RESTPair, Interval: cfg.Instrument.Interval})
		if err != nil {
			return nil, "", fmt.Errorf("fetch ohlc: %w", err)
		}
		candles, skipped, dataset = resp.Candles, resp.Skipped, "kraken:"+resp.Key
	}

	for _, err := range skipped {
		log.Warn().Err(err).Str("dataset", dataset).Msg("candle dropped")
	}
	if len(candles) == 0 {
		return nil, "", fmt.Errorf("%s: no usable candles", dataset)
	}
	log.Info().Int("candles", len(candles)).Int("dropped", len(skipped)).Str("dataset", dataset).Msg("candles loaded")
	return candles, dataset, nil
}
