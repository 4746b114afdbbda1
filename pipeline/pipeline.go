// Package pipeline runs candles through ingest, level detection, entry
// selection and the position reducer, and fans the results out to sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/srtrader/indicators"
	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/sim"
	"github.com/rustyeddy/srtrader/strategies"
)

// Config wires one trading pipeline.
type Config struct {
	// Pair is the stream pair name messages must carry, e.g. "XBT/USD".
	Pair     string
	BarCount int
	Levels   indicators.LevelOptions
	Params   sim.Params
	Refresh  strategies.Refresh
	Logger   zerolog.Logger
}

// Sink receives a snapshot after every accepted candle. Sink errors are
// logged and never affect trading state.
type Sink interface {
	OnSnapshot(ctx context.Context, s Snapshot) error
}

// RejectObserver is implemented by sinks that want to hear about candles
// and messages the pipeline refused.
type RejectObserver interface {
	OnReject(ctx context.Context, err error)
}

// Pipeline owns the candle window and the trading state. Calls are
// serialized; sinks run under the same lock so they see snapshots in order
// and must not call back into the pipeline.
type Pipeline struct {
	mu sync.Mutex

	cfg    Config
	series *market.Series
	levels indicators.Levels
	state  sim.State
	ledger sim.Ledger
	last   snapshotBase
	seq    int

	sinks []Sink
	log   zerolog.Logger
}

// New validates cfg and builds an empty pipeline.
func New(cfg Config, sinks ...Sink) (*Pipeline, error) {
	if cfg.BarCount < indicators.MinWindow {
		return nil, fmt.Errorf("bar count must be at least %d, got %d", indicators.MinWindow, cfg.BarCount)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:    cfg,
		series: market.NewSeries(cfg.BarCount),
		sinks:  sinks,
		log:    cfg.Logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// AddSink appends a sink. Not safe to call while candles are flowing.
func (p *Pipeline) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Seed loads the initial window and detects levels without trading.
func (p *Pipeline) Seed(candles []market.Candle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.series.Load(candles); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	lv, err := p.detect()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	p.levels = lv
	if c, ok := p.series.Last(); ok {
		p.last.candle = c
	}

	p.log.Info().
		Int("candles", p.series.Len()).
		Int("support", len(lv.Support)).
		Int("resistance", len(lv.Resistance)).
		Msg("seeded")
	return nil
}

// detect runs level detection on the current window. A short window
// yields no levels.
func (p *Pipeline) detect() (indicators.Levels, error) {
	lv, err := indicators.FindSupportAndResistance(p.series.Candles(), p.cfg.Levels)
	if errors.Is(err, indicators.ErrInsufficientData) {
		return indicators.Levels{}, nil
	}
	return lv, err
}

// Process runs one candle through the cycle. A rejected candle returns
// the error and leaves every piece of state untouched.
func (p *Pipeline) Process(ctx context.Context, c market.Candle) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Entries are selected from the window as it stood before c.
	prev, seeded := p.series.Last()
	prevLevels := p.levels

	if err := p.series.Ingest(c); err != nil {
		p.reject(ctx, err)
		return Snapshot{}, err
	}

	lv, err := p.detect()
	if err != nil {
		return Snapshot{}, err
	}
	p.levels = lv

	st := p.state
	if seeded {
		st = p.cfg.Refresh.Apply(st, prev, prevLevels, c)
	}
	next, events := sim.Reduce(st, c, p.cfg.Params)
	p.state = next
	closed := p.ledger.Record(events)

	p.seq++
	p.last = snapshotBase{candle: c, events: events, closed: closed}
	snap := p.snapshot()

	for _, e := range events {
		p.log.Debug().Stringer("event", e).Int64("ts", e.Timestamp).Msg("transition")
	}
	p.notify(ctx, snap)
	return snap, nil
}

// HandleMessage parses a raw stream message and processes the candle it
// carries. Malformed or mismatched payloads change nothing.
func (p *Pipeline) HandleMessage(ctx context.Context, payload []byte) (Snapshot, error) {
	c, err := market.ParseStreamMessage(payload, p.cfg.Pair)
	if err != nil {
		p.mu.Lock()
		p.reject(ctx, err)
		p.mu.Unlock()
		return Snapshot{}, err
	}
	return p.Process(ctx, c)
}

// RunCandles consumes in until it is closed or ctx is done. Rejected
// candles are logged and skipped.
func (p *Pipeline) RunCandles(ctx context.Context, in <-chan market.Candle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-in:
			if !ok {
				return nil
			}
			if _, err := p.Process(ctx, c); err != nil {
				p.log.Warn().Err(err).Int64("ts", c.Timestamp).Msg("candle rejected")
			}
		}
	}
}

// RunMessages consumes raw stream messages until in is closed or ctx is
// done. Messages for other channels are skipped quietly.
func (p *Pipeline) RunMessages(ctx context.Context, in <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			_, err := p.HandleMessage(ctx, msg)
			switch {
			case err == nil:
			case errors.Is(err, market.ErrFeedMismatch):
				p.log.Debug().Err(err).Msg("message skipped")
			default:
				p.log.Warn().Err(err).Bytes("raw", msg).Msg("message rejected")
			}
		}
	}
}

// Snapshot returns the projection of the latest accepted candle.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// State returns the current trading state.
func (p *Pipeline) State() sim.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Ledger returns a copy of the closed trades so far.
func (p *Pipeline) Ledger() sim.Ledger {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.ledger
	l.Trades = append([]sim.Trade(nil), p.ledger.Trades...)
	return l
}

// Candles reports how many candles were processed after seeding.
func (p *Pipeline) Candles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func (p *Pipeline) notify(ctx context.Context, snap Snapshot) {
	for _, s := range p.sinks {
		if err := s.OnSnapshot(ctx, snap); err != nil {
			p.log.Error().Err(err).Msgf("sink %T failed", s)
		}
	}
}

func (p *Pipeline) reject(ctx context.Context, err error) {
	for _, s := range p.sinks {
		if o, ok := s.(RejectObserver); ok {
			o.OnReject(ctx, err)
		}
	}
}
