package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/srtrader/journal"
	"github.com/rustyeddy/srtrader/sim"
)

// JournalSink writes closed trades and the PnL of every candle that
// produced a transition.
type JournalSink struct {
	j          journal.Journal
	sessionID  string
	instrument string
}

func NewJournalSink(j journal.Journal, sessionID, instrument string) *JournalSink {
	return &JournalSink{j: j, sessionID: sessionID, instrument: instrument}
}

func (s *JournalSink) OnSnapshot(_ context.Context, snap Snapshot) error {
	for _, t := range snap.Closed {
		if err := s.j.RecordTrade(TradeRecord(t, s.sessionID, s.instrument)); err != nil {
			return fmt.Errorf("record trade %s: %w", t.ID, err)
		}
	}
	if len(snap.Events) == 0 {
		return nil
	}
	if err := s.j.RecordPnL(journal.PnLSnapshot{
		SessionID:     s.sessionID,
		Time:          time.UnixMilli(snap.Timestamp).UTC(),
		Running:       snap.PnL.Running,
		Current:       snap.PnL.Current,
		HoldBenchmark: snap.PnL.HoldBenchmark,
		Position:      snap.Position.String(),
	}); err != nil {
		return fmt.Errorf("record pnl: %w", err)
	}
	return nil
}

// TradeRecord converts a closed trade to its journal row.
func TradeRecord(t sim.Trade, sessionID, instrument string) journal.TradeRecord {
	return journal.TradeRecord{
		TradeID:    t.ID,
		SessionID:  sessionID,
		Instrument: instrument,
		Side:       t.Side.String(),
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		OpenTime:   t.OpenTime,
		CloseTime:  t.CloseTime,
		RealizedPL: t.RealizedPL,
		Reason:     t.Reason,
	}
}

// LogSink logs transitions at info and every snapshot at debug.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "trades").Logger()}
}

func (s *LogSink) OnSnapshot(_ context.Context, snap Snapshot) error {
	for _, e := range snap.Events {
		ev := s.log.Info().
			Str("kind", string(e.Kind)).
			Stringer("side", e.Side).
			Float64("price", e.Price)
		if e.IsExit() {
			ev = ev.Float64("order", e.Order).
				Float64("pnl", e.Realized).
				Float64("running", snap.PnL.Running)
		}
		ev.Time("at", time.UnixMilli(e.Timestamp).UTC()).Msg(string(e.Kind))
	}

	s.log.Debug().
		Int("seq", snap.Seq).
		Float64("close", snap.Candle.Close).
		Int("support", len(snap.Levels.Support)).
		Int("resistance", len(snap.Levels.Resistance)).
		Stringer("position", snap.Position).
		Float64("current", snap.PnL.Current).
		Msg("candle")
	return nil
}

func (s *LogSink) OnReject(_ context.Context, err error) {
	s.log.Debug().Err(err).Msg("rejected")
}
