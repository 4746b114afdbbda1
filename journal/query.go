package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `trade_id, session_id, instrument, side, entry_price, exit_price, open_time, close_time, realized_pl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.SessionID,
		&rec.Instrument,
		&rec.Side,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.listTrades(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
}

// ListTradesBySession returns the trades of one session in close order.
func (j *SQLite) ListTradesBySession(sessionID string) ([]TradeRecord, error) {
	return j.listTrades(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE session_id = ?
		ORDER BY close_time ASC`, sessionID)
}

func (j *SQLite) listTrades(query string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPnLBySession returns the PnL curve of one session in time order.
func (j *SQLite) ListPnLBySession(sessionID string) ([]PnLSnapshot, error) {
	rows, err := j.db.Query(`
		SELECT session_id, time, running, current, hold_benchmark, position
		FROM pnl
		WHERE session_id = ?
		ORDER BY time ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PnLSnapshot
	for rows.Next() {
		var p PnLSnapshot
		if err := rows.Scan(&p.SessionID, &p.Time, &p.Running, &p.Current, &p.HoldBenchmark, &p.Position); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns one session row.
func (j *SQLite) GetSession(sessionID string) (Session, error) {
	var s Session
	err := j.db.QueryRow(`
		SELECT session_id, created, mode, instrument, dataset, profit_target, stop_loss, bar_count,
		       start_time, end_time, candles, trades, wins, losses, running_pl, hold_pl
		FROM sessions
		WHERE session_id = ?`, sessionID).Scan(
		&s.SessionID, &s.Created, &s.Mode, &s.Instrument, &s.Dataset, &s.ProfitTarget, &s.StopLoss, &s.BarCount,
		&s.Start, &s.End, &s.Candles, &s.Trades, &s.Wins, &s.Losses, &s.RunningPL, &s.HoldPL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, fmt.Errorf("session %q not found", sessionID)
		}
		return Session{}, err
	}
	return s, nil
}

// Summary aggregates closed trades.
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	NetPL        float64
	GrossProfit  float64
	GrossLoss    float64
	ProfitFactor float64
}

// SummarizeTrades aggregates trades closed within [start, end).
func (j *SQLite) SummarizeTrades(start, end time.Time) (Summary, error) {
	var s Summary
	err := j.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN realized_pl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN realized_pl <= 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(realized_pl), 0),
			COALESCE(SUM(CASE WHEN realized_pl > 0 THEN realized_pl ELSE 0 END), 0),
			COALESCE(-SUM(CASE WHEN realized_pl < 0 THEN realized_pl ELSE 0 END), 0)
		FROM trades
		WHERE close_time >= ? AND close_time < ?`, start, end).Scan(
		&s.Trades, &s.Wins, &s.Losses, &s.NetPL, &s.GrossProfit, &s.GrossLoss,
	)
	if err != nil {
		return Summary{}, err
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s, nil
}

// Summarize aggregates trades already loaded in memory.
func Summarize(trades []TradeRecord) Summary {
	var s Summary
	for _, t := range trades {
		s.Trades++
		s.NetPL += t.RealizedPL
		if t.RealizedPL > 0 {
			s.Wins++
			s.GrossProfit += t.RealizedPL
		} else {
			s.Losses++
			s.GrossLoss -= t.RealizedPL
		}
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}
