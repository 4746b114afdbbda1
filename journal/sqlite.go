package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, session_id, instrument, side, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.SessionID, t.Instrument, t.Side, t.EntryPrice,
		t.ExitPrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLite) RecordPnL(p PnLSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO pnl
		(session_id, time, running, current, hold_benchmark, position)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.Time, p.Running, p.Current, p.HoldBenchmark, p.Position,
	)
	return err
}

// RecordSession inserts or replaces the session row.
func (j *SQLite) RecordSession(s Session) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO sessions
		(session_id, created, mode, instrument, dataset, profit_target, stop_loss, bar_count,
		 start_time, end_time, candles, trades, wins, losses, running_pl, hold_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Created, s.Mode, s.Instrument, s.Dataset, s.ProfitTarget, s.StopLoss, s.BarCount,
		s.Start, s.End, s.Candles, s.Trades, s.Wins, s.Losses, s.RunningPL, s.HoldPL,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
