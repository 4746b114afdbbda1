package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// csvTable is one CSV file with a fixed header. Every row is flushed.
type csvTable struct {
	file *os.File
	w    *csv.Writer
}

func createTable(path string, header []string) (*csvTable, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t := &csvTable{file: f, w: csv.NewWriter(f)}
	if err := t.append(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	return t, nil
}

func (t *csvTable) append(row []string) error {
	if err := t.w.Write(row); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

func (t *csvTable) close() error {
	t.w.Flush()
	return errors.Join(t.w.Error(), t.file.Close())
}

var (
	csvTradeColumns = []string{
		"trade_id", "session_id", "instrument", "side",
		"opened_at", "closed_at", "held_s",
		"entry", "exit", "realized", "reason",
	}
	csvPnLColumns = []string{
		"time", "session_id", "position",
		"running", "current", "equity", "hold_benchmark",
	}
)

func (t TradeRecord) csvRow() []string {
	return []string{
		t.TradeID,
		t.SessionID,
		t.Instrument,
		t.Side,
		stamp(t.OpenTime),
		stamp(t.CloseTime),
		strconv.FormatInt(int64(t.CloseTime.Sub(t.OpenTime)/time.Second), 10),
		num(t.EntryPrice),
		num(t.ExitPrice),
		num(t.RealizedPL),
		t.Reason,
	}
}

// csvRow adds equity, the realized plus open PnL at p.Time.
func (p PnLSnapshot) csvRow() []string {
	return []string{
		stamp(p.Time),
		p.SessionID,
		p.Position,
		num(p.Running),
		num(p.Current),
		num(p.Running + p.Current),
		num(p.HoldBenchmark),
	}
}

// CSVJournal writes closed trades and per-candle PnL to two CSV files.
type CSVJournal struct {
	trades *csvTable
	pnl    *csvTable
}

func NewCSV(tradesPath, pnlPath string) (*CSVJournal, error) {
	trades, err := createTable(tradesPath, csvTradeColumns)
	if err != nil {
		return nil, err
	}
	pnl, err := createTable(pnlPath, csvPnLColumns)
	if err != nil {
		_ = trades.close()
		return nil, err
	}
	return &CSVJournal{trades: trades, pnl: pnl}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.trades.append(t.csvRow())
}

func (j *CSVJournal) RecordPnL(p PnLSnapshot) error {
	return j.pnl.append(p.csvRow())
}

func (j *CSVJournal) Close() error {
	return errors.Join(j.trades.close(), j.pnl.close())
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
