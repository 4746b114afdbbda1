// journal/journal.go
package journal

import (
	"fmt"
	"time"
)

// TradeRecord is one closed paper trade.
type TradeRecord struct {
	TradeID    string
	SessionID  string
	Instrument string
	Side       string
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// PnLSnapshot is the PnL triple at one candle.
type PnLSnapshot struct {
	SessionID     string
	Time          time.Time
	Running       float64
	Current       float64
	HoldBenchmark float64
	Position      string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordPnL(PnLSnapshot) error
	Close() error
}

// Open builds the journal named by kind: "sqlite", "csv" or "none".
func Open(kind, dbPath, tradesPath, pnlPath string) (Journal, error) {
	switch kind {
	case "sqlite":
		return NewSQLite(dbPath)
	case "csv":
		return NewCSV(tradesPath, pnlPath)
	case "none", "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q (want sqlite, csv or none)", kind)
	}
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordTrade(TradeRecord) error { return nil }
func (Noop) RecordPnL(PnLSnapshot) error   { return nil }
func (Noop) Close() error                  { return nil }
