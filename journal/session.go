package journal

import "time"

// Session mirrors the sessions table: one backtest or live run.
type Session struct {
	SessionID  string
	Created    time.Time
	Mode       string // "backtest" or "live"
	Instrument string
	Dataset    string

	ProfitTarget float64
	StopLoss     float64
	BarCount     int

	Start time.Time
	End   time.Time

	Candles   int
	Trades    int
	Wins      int
	Losses    int
	RunningPL float64
	HoldPL    float64
}

// SessionRecorder is implemented by journals that keep session rows.
type SessionRecorder interface {
	RecordSession(Session) error
}
