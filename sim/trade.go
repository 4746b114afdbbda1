package sim

import (
	"time"

	"github.com/rustyeddy/srtrader/internal/id"
)

// Trade is one closed round trip.
type Trade struct {
	ID         string    `json:"id"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	OpenTime   time.Time `json:"open_time"`
	CloseTime  time.Time `json:"close_time"`
	RealizedPL float64   `json:"realized_pl"`
	Reason     string    `json:"reason"`
}

// TradeFromExit builds the closed trade described by an exit event.
func TradeFromExit(e Event) (Trade, bool) {
	if !e.IsExit() {
		return Trade{}, false
	}
	closed := time.UnixMilli(e.Timestamp).UTC()
	return Trade{
		ID:         id.At(closed),
		Side:       e.Side,
		EntryPrice: e.Order,
		ExitPrice:  e.Price,
		OpenTime:   time.UnixMilli(e.OpenedAt).UTC(),
		CloseTime:  closed,
		RealizedPL: e.Realized,
		Reason:     string(e.Kind),
	}, true
}

// Ledger accumulates closed trades for a session summary.
type Ledger struct {
	Trades []Trade
	Wins   int
	Losses int
	Net    float64
}

// Record adds every exit in events and returns the trades it created.
func (l *Ledger) Record(events []Event) []Trade {
	var out []Trade
	for _, e := range events {
		t, ok := TradeFromExit(e)
		if !ok {
			continue
		}
		l.Trades = append(l.Trades, t)
		l.Net += t.RealizedPL
		if t.RealizedPL > 0 {
			l.Wins++
		} else {
			l.Losses++
		}
		out = append(out, t)
	}
	return out
}

// WinRate is the share of winning trades in percent.
func (l *Ledger) WinRate() float64 {
	if len(l.Trades) == 0 {
		return 0
	}
	return float64(l.Wins) / float64(len(l.Trades)) * 100
}
