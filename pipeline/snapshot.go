package pipeline

import (
	"github.com/rustyeddy/srtrader/indicators"
	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/sim"
)

// Snapshot is the read-only view of the pipeline after one candle. While a
// position is held only the held side's book is shown.
type Snapshot struct {
	Seq       int               `json:"seq"`
	Timestamp int64             `json:"timestamp"`
	Candle    market.Candle     `json:"candle"`
	Window    int               `json:"window"`
	Levels    indicators.Levels `json:"levels"`

	Position sim.Side  `json:"position"`
	Long     *sim.Book `json:"long,omitempty"`
	Short    *sim.Book `json:"short,omitempty"`
	PnL      sim.PnL   `json:"pnl"`

	Events []sim.Event `json:"events,omitempty"`
	Closed []sim.Trade `json:"closed,omitempty"`

	Trades int `json:"trades"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Book returns the visible book of side, nil when hidden.
func (s Snapshot) Book(side sim.Side) *sim.Book {
	if side == sim.Short {
		return s.Short
	}
	return s.Long
}

type snapshotBase struct {
	candle market.Candle
	events []sim.Event
	closed []sim.Trade
}

// snapshot projects the current state. Caller holds p.mu.
func (p *Pipeline) snapshot() Snapshot {
	st := p.state
	snap := Snapshot{
		Seq:       p.seq,
		Timestamp: p.last.candle.Timestamp,
		Candle:    p.last.candle,
		Window:    p.series.Len(),
		Levels:    p.levels,
		Position:  st.Position,
		PnL:       st.PnL,
		Events:    p.last.events,
		Closed:    p.last.closed,
		Trades:    len(p.ledger.Trades),
		Wins:      p.ledger.Wins,
		Losses:    p.ledger.Losses,
	}

	if st.Position != sim.Short {
		b := st.Long
		snap.Long = &b
	}
	if st.Position != sim.Long {
		b := st.Short
		snap.Short = &b
	}
	return snap
}
