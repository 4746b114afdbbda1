package sim

import "github.com/rustyeddy/srtrader/market"

// Book is the order bookkeeping of one side. Nil pointers are absent values.
//
// A book is NO_ENTRY without Entry, PENDING_ORDER once OpenOrder rests at
// the entry price, and IN_POSITION when State.Position names its side.
type Book struct {
	Entry      *market.PivotLevel `json:"entry,omitempty"`
	OpenOrder  *float64           `json:"open_order,omitempty"`
	TakeProfit *float64           `json:"take_profit,omitempty"`
	StopLoss   *float64           `json:"stop_loss,omitempty"`
}

// clearOrders drops order, take profit and stop loss, keeping the entry.
func (b *Book) clearOrders() {
	b.OpenOrder = nil
	b.TakeProfit = nil
	b.StopLoss = nil
}

// PnL tracks realized and unrealized profit in price units of one lot.
type PnL struct {
	Running       float64 `json:"running"`
	Current       float64 `json:"current"`
	HoldBenchmark float64 `json:"hold_benchmark"`
}

// State is the full paper trading state threaded through Reduce. It is a
// value: Reduce never mutates the state it receives, and pointer fields are
// replaced rather than written through.
type State struct {
	Long  Book `json:"long"`
	Short Book `json:"short"`

	// Position is the side currently held, None when flat. Only one side
	// can be in position at a time.
	Position Side `json:"position"`

	// OpenedAt is the timestamp of the candle that filled the position.
	OpenedAt int64 `json:"opened_at,omitempty"`

	PnL PnL `json:"pnl"`
}

// HasPosition reports whether either side is in position.
func (s State) HasPosition() bool {
	return s.Position != None
}

// Book returns the bookkeeping of side.
func (s State) Book(side Side) Book {
	if side == Short {
		return s.Short
	}
	return s.Long
}

func (s *State) book(side Side) *Book {
	if side == Short {
		return &s.Short
	}
	return &s.Long
}

// WithEntry returns a copy of s with the entry of side replaced. Clearing
// the entry also withdraws the order resting at it.
func (s State) WithEntry(side Side, entry *market.PivotLevel) State {
	b := s.book(side)
	if entry == nil {
		b.Entry = nil
		b.OpenOrder = nil
		return s
	}
	e := *entry
	b.Entry = &e
	return s
}

// OrderTouched reports whether c reaches the order resting on side.
func (s State) OrderTouched(side Side, c market.Candle) bool {
	return hitOrder(side, s.Book(side), c)
}

func price(v float64) *float64 {
	return &v
}
