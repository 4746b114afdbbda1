package sim

import (
	"fmt"

	"github.com/rustyeddy/srtrader/market"
)

// Params configures Reduce.
type Params struct {
	// ProfitTarget and StopLoss are fractional distances from the entry
	// level, e.g. 0.005 for half a percent.
	ProfitTarget float64
	StopLoss     float64

	// ClearEntryOnExit also drops both entry levels when a position closes.
	// By default entries survive an exit and the next cycle may re-arm an
	// order at the same level.
	ClearEntryOnExit bool

	// FirstClose enables the buy-and-hold benchmark (backtest only).
	FirstClose *float64
}

func (p Params) Validate() error {
	if p.ProfitTarget <= 0 {
		return fmt.Errorf("profit target must be positive, got %v", p.ProfitTarget)
	}
	if p.StopLoss <= 0 || p.StopLoss >= 1 {
		return fmt.Errorf("stop loss must be in (0, 1), got %v", p.StopLoss)
	}
	return nil
}

// targets returns take profit and stop loss for a fill of side at entry.
// A short's target sits below the entry and its stop above.
func (p Params) targets(side Side, entry float64) (tp, sl float64) {
	if side == Short {
		return entry * (1 - p.ProfitTarget), entry * (1 + p.StopLoss)
	}
	return entry * (1 + p.ProfitTarget), entry * (1 - p.StopLoss)
}

// Reduce applies candle c to s and returns the next state with the
// transitions that happened.
//
// Steps run in fixed priority and the first exit or fill ends the cycle:
// take profit (long, short), stop loss (long, short), fill (long, short).
// Otherwise, while flat, each side with an entry rests or re-quotes its
// order at the entry price.
func Reduce(s State, c market.Candle, p Params) (State, []Event) {
	next := s
	if p.FirstClose != nil {
		next.PnL.HoldBenchmark = c.Close - *p.FirstClose
	}

	events := step(&next, c, p)

	next.PnL.Current = 0
	if next.HasPosition() {
		if b := next.Book(next.Position); b.OpenOrder != nil {
			next.PnL.Current = UnrealizedPL(next.Position, *b.OpenOrder, c.Close)
		}
	}
	return next, events
}

func step(s *State, c market.Candle, p Params) []Event {
	if s.HasPosition() {
		side := s.Position
		b := s.Book(side)
		for _, exit := range [...]struct {
			kind  EventKind
			hit   func(Side, Book, market.Candle) bool
			level *float64
		}{
			{TakeProfit, hitTakeProfit, b.TakeProfit},
			{StopLoss, hitStopLoss, b.StopLoss},
		} {
			if b.OpenOrder == nil || !exit.hit(side, b, c) {
				continue
			}
			ev := Event{
				Kind:      exit.kind,
				Side:      side,
				Timestamp: c.Timestamp,
				Price:     *exit.level,
				Order:     *b.OpenOrder,
				Realized:  realizedPL(side, *b.OpenOrder, *exit.level),
				OpenedAt:  s.OpenedAt,
			}
			s.PnL.Running += ev.Realized
			reset(s, p)
			return []Event{ev}
		}
		return nil
	}

	for _, side := range Sides {
		b := s.book(side)
		if !hitOrder(side, *b, c) {
			continue
		}
		tp, sl := p.targets(side, b.Entry.Price)
		b.TakeProfit = price(tp)
		b.StopLoss = price(sl)
		s.Position = side
		s.OpenedAt = c.Timestamp
		return []Event{{
			Kind:      Filled,
			Side:      side,
			Timestamp: c.Timestamp,
			Price:     *b.OpenOrder,
		}}
	}

	var events []Event
	for _, side := range Sides {
		b := s.book(side)
		if b.Entry == nil {
			continue
		}
		level := b.Entry.Price
		switch {
		case b.OpenOrder == nil:
			events = append(events, Event{Kind: OrderPlaced, Side: side, Timestamp: c.Timestamp, Price: level})
		case *b.OpenOrder != level:
			events = append(events, Event{Kind: OrderMoved, Side: side, Timestamp: c.Timestamp, Price: level, Order: *b.OpenOrder})
		default:
			continue
		}
		b.OpenOrder = price(level)
	}
	return events
}

// reset flattens both sides after an exit.
func reset(s *State, p Params) {
	s.Long.clearOrders()
	s.Short.clearOrders()
	s.Position = None
	s.OpenedAt = 0
	if p.ClearEntryOnExit {
		s.Long.Entry = nil
		s.Short.Entry = nil
	}
}
