package sim

import "fmt"

// EventKind labels a state transition produced by Reduce.
type EventKind string

const (
	OrderPlaced EventKind = "order_placed"
	OrderMoved  EventKind = "order_moved"
	Filled      EventKind = "filled"
	TakeProfit  EventKind = "take_profit"
	StopLoss    EventKind = "stop_loss"
)

// Event describes one transition. For exits, Price is the exit level,
// Order the filled order price and Realized the booked PnL.
type Event struct {
	Kind      EventKind `json:"kind"`
	Side      Side      `json:"side"`
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Order     float64   `json:"order,omitempty"`
	Realized  float64   `json:"realized,omitempty"`
	OpenedAt  int64     `json:"opened_at,omitempty"`
}

// IsExit reports whether e closed a position.
func (e Event) IsExit() bool {
	return e.Kind == TakeProfit || e.Kind == StopLoss
}

func (e Event) String() string {
	if e.IsExit() {
		return fmt.Sprintf("%s %s at %g (order %g, pnl %g)", e.Side, e.Kind, e.Price, e.Order, e.Realized)
	}
	return fmt.Sprintf("%s %s at %g", e.Side, e.Kind, e.Price)
}
