package sim

import "github.com/rustyeddy/srtrader/market"

// hitTakeProfit: long exits when the high reaches the target, short when
// the low does.
func hitTakeProfit(side Side, b Book, c market.Candle) bool {
	if b.TakeProfit == nil {
		return false
	}
	if side == Long {
		return c.High >= *b.TakeProfit
	}
	return c.Low <= *b.TakeProfit
}

func hitStopLoss(side Side, b Book, c market.Candle) bool {
	if b.StopLoss == nil {
		return false
	}
	if side == Long {
		return c.Low <= *b.StopLoss
	}
	return c.High >= *b.StopLoss
}

// hitOrder reports whether a resting order at the entry level is touched.
func hitOrder(side Side, b Book, c market.Candle) bool {
	if b.Entry == nil || b.OpenOrder == nil {
		return false
	}
	if side == Long {
		return c.Low <= *b.OpenOrder
	}
	return c.High >= *b.OpenOrder
}
