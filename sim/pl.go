package sim

// realizedPL is the one-lot profit of closing side at exit after filling at
// order. Positive is profit.
func realizedPL(side Side, order, exit float64) float64 {
	if side == Short {
		return order - exit
	}
	return exit - order
}

// UnrealizedPL is the mark-to-close profit of an open position.
func UnrealizedPL(side Side, order, close float64) float64 {
	return side.sign() * (close - order)
}
