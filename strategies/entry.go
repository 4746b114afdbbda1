package strategies

import (
	"sort"

	"github.com/rustyeddy/srtrader/indicators"
	"github.com/rustyeddy/srtrader/market"
)

// FindEntryLong returns the highest support strictly below the candle low.
func FindEntryLong(c market.Candle, lv indicators.Levels) (market.PivotLevel, bool) {
	support := sorted(lv.Support, func(a, b float64) bool { return a > b })
	for _, s := range support {
		if s.Price < c.Low {
			return s, true
		}
	}
	return market.PivotLevel{}, false
}

// FindEntryShort returns the lowest resistance strictly above the candle
// high.
func FindEntryShort(c market.Candle, lv indicators.Levels) (market.PivotLevel, bool) {
	resistance := sorted(lv.Resistance, func(a, b float64) bool { return a < b })
	for _, r := range resistance {
		if r.Price > c.High {
			return r, true
		}
	}
	return market.PivotLevel{}, false
}

// sorted returns a stably sorted copy; the caller's slice keeps its order.
func sorted(levels []market.PivotLevel, less func(a, b float64) bool) []market.PivotLevel {
	out := make([]market.PivotLevel, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i].Price, out[j].Price) })
	return out
}
