// Package strategies selects entry levels and decides when they are
// refreshed.
package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/srtrader/indicators"
	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/sim"
)

// Refresh is the policy for re-selecting entry levels on each candle.
type Refresh int

const (
	// RefreshAlways re-selects both entries on every candle while flat. An
	// entry may disappear when no level qualifies. Used for backtests.
	RefreshAlways Refresh = iota

	// RefreshWhenAbsent selects an entry only for a side that has none.
	// Used for live trading.
	RefreshWhenAbsent
)

func (r Refresh) String() string {
	switch r {
	case RefreshAlways:
		return "always"
	case RefreshWhenAbsent:
		return "when-absent"
	default:
		return fmt.Sprintf("refresh(%d)", int(r))
	}
}

// RefreshByName parses a policy name. An empty name picks the mode default.
func RefreshByName(name string, backtest bool) (Refresh, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		if backtest {
			return RefreshAlways, nil
		}
		return RefreshWhenAbsent, nil
	case "always", "every-candle":
		return RefreshAlways, nil
	case "when-absent", "absent", "once":
		return RefreshWhenAbsent, nil
	default:
		return 0, fmt.Errorf("unknown entry refresh %q (supported: always, when-absent)", name)
	}
}

// Apply returns st with entries re-selected from lv, the levels of the
// window whose newest bar is last. next is the candle about to be traded: a
// side whose resting order next touches keeps its entry, so the fill and
// its targets come from the level that was quoted.
func (r Refresh) Apply(st sim.State, last market.Candle, lv indicators.Levels, next market.Candle) sim.State {
	for _, side := range sim.Sides {
		switch r {
		case RefreshAlways:
			if st.HasPosition() {
				return st
			}
		case RefreshWhenAbsent:
			if st.Book(side).Entry != nil {
				continue
			}
		}
		if st.OrderTouched(side, next) {
			continue
		}

		if e, ok := findEntry(side, last, lv); ok {
			st = st.WithEntry(side, &e)
		} else {
			st = st.WithEntry(side, nil)
		}
	}
	return st
}

func findEntry(side sim.Side, c market.Candle, lv indicators.Levels) (market.PivotLevel, bool) {
	if side == sim.Short {
		return FindEntryShort(c, lv)
	}
	return FindEntryLong(c, lv)
}
