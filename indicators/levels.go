package indicators

import (
	"fmt"
	"math"
	"sort"

	"github.com/rustyeddy/srtrader/market"
)

// Levels holds deduplicated support and resistance prices. Support is
// ordered ascending and Resistance descending, the order used to dedup them.
type Levels struct {
	Support    []market.PivotLevel `json:"support"`
	Resistance []market.PivotLevel `json:"resistance"`
}

// Empty reports whether no level of either kind was found.
func (lv Levels) Empty() bool {
	return len(lv.Support) == 0 && len(lv.Resistance) == 0
}

// LevelOptions tunes pivot detection.
type LevelOptions struct {
	// ExcludeFormingBar drops the last candidate index whose right-hand
	// neighbours include the newest, possibly still forming, bar.
	ExcludeFormingBar bool

	// Spacing is the dedup distance in multiples of the average bar range.
	// Zero means 2.
	Spacing float64
}

func (o LevelOptions) spacing() float64 {
	if o.Spacing <= 0 {
		return 2
	}
	return o.Spacing
}

// FindSupportAndResistance scans window for pivot lows and highs.
//
// A support pivot at i has low[i] <= low[i-1], low[i-2] and
// low[i] < low[i+1], low[i+2]; resistance mirrors this on highs. Supports
// are sorted ascending and resistances descending, then each list keeps a
// pivot only if it sits more than Spacing x averageBarRange from every
// level already kept.
//
// Windows shorter than MinWindow return ErrInsufficientData and empty
// Levels. window is not modified.
func FindSupportAndResistance(window []market.Candle, opts LevelOptions) (Levels, error) {
	n := len(window)
	if n < MinWindow {
		return Levels{}, fmt.Errorf("%w: need %d candles, got %d", ErrInsufficientData, MinWindow, n)
	}

	last := n - 3
	if opts.ExcludeFormingBar {
		last--
	}

	var support, resistance []market.PivotLevel
	for i := 2; i <= last; i++ {
		if isPivotLow(window, i) {
			support = append(support, market.PivotLevel{Timestamp: window[i].Timestamp, Price: window[i].Low})
		}
		if isPivotHigh(window, i) {
			resistance = append(resistance, market.PivotLevel{Timestamp: window[i].Timestamp, Price: window[i].High})
		}
	}

	sort.SliceStable(support, func(a, b int) bool { return support[a].Price < support[b].Price })
	sort.SliceStable(resistance, func(a, b int) bool { return resistance[a].Price > resistance[b].Price })

	avg, err := AverageBarRange(window)
	if err != nil {
		return Levels{}, err
	}
	minDist := opts.spacing() * avg

	return Levels{
		Support:    dedup(support, minDist),
		Resistance: dedup(resistance, minDist),
	}, nil
}

func isPivotLow(w []market.Candle, i int) bool {
	l := w[i].Low
	return w[i-2].Low >= l && w[i-1].Low >= l &&
		w[i+1].Low > l && w[i+2].Low > l
}

func isPivotHigh(w []market.Candle, i int) bool {
	h := w[i].High
	return w[i-2].High <= h && w[i-1].High <= h &&
		w[i+1].High < h && w[i+2].High < h
}

// dedup keeps a level only when it is farther than minDist from all kept
// levels. Earlier levels win.
func dedup(levels []market.PivotLevel, minDist float64) []market.PivotLevel {
	if len(levels) == 0 {
		return nil
	}

	kept := make([]market.PivotLevel, 0, len(levels))
	for _, lv := range levels {
		unique := true
		for _, k := range kept {
			if math.Abs(lv.Price-k.Price) <= minDist {
				unique = false
				break
			}
		}
		if unique {
			kept = append(kept, lv)
		}
	}
	return kept
}
