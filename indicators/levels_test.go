package indicators

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/rustyeddy/srtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fromLows builds one-minute candles with a unit range above each low.
func fromLows(lows ...float64) []market.Candle {
	out := make([]market.Candle, len(lows))
	for i, l := range lows {
		out[i] = market.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      l + 0.5,
			High:      l + 1,
			Low:       l,
			Close:     l + 0.5,
		}
	}
	return out
}

func prices(levels []market.PivotLevel) []float64 {
	out := make([]float64, len(levels))
	for i, lv := range levels {
		out[i] = lv.Price
	}
	return out
}

func TestFindSupportSingleValley(t *testing.T) {
	t.Parallel()

	window := fromLows(10, 9, 8, 7, 9, 10, 11)
	lv, err := FindSupportAndResistance(window, LevelOptions{})
	require.NoError(t, err)

	require.Len(t, lv.Support, 1)
	assert.Equal(t, 7.0, lv.Support[0].Price)
	assert.Equal(t, window[3].Timestamp, lv.Support[0].Timestamp)
	assert.Empty(t, lv.Resistance)
}

func TestFindSupportAndResistanceDedup(t *testing.T) {
	t.Parallel()

	window := fromLows(14, 12, 10, 12, 13, 12, 11, 12, 16, 17, 15, 16, 17, 18, 19)
	lv, err := FindSupportAndResistance(window, LevelOptions{})
	require.NoError(t, err)

	// 11 sits within 2 x averageBarRange (2.0) of 10 and is dropped
	assert.Equal(t, []float64{10, 15}, prices(lv.Support))
	assert.Equal(t, window[2].Timestamp, lv.Support[0].Timestamp)
	assert.Equal(t, window[10].Timestamp, lv.Support[1].Timestamp)

	assert.Equal(t, []float64{18, 14}, prices(lv.Resistance))
}

func TestFindSupportAndResistanceTiesOnLeft(t *testing.T) {
	t.Parallel()

	// equal lows before the candidate are allowed, equal lows after are not
	lv, err := FindSupportAndResistance(fromLows(7, 7, 7, 8, 9), LevelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, prices(lv.Support))

	lv, err = FindSupportAndResistance(fromLows(9, 8, 7, 7, 9), LevelOptions{})
	require.NoError(t, err)
	assert.Empty(t, lv.Support)
}

func TestFindSupportAndResistanceExcludeFormingBar(t *testing.T) {
	t.Parallel()

	window := fromLows(5, 4, 3, 4, 5)

	lv, err := FindSupportAndResistance(window, LevelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, prices(lv.Support))

	lv, err = FindSupportAndResistance(window, LevelOptions{ExcludeFormingBar: true})
	require.NoError(t, err)
	assert.Empty(t, lv.Support)
}

func TestFindSupportAndResistanceInsufficientData(t *testing.T) {
	t.Parallel()

	for n := 0; n < MinWindow; n++ {
		lows := make([]float64, n)
		for i := range lows {
			lows[i] = float64(10 - i)
		}
		lv, err := FindSupportAndResistance(fromLows(lows...), LevelOptions{})
		assert.True(t, errors.Is(err, ErrInsufficientData), "n=%d", n)
		assert.True(t, lv.Empty())
	}
}

func randomWalk(seed int64, n int) []market.Candle {
	r := rand.New(rand.NewSource(seed))
	out := make([]market.Candle, n)
	price := 100.0
	for i := range out {
		open := price
		price += r.NormFloat64()
		high := math.Max(open, price) + r.Float64()
		low := math.Min(open, price) - r.Float64()
		out[i] = market.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
		}
	}
	return out
}

func TestFindSupportAndResistanceProperties(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 25; seed++ {
		window := randomWalk(seed, 120)
		orig := append([]market.Candle(nil), window...)

		lv, err := FindSupportAndResistance(window, LevelOptions{})
		require.NoError(t, err)
		assert.Equal(t, orig, window, "window mutated")

		avg, err := AverageBarRange(window)
		require.NoError(t, err)

		for i := 1; i < len(lv.Support); i++ {
			assert.GreaterOrEqual(t, lv.Support[i].Price, lv.Support[i-1].Price)
		}
		for i := 1; i < len(lv.Resistance); i++ {
			assert.LessOrEqual(t, lv.Resistance[i].Price, lv.Resistance[i-1].Price)
		}

		for _, list := range [][]market.PivotLevel{lv.Support, lv.Resistance} {
			for i := range list {
				for j := i + 1; j < len(list); j++ {
					assert.Greater(t, math.Abs(list[i].Price-list[j].Price), 2*avg)
				}
			}
		}

		again, err := FindSupportAndResistance(window, LevelOptions{})
		require.NoError(t, err)
		assert.Equal(t, lv, again)
	}
}

func TestAverageBarRange(t *testing.T) {
	t.Parallel()

	avg, err := AverageBarRange(fromLows(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 1.0, avg)

	_, err = AverageBarRange(nil)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}
