package indicators

import (
	"fmt"

	"github.com/rustyeddy/srtrader/market"
)

// AverageBarRange is the mean of high-low over candles.
func AverageBarRange(candles []market.Candle) (float64, error) {
	if len(candles) == 0 {
		return 0, fmt.Errorf("%w: empty window", ErrInsufficientData)
	}

	sum := 0.0
	for _, c := range candles {
		sum += c.Range()
	}
	return sum / float64(len(candles)), nil
}
