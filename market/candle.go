package market

import (
	"fmt"
	"time"
)

// Candle represents one OHLC (Open, High, Low, Close) bar. Timestamp is the
// bar identity in unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"x"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
}

// Time returns the candle timestamp as UTC time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Range is high minus low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Validate checks low <= {open, close} <= high and a positive timestamp.
func (c Candle) Validate() error {
	if c.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp %d", ErrMalformedCandle, c.Timestamp)
	}
	if c.Low > c.High {
		return fmt.Errorf("%w: low %v above high %v", ErrMalformedCandle, c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High {
		return fmt.Errorf("%w: open %v outside [%v, %v]", ErrMalformedCandle, c.Open, c.Low, c.High)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("%w: close %v outside [%v, %v]", ErrMalformedCandle, c.Close, c.Low, c.High)
	}
	return nil
}

func (c Candle) String() string {
	return fmt.Sprintf("%s o=%g h=%g l=%g c=%g",
		c.Time().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
}

// PivotLevel is a price taken from a candle's low (support) or high
// (resistance).
type PivotLevel struct {
	Timestamp int64   `json:"x"`
	Price     float64 `json:"y"`
}
