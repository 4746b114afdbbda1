package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ParseHistoricalRow converts one REST OHLC tuple
//
//	[time_s, "open", "high", "low", "close", "vwap", "volume", count]
//
// into a Candle. Prices may be JSON numbers or numeric strings; fields after
// close are ignored.
func ParseHistoricalRow(row []json.RawMessage) (Candle, error) {
	if len(row) < 5 {
		return Candle{}, fmt.Errorf("%w: want at least 5 fields, got %d", ErrMalformedCandle, len(row))
	}
	return candleFromFields(row[0], row[1:5])
}

// ParseHistorical converts a batch of REST rows. Malformed rows are dropped
// and reported in errs, tagged with their row index.
func ParseHistorical(rows [][]json.RawMessage) (candles []Candle, errs []error) {
	candles = make([]Candle, 0, len(rows))
	for i, row := range rows {
		c, err := ParseHistoricalRow(row)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		candles = append(candles, c)
	}
	return candles, errs
}

// candleFromFields builds a candle from a seconds timestamp and the four
// o/h/l/c fields.
func candleFromFields(ts json.RawMessage, ohlc []json.RawMessage) (Candle, error) {
	secs, err := parseNumber(ts)
	if err != nil {
		return Candle{}, fmt.Errorf("%w: time: %v", ErrMalformedCandle, err)
	}

	var px [4]float64
	names := [4]string{"open", "high", "low", "close"}
	for i := range px {
		v, err := parseNumber(ohlc[i])
		if err != nil {
			return Candle{}, fmt.Errorf("%w: %s: %v", ErrMalformedCandle, names[i], err)
		}
		px[i] = v
	}

	c := Candle{
		Timestamp: int64(math.Round(secs * 1000)),
		Open:      px[0],
		High:      px[1],
		Low:       px[2],
		Close:     px[3],
	}
	if err := c.Validate(); err != nil {
		return Candle{}, err
	}
	return c, nil
}

// parseNumber accepts 42, 42.5 or "42.5".
func parseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty field")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		raw = []byte(s)
	}

	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", raw)
	}
	return v, nil
}
