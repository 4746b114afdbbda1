package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/srtrader/market"
)

var csvHeader = []string{"time", "open", "high", "low", "close"}

// LoadCSV reads candles from a CSV file.
//
// Format (header optional):
//
//	time,open,high,low,close
//
// time is RFC3339 or unix seconds. Malformed rows are skipped and reported
// in skipped; err is set only when the file cannot be read.
func LoadCSV(path string) (candles []market.Candle, skipped []error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV is LoadCSV over an io.Reader.
func ReadCSV(r io.Reader) (candles []market.Candle, skipped []error, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return candles, skipped, nil
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, fmt.Errorf("line %d: %w: %v", line, market.ErrMalformedCandle, err))
				continue
			}
			return candles, skipped, err
		}
		if len(row) == 0 {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}

		c, err := parseCSVRow(row)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		candles = append(candles, c)
	}
}

func parseCSVRow(row []string) (market.Candle, error) {
	if len(row) < 5 {
		return market.Candle{}, fmt.Errorf("%w: want 5 fields, got %d", market.ErrMalformedCandle, len(row))
	}

	ts, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Candle{}, fmt.Errorf("%w: time: %v", market.ErrMalformedCandle, err)
	}

	var px [4]float64
	for i := range px {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("%w: %s: %v", market.ErrMalformedCandle, csvHeader[i+1], err)
		}
		px[i] = v
	}

	c := market.Candle{Timestamp: ts, Open: px[0], High: px[1], Low: px[2], Close: px[3]}
	return c, c.Validate()
}

func parseTime(s string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized time %q", s)
	}
	return int64(math.Round(secs * 1000)), nil
}

// WriteCSV writes candles in the format LoadCSV reads.
func WriteCSV(w io.Writer, candles []market.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range candles {
		if err := cw.Write([]string{
			c.Time().Format(time.RFC3339Nano),
			f(c.Open),
			f(c.High),
			f(c.Low),
			f(c.Close),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
