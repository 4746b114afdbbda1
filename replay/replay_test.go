package replay

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = market.Candle{Timestamp: int64(i+1) * 60_000, Open: p, High: p + 1, Low: p - 1, Close: p}
	}
	return out
}

func drain(ch <-chan market.Candle) []market.Candle {
	var out []market.Candle
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestDriverSeedAndRun(t *testing.T) {
	t.Parallel()

	candles := testCandles(10)
	d, err := New(candles, Options{BarCount: 4})
	require.NoError(t, err)

	assert.Equal(t, candles[:4], d.Seed())
	assert.Equal(t, candles[0], d.First())
	assert.Equal(t, 6, d.Remaining())

	ch := make(chan market.Candle)
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(context.Background(), ch)
		close(ch)
	}()

	got := drain(ch)
	require.NoError(t, <-errCh)
	assert.Equal(t, candles[4:], got)
}

func TestDriverSeedLargerThanData(t *testing.T) {
	t.Parallel()

	d, err := New(testCandles(3), Options{BarCount: 120})
	require.NoError(t, err)
	assert.Len(t, d.Seed(), 3)
	assert.Zero(t, d.Remaining())

	ch := make(chan market.Candle, 1)
	require.NoError(t, d.Run(context.Background(), ch))
	assert.Empty(t, ch)
}

func TestDriverPacing(t *testing.T) {
	t.Parallel()

	d, err := New(testCandles(5), Options{BarCount: 2, Delay: 20 * time.Millisecond})
	require.NoError(t, err)

	ch := make(chan market.Candle, 8)
	start := time.Now()
	require.NoError(t, d.Run(context.Background(), ch))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Len(t, ch, 3)
}

func TestDriverCancelStopsBetweenEmissions(t *testing.T) {
	t.Parallel()

	d, err := New(testCandles(100), Options{BarCount: 1, Delay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan market.Candle, 100)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, ch) }()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not stop after cancel")
	}
	assert.Empty(t, ch, "a cancelled wait must not emit")
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Options{BarCount: 10})
	assert.Error(t, err)
	_, err = New(testCandles(3), Options{BarCount: 0})
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	t.Parallel()

	candles := testCandles(3)
	candles[1].Timestamp += 436

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, candles))

	got, skipped, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, candles, got)
}

func TestLoadCSVSkipsMalformed(t *testing.T) {
	t.Parallel()

	data := `time,open,high,low,close
1688671200,10,12,9,11
1688671260,abc,12,9,11
1688671320,10,9,12,11
2023-07-06T19:23:00Z,11,13,10,12
`
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	candles, skipped, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Len(t, skipped, 2)
	assert.True(t, errors.Is(skipped[0], market.ErrMalformedCandle))
	assert.True(t, strings.Contains(skipped[1].Error(), "line 4"))
	assert.Equal(t, int64(1688671200000), candles[0].Timestamp)
	assert.Equal(t, int64(1688671380000), candles[1].Timestamp)
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	l := &sim.Ledger{}
	l.Record([]sim.Event{{Kind: sim.TakeProfit, Side: sim.Long, Price: 100.5, Order: 100, Realized: 0.5}})
	st := sim.State{PnL: sim.PnL{Running: 0.5, HoldBenchmark: -2}}

	r := NewResult(l, st)
	r.Instrument = "XBT/USD"

	var buf bytes.Buffer
	PrintResult(&buf, r)
	out := buf.String()
	assert.Contains(t, out, "Instrument:    XBT/USD")
	assert.Contains(t, out, "Trades:        1")
	assert.Contains(t, out, "Running P/L:   0.50")
	assert.Contains(t, out, "Buy & Hold:    -2.00")
	assert.Contains(t, out, " Backtest Result")

	r.Mode = "live"
	buf.Reset()
	PrintResult(&buf, r)
	assert.Contains(t, buf.String(), " Live Session Result")
	assert.NotContains(t, buf.String(), "Buy & Hold")
}
