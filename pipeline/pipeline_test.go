package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/srtrader/journal"
	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/sim"
	"github.com/rustyeddy/srtrader/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = int64(1_700_000_000_000)

func ts(i int) int64 { return base + int64(i)*60_000 }

func bar(i int, o, h, l, c float64) market.Candle {
	return market.Candle{Timestamp: ts(i), Open: o, High: h, Low: l, Close: c}
}

// valley is a five bar window with a single support pivot at 100.
func valley() []market.Candle {
	lows := []float64{103, 102, 100, 102, 103}
	out := make([]market.Candle, len(lows))
	for i, l := range lows {
		out[i] = bar(i, l+0.5, l+1, l, l+0.5)
	}
	return out
}

func streamMsg(i int, o, h, l, c float64) []byte {
	etime := float64(ts(i)) / 1000
	return []byte(fmt.Sprintf(`[42,["%.1f","%.6f","%g","%g","%g","%g","0","1.5",3],"ohlc-1","XBT/USD"]`,
		etime-59.5, etime, o, h, l, c))
}

type recordingSink struct {
	snaps   []Snapshot
	rejects []error
	err     error
}

func (s *recordingSink) OnSnapshot(_ context.Context, snap Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return s.err
}

func (s *recordingSink) OnReject(_ context.Context, err error) {
	s.rejects = append(s.rejects, err)
}

func newPipeline(t *testing.T, refresh strategies.Refresh, sinks ...Sink) *Pipeline {
	t.Helper()
	seed := valley()
	first := seed[0].Close
	p, err := New(Config{
		Pair:     "XBT/USD",
		BarCount: 10,
		Params:   sim.Params{ProfitTarget: 0.005, StopLoss: 0.005, FirstClose: &first},
		Refresh:  refresh,
		Logger:   zerolog.Nop(),
	}, sinks...)
	require.NoError(t, err)
	require.NoError(t, p.Seed(seed))
	return p
}

func eventKinds(events []sim.Event) []sim.EventKind {
	var out []sim.EventKind
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BarCount: 3, Params: sim.Params{ProfitTarget: 0.005, StopLoss: 0.005}})
	assert.Error(t, err)

	_, err = New(Config{BarCount: 10, Params: sim.Params{ProfitTarget: 0, StopLoss: 0.005}})
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, strategies.RefreshWhenAbsent)
	snap := p.Snapshot()
	assert.Equal(t, 5, snap.Window)
	assert.Equal(t, 0, snap.Seq)
	assert.Equal(t, ts(4), snap.Timestamp)
	require.Len(t, snap.Levels.Support, 1)
	assert.Equal(t, 100.0, snap.Levels.Support[0].Price)
	assert.Equal(t, ts(2), snap.Levels.Support[0].Timestamp)
	assert.Empty(t, snap.Levels.Resistance)
	assert.Equal(t, sim.State{}, p.State())

	err := p.Seed([]market.Candle{bar(2, 1, 2, 0.5, 1), bar(1, 1, 2, 0.5, 1)})
	assert.Error(t, err)
}

func TestProcessFillAndTakeProfit(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := newPipeline(t, strategies.RefreshWhenAbsent, sink)
	ctx := context.Background()

	snap, err := p.Process(ctx, bar(5, 102, 102.5, 101.5, 102))
	require.NoError(t, err)
	assert.Equal(t, []sim.EventKind{sim.OrderPlaced}, eventKinds(snap.Events))
	require.NotNil(t, snap.Long)
	require.NotNil(t, snap.Long.OpenOrder)
	assert.Equal(t, 100.0, *snap.Long.OpenOrder)
	require.NotNil(t, snap.Short)
	assert.Nil(t, snap.Short.Entry)

	snap, err = p.Process(ctx, bar(6, 101, 101, 99.8, 100.2))
	require.NoError(t, err)
	assert.Equal(t, []sim.EventKind{sim.Filled}, eventKinds(snap.Events))
	assert.Equal(t, sim.Long, snap.Position)
	assert.Nil(t, snap.Short, "opposite side is hidden while in position")
	require.NotNil(t, snap.Long.TakeProfit)
	assert.InDelta(t, 100.5, *snap.Long.TakeProfit, 1e-9)
	assert.InDelta(t, 99.5, *snap.Long.StopLoss, 1e-9)
	assert.InDelta(t, 0.2, snap.PnL.Current, 1e-9)

	snap, err = p.Process(ctx, bar(7, 100.2, 101, 100.1, 100.9))
	require.NoError(t, err)
	assert.Equal(t, []sim.EventKind{sim.TakeProfit}, eventKinds(snap.Events))
	assert.Equal(t, sim.None, snap.Position)
	assert.InDelta(t, 0.5, snap.PnL.Running, 1e-9)
	assert.Zero(t, snap.PnL.Current)
	assert.InDelta(t, 100.9-103.5, snap.PnL.HoldBenchmark, 1e-9)
	require.Len(t, snap.Closed, 1)
	assert.Equal(t, sim.Long, snap.Closed[0].Side)
	assert.Equal(t, "take_profit", snap.Closed[0].Reason)
	assert.Equal(t, 1, snap.Trades)
	assert.Equal(t, 1, snap.Wins)
	assert.NotNil(t, snap.Short)

	assert.Equal(t, 3, p.Candles())
	require.Len(t, sink.snaps, 3)
	assert.Equal(t, snap, sink.snaps[2])

	l := p.Ledger()
	require.Len(t, l.Trades, 1)
	assert.InDelta(t, 0.5, l.Net, 1e-9)
}

func seededWith(t *testing.T, refresh strategies.Refresh, seed []market.Candle) *Pipeline {
	t.Helper()
	first := seed[0].Close
	p, err := New(Config{
		Pair:     "XBT/USD",
		BarCount: 20,
		Params:   sim.Params{ProfitTarget: 0.005, StopLoss: 0.005, FirstClose: &first},
		Refresh:  refresh,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Seed(seed))
	return p
}

func TestProcessRefreshAlwaysFillsLong(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, strategies.RefreshAlways)
	ctx := context.Background()

	snap, err := p.Process(ctx, bar(5, 102, 102.5, 101.5, 102))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.OrderPlaced}, eventKinds(snap.Events))

	// the bar dips through 100 with no support left below its own low
	snap, err = p.Process(ctx, bar(6, 101, 101, 99.8, 100.2))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.Filled}, eventKinds(snap.Events))
	assert.Equal(t, sim.Long, snap.Position)
	require.NotNil(t, snap.Long.Entry)
	assert.Equal(t, 100.0, snap.Long.Entry.Price)
	assert.InDelta(t, 100*(1+0.005), *snap.Long.TakeProfit, 1e-9)
	assert.InDelta(t, 100*(1-0.005), *snap.Long.StopLoss, 1e-9)
	assert.InDelta(t, 0.2, snap.PnL.Current, 1e-9)

	snap, err = p.Process(ctx, bar(7, 100.2, 101, 100.1, 100.9))
	require.NoError(t, err)
	assert.Equal(t, []sim.EventKind{sim.TakeProfit}, eventKinds(snap.Events))
	assert.InDelta(t, 0.5, snap.PnL.Running, 1e-9)
}

func TestProcessRefreshAlwaysKeepsQuotedSupport(t *testing.T) {
	t.Parallel()

	// supports at 90 and 100, resistance at 104
	lows := []float64{93, 92, 90, 92, 93, 103, 102, 100, 102, 103}
	seed := make([]market.Candle, len(lows))
	for i, l := range lows {
		seed[i] = bar(i, l+0.5, l+1, l, l+0.5)
	}
	p := seededWith(t, strategies.RefreshAlways, seed)
	ctx := context.Background()

	snap, err := p.Process(ctx, bar(10, 101, 101.5, 99.9, 100.5))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.OrderPlaced}, eventKinds(snap.Events))
	assert.Equal(t, 100.0, *snap.Long.OpenOrder)
	assert.Nil(t, snap.Short.Entry)

	// the previous low of 99.9 would now select 90; the touched order keeps 100
	snap, err = p.Process(ctx, bar(11, 100.5, 100.8, 99.8, 100.2))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.Filled}, eventKinds(snap.Events))
	assert.Equal(t, 100.0, snap.Events[0].Price)
	assert.Equal(t, 100.0, snap.Long.Entry.Price)
	assert.InDelta(t, 100.5, *snap.Long.TakeProfit, 1e-9)
	assert.InDelta(t, 99.5, *snap.Long.StopLoss, 1e-9)

	st := p.State()
	require.NotNil(t, st.Short.Entry)
	assert.Equal(t, 104.0, st.Short.Entry.Price)

	snap, err = p.Process(ctx, bar(12, 100.2, 100.6, 100.1, 100.5))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.TakeProfit}, eventKinds(snap.Events))
	assert.InDelta(t, 0.5, snap.Events[0].Realized, 1e-9)
}

func TestProcessRefreshAlwaysFillsShort(t *testing.T) {
	t.Parallel()

	// a single resistance pivot at 100
	highs := []float64{97, 98, 100, 98, 97}
	seed := make([]market.Candle, len(highs))
	for i, h := range highs {
		seed[i] = bar(i, h-0.5, h, h-1, h-0.5)
	}
	p := seededWith(t, strategies.RefreshAlways, seed)
	ctx := context.Background()

	snap, err := p.Process(ctx, bar(5, 97.5, 98.5, 97.5, 98))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.OrderPlaced}, eventKinds(snap.Events))
	assert.Equal(t, sim.Short, snap.Events[0].Side)
	assert.Equal(t, 100.0, *snap.Short.OpenOrder)

	snap, err = p.Process(ctx, bar(6, 99, 100.2, 98.8, 99.8))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.Filled}, eventKinds(snap.Events))
	assert.Equal(t, sim.Short, snap.Position)
	assert.Equal(t, 100.0, snap.Short.Entry.Price)
	assert.InDelta(t, 100*(1-0.005), *snap.Short.TakeProfit, 1e-9)
	assert.InDelta(t, 100*(1+0.005), *snap.Short.StopLoss, 1e-9)
	assert.InDelta(t, 0.2, snap.PnL.Current, 1e-9)

	snap, err = p.Process(ctx, bar(7, 99.8, 99.9, 99.4, 99.5))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.TakeProfit}, eventKinds(snap.Events))
	assert.InDelta(t, 0.5, snap.PnL.Running, 1e-9)
}

func TestProcessRefreshAlwaysWithdrawsOrder(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, strategies.RefreshAlways)
	ctx := context.Background()

	snap, err := p.Process(ctx, bar(5, 100.5, 101, 99.5, 100.5))
	require.NoError(t, err)
	require.Equal(t, []sim.EventKind{sim.OrderPlaced}, eventKinds(snap.Events))

	// no support lies below 99.5, so the long entry and its order go
	snap, err = p.Process(ctx, bar(6, 100.5, 101, 100.3, 100.8))
	require.NoError(t, err)
	assert.Empty(t, snap.Events)
	require.NotNil(t, snap.Long)
	assert.Nil(t, snap.Long.Entry)
	assert.Nil(t, snap.Long.OpenOrder)

	// the dip to 100 only re-quotes; the withdrawn order cannot fill
	snap, err = p.Process(ctx, bar(7, 100.8, 101, 99.9, 100.4))
	require.NoError(t, err)
	assert.NotContains(t, eventKinds(snap.Events), sim.Filled)
	assert.Equal(t, sim.None, snap.Position)
}

func TestProcessRejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := newPipeline(t, strategies.RefreshWhenAbsent, sink)
	ctx := context.Background()

	_, err := p.Process(ctx, bar(5, 102, 102.5, 101.5, 102))
	require.NoError(t, err)
	before := p.Snapshot()
	state := p.State()

	old := market.Candle{Timestamp: ts(5) - 30_000, Open: 1, High: 2, Low: 0.5, Close: 1}
	_, err = p.Process(ctx, old)
	assert.ErrorIs(t, err, market.ErrOutOfOrder)

	_, err = p.Process(ctx, market.Candle{Timestamp: ts(6), Open: 1, High: 0.5, Low: 2, Close: 1})
	assert.ErrorIs(t, err, market.ErrMalformedCandle)

	assert.Equal(t, before, p.Snapshot())
	assert.Equal(t, state, p.State())
	assert.Len(t, sink.snaps, 1)
	assert.Len(t, sink.rejects, 2)
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := newPipeline(t, strategies.RefreshWhenAbsent, sink)
	ctx := context.Background()

	snap, err := p.HandleMessage(ctx, streamMsg(5, 102, 102.5, 101.5, 102))
	require.NoError(t, err)
	assert.Equal(t, ts(5), snap.Timestamp)
	assert.Equal(t, 102.5, snap.Candle.High)
	assert.Equal(t, []sim.EventKind{sim.OrderPlaced}, eventKinds(snap.Events))

	// an update of the same bar replaces it
	snap, err = p.HandleMessage(ctx, streamMsg(5, 102, 102.7, 101.5, 102.2))
	require.NoError(t, err)
	assert.Equal(t, 6, snap.Window)
	assert.Equal(t, 102.7, snap.Candle.High)
	assert.Empty(t, snap.Events)
}

func TestHandleMessageMalformedIsNoop(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := newPipeline(t, strategies.RefreshWhenAbsent, sink)
	ctx := context.Background()

	_, err := p.HandleMessage(ctx, streamMsg(5, 102, 102.5, 101.5, 102))
	require.NoError(t, err)
	before := p.Snapshot()
	state := p.State()

	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `{"event":`, market.ErrMalformedCandle},
		{"heartbeat", `{"event":"heartbeat"}`, market.ErrFeedMismatch},
		{"other pair", `[42,["1","1700000400","1","2","0.5","1","0","1",1],"ohlc-1","ETH/USD"]`, market.ErrFeedMismatch},
		{"bad price", `[42,["1","1700000400","x","2","0.5","1","0","1",1],"ohlc-1","XBT/USD"]`, market.ErrMalformedCandle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.HandleMessage(ctx, []byte(tt.payload))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, before, p.Snapshot())
	assert.Equal(t, state, p.State())
	assert.Len(t, sink.snaps, 1)
	assert.Len(t, sink.rejects, len(tests))
}

func TestSinkErrorDoesNotStopTrading(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{err: errors.New("disk full")}
	healthy := &recordingSink{}
	p := newPipeline(t, strategies.RefreshWhenAbsent, failing, healthy)

	_, err := p.Process(context.Background(), bar(5, 102, 102.5, 101.5, 102))
	require.NoError(t, err)
	assert.Len(t, failing.snaps, 1)
	assert.Len(t, healthy.snaps, 1)
	assert.NotNil(t, p.State().Long.OpenOrder)
}

func TestRunCandles(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := newPipeline(t, strategies.RefreshAlways, sink)

	in := make(chan market.Candle, 4)
	in <- bar(5, 102, 102.5, 101.5, 102)
	in <- bar(6, 1, 0.5, 2, 1) // high below low
	in <- bar(6, 102, 103, 101.8, 102.5)
	close(in)

	require.NoError(t, p.RunCandles(context.Background(), in))
	assert.Equal(t, 2, p.Candles())
	assert.Len(t, sink.snaps, 2)
	assert.Len(t, sink.rejects, 1)
}

func TestRunMessagesStopsOnCancel(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, strategies.RefreshWhenAbsent)
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan []byte)
	done := make(chan error, 1)
	go func() { done <- p.RunMessages(ctx, in) }()

	in <- streamMsg(5, 102, 102.5, 101.5, 102)
	in <- []byte(`{"event":"heartbeat"}`)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, p.Candles())
}

type fakeJournal struct {
	trades []journal.TradeRecord
	pnl    []journal.PnLSnapshot
}

func (j *fakeJournal) RecordTrade(t journal.TradeRecord) error {
	j.trades = append(j.trades, t)
	return nil
}

func (j *fakeJournal) RecordPnL(p journal.PnLSnapshot) error {
	j.pnl = append(j.pnl, p)
	return nil
}

func (j *fakeJournal) Close() error { return nil }

func TestJournalSink(t *testing.T) {
	t.Parallel()

	j := &fakeJournal{}
	p := newPipeline(t, strategies.RefreshWhenAbsent, NewJournalSink(j, "S1", "XBT/USD"))
	ctx := context.Background()

	for _, c := range []market.Candle{
		bar(5, 102, 102.5, 101.5, 102),
		bar(6, 101, 101, 99.8, 100.2),
		bar(7, 100.2, 101, 100.1, 100.9),
	} {
		_, err := p.Process(ctx, c)
		require.NoError(t, err)
	}
	// both sides re-quote after the exit
	snap, err := p.Process(ctx, bar(8, 100.9, 101.2, 100.6, 101))
	require.NoError(t, err)
	assert.Equal(t, []sim.EventKind{sim.OrderPlaced, sim.OrderPlaced}, eventKinds(snap.Events))

	// no transition, no pnl row
	snap, err = p.Process(ctx, bar(9, 101, 101.3, 100.8, 101.1))
	require.NoError(t, err)
	assert.Empty(t, snap.Events)

	require.Len(t, j.trades, 1)
	tr := j.trades[0]
	assert.Equal(t, "S1", tr.SessionID)
	assert.Equal(t, "XBT/USD", tr.Instrument)
	assert.Equal(t, "long", tr.Side)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.InDelta(t, 100.5, tr.ExitPrice, 1e-9)
	assert.Equal(t, ts(6), tr.OpenTime.UnixMilli())
	assert.Equal(t, ts(7), tr.CloseTime.UnixMilli())
	assert.Equal(t, "take_profit", tr.Reason)
	assert.NotEmpty(t, tr.TradeID)

	require.Len(t, j.pnl, 4)
	assert.Equal(t, "long", j.pnl[1].Position)
	assert.Equal(t, "none", j.pnl[2].Position)
	assert.InDelta(t, 0.5, j.pnl[2].Running, 1e-9)
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, strategies.RefreshWhenAbsent, NewLogSink(zerolog.Nop()))
	_, err := p.Process(context.Background(), bar(5, 102, 102.5, 101.5, 102))
	assert.NoError(t, err)
	_, err = p.HandleMessage(context.Background(), []byte("x"))
	assert.Error(t, err)
}
