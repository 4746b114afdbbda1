// Package replay feeds historical candles into the trading pipeline at a
// fixed pace, emulating live arrival.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/srtrader/market"
)

// Options controls how replay behaves.
type Options struct {
	// BarCount candles seed the initial window before replay starts.
	BarCount int

	// Delay paces each emission. Zero or less replays as fast as the
	// consumer reads.
	Delay time.Duration
}

// Driver replays a fixed candle array once. It never loops back.
type Driver struct {
	candles []market.Candle
	opts    Options
	seed    int
}

// New returns a driver over candles. The slice is not copied and must not be
// modified while the driver runs.
func New(candles []market.Candle, opts Options) (*Driver, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("replay: no candles")
	}
	if opts.BarCount <= 0 {
		return nil, fmt.Errorf("replay: bar count must be positive, got %d", opts.BarCount)
	}

	seed := opts.BarCount
	if seed > len(candles) {
		seed = len(candles)
	}
	return &Driver{candles: candles, opts: opts, seed: seed}, nil
}

// Seed returns the initial window: the first BarCount candles.
func (d *Driver) Seed() []market.Candle {
	out := make([]market.Candle, d.seed)
	copy(out, d.candles[:d.seed])
	return out
}

// First is the oldest candle of the whole array, the buy-and-hold anchor.
func (d *Driver) First() market.Candle {
	return d.candles[0]
}

// Remaining is the number of candles Run will emit.
func (d *Driver) Remaining() int {
	return len(d.candles) - d.seed
}

// Run sends every candle after the seed window to out, waiting Delay before
// each one. It returns nil once the array is exhausted and ctx.Err() when
// cancelled; a cancelled wait never emits. out is not closed.
func (d *Driver) Run(ctx context.Context, out chan<- market.Candle) error {
	var timer *time.Timer
	if d.opts.Delay > 0 {
		timer = time.NewTimer(d.opts.Delay)
		defer timer.Stop()
	}

	for i, c := range d.candles[d.seed:] {
		if timer != nil {
			if i > 0 {
				timer.Reset(d.opts.Delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- c:
		}
	}
	return nil
}
