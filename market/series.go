package market

import "fmt"

// Series is an ordered window of candles bounded to Limit bars. The oldest
// bar is trimmed when an append overflows the limit.
type Series struct {
	limit   int
	candles []Candle
}

// NewSeries returns an empty series holding at most limit candles. A limit
// of zero or less means unbounded.
func NewSeries(limit int) *Series {
	capHint := limit
	if capHint <= 0 {
		capHint = 64
	}
	return &Series{
		limit:   limit,
		candles: make([]Candle, 0, capHint+1),
	}
}

func (s *Series) Limit() int { return s.limit }

func (s *Series) Len() int { return len(s.candles) }

// Last returns the most recent candle.
func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// First returns the oldest candle still in the window.
func (s *Series) First() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[0], true
}

// Candles returns a copy of the window, oldest first.
func (s *Series) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Load replaces the window with candles, keeping the newest Limit bars.
// Every candle must be valid and timestamps strictly ascending.
func (s *Series) Load(candles []Candle) error {
	var prev int64
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}
		if i > 0 && c.Timestamp <= prev {
			return fmt.Errorf("candle %d: %w: %d after %d", i, ErrOutOfOrder, c.Timestamp, prev)
		}
		prev = c.Timestamp
	}

	if s.limit > 0 && len(candles) > s.limit {
		candles = candles[len(candles)-s.limit:]
	}
	s.candles = append(s.candles[:0], candles...)
	return nil
}

// Ingest upserts c by timestamp. A timestamp equal to the tail replaces it
// in place (in-progress bar update); a newer one appends and trims. Older
// timestamps replace the matching bar or fail with ErrOutOfOrder. The series
// is unchanged on error.
func (s *Series) Ingest(c Candle) error {
	if err := c.Validate(); err != nil {
		return err
	}

	n := len(s.candles)
	if n == 0 || c.Timestamp > s.candles[n-1].Timestamp {
		s.candles = append(s.candles, c)
		if s.limit > 0 && len(s.candles) > s.limit {
			drop := len(s.candles) - s.limit
			copy(s.candles, s.candles[drop:])
			s.candles = s.candles[:s.limit]
		}
		return nil
	}

	if c.Timestamp == s.candles[n-1].Timestamp {
		s.candles[n-1] = c
		return nil
	}

	for i := n - 2; i >= 0; i-- {
		if s.candles[i].Timestamp == c.Timestamp {
			s.candles[i] = c
			return nil
		}
		if s.candles[i].Timestamp < c.Timestamp {
			break
		}
	}
	return fmt.Errorf("%w: %d older than tail %d", ErrOutOfOrder, c.Timestamp, s.candles[n-1].Timestamp)
}
