package market

import "errors"

var (
	// ErrMalformedCandle marks a feed record that could not be parsed or
	// fails the OHLC invariant. The record is dropped.
	ErrMalformedCandle = errors.New("malformed candle")

	// ErrFeedMismatch marks a stream payload that is not an OHLC update for
	// the configured pair (heartbeats, status events, other pairs).
	ErrFeedMismatch = errors.New("feed mismatch")

	// ErrOutOfOrder marks a candle older than the series tail that does not
	// match any stored bar.
	ErrOutOfOrder = errors.New("candle out of order")
)
