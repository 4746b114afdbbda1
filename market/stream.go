package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseStreamMessage decodes a WebSocket OHLC update
//
//	[channelID, [time, etime, open, high, low, close, vwap, volume, count], "ohlc-1", "XBT/USD"]
//
// for pair. The candle timestamp is etime (bar end) in milliseconds so every
// update of an in-progress bar carries the same identity.
//
// Invalid JSON and bad OHLC fields return ErrMalformedCandle. Objects
// (heartbeats, subscription status), other channels and other pairs return
// ErrFeedMismatch.
func ParseStreamMessage(payload []byte, pair string) (Candle, error) {
	payload = bytes.TrimSpace(payload)
	if !json.Valid(payload) {
		return Candle{}, fmt.Errorf("%w: invalid json", ErrMalformedCandle)
	}
	if len(payload) == 0 || payload[0] != '[' {
		return Candle{}, fmt.Errorf("%w: not an array message", ErrFeedMismatch)
	}

	var msg []json.RawMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Candle{}, fmt.Errorf("%w: %v", ErrMalformedCandle, err)
	}
	if len(msg) < 4 {
		return Candle{}, fmt.Errorf("%w: %d elements", ErrFeedMismatch, len(msg))
	}

	var gotPair, channel string
	if err := json.Unmarshal(msg[len(msg)-1], &gotPair); err != nil {
		return Candle{}, fmt.Errorf("%w: pair is not a string", ErrFeedMismatch)
	}
	if gotPair != pair {
		return Candle{}, fmt.Errorf("%w: pair %q", ErrFeedMismatch, gotPair)
	}
	if err := json.Unmarshal(msg[len(msg)-2], &channel); err != nil || !strings.HasPrefix(channel, "ohlc") {
		return Candle{}, fmt.Errorf("%w: channel %q", ErrFeedMismatch, channel)
	}

	var fields []json.RawMessage
	if err := json.Unmarshal(msg[1], &fields); err != nil {
		return Candle{}, fmt.Errorf("%w: ohlc payload: %v", ErrMalformedCandle, err)
	}
	if len(fields) < 6 {
		return Candle{}, fmt.Errorf("%w: want at least 6 ohlc fields, got %d", ErrMalformedCandle, len(fields))
	}

	return candleFromFields(fields[1], fields[2:6])
}
