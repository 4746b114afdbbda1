package kraken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// StreamConfig holds configuration for the OHLC subscription.
type StreamConfig struct {
	// URL of the WebSocket endpoint. Defaults to WSURL.
	URL string

	// Pair in WebSocket form, e.g. "XBT/USD".
	Pair string

	// Interval is the candle length in minutes. Defaults to 1.
	Interval int

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// StaleAfter drops the connection when nothing, heartbeats included,
	// arrives for this long. Zero disables the check.
	StaleAfter time.Duration

	Logger zerolog.Logger
}

func (c *StreamConfig) defaults() {
	if c.URL == "" {
		c.URL = WSURL
	}
	if c.Interval == 0 {
		c.Interval = 1
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Stream subscribes to Kraken OHLC updates and forwards the raw channel
// messages. Parsing is left to market.ParseStreamMessage.
type Stream struct {
	cfg StreamConfig
	log zerolog.Logger

	// Optional hook, called each time a reconnection happens.
	OnReconnect func()
}

type subscription struct {
	Name     string `json:"name"`
	Interval int    `json:"interval"`
}

type subscribeRequest struct {
	Event        string       `json:"event"`
	Pair         []string     `json:"pair"`
	Subscription subscription `json:"subscription"`
}

// statusEvent covers the object messages Kraken interleaves with data:
// heartbeat, systemStatus and subscriptionStatus.
type statusEvent struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// NewStream creates a new Stream. Returns an error if the URL is unparseable.
func NewStream(cfg StreamConfig) (*Stream, error) {
	cfg.defaults()
	if cfg.Pair == "" {
		return nil, fmt.Errorf("pair is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Stream{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "kraken-stream").Logger(),
	}, nil
}

// Start connects, subscribes and streams channel messages into out.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect
// or staleness.
func (s *Stream) Start(ctx context.Context, out chan<- []byte) error {
	delay := s.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		received, err := s.runOnce(ctx, out)
		if err == nil {
			return nil
		}
		if received {
			delay = s.cfg.ReconnectDelay
		}

		s.log.Warn().Err(err).Dur("retry_in", delay).Msg("stream disconnected")
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	return conn.WriteJSON(subscribeRequest{
		Event: "subscribe",
		Pair:  []string{s.cfg.Pair},
		Subscription: subscription{
			Name:     "ohlc",
			Interval: s.cfg.Interval,
		},
	})
}

// runOnce makes a single connection and reads until disconnect or ctx
// cancel. received reports whether any data message got through.
func (s *Stream) runOnce(ctx context.Context, out chan<- []byte) (received bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	if err := s.subscribe(conn); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	s.log.Info().Str("url", s.cfg.URL).Str("pair", s.cfg.Pair).Msg("subscribed")

	for {
		if s.cfg.StaleAfter > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.StaleAfter))
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return received, nil
			default:
			}
			return received, err
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			if err := s.handleEvent(raw); err != nil {
				return received, err
			}
			continue
		}

		select {
		case out <- raw:
			received = true
		case <-ctx.Done():
			return received, nil
		}
	}
}

var errSubscriptionRejected = errors.New("subscription rejected")

func (s *Stream) handleEvent(raw []byte) error {
	var ev statusEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.log.Debug().Err(err).Bytes("raw", raw).Msg("unreadable event")
		return nil
	}

	switch ev.Event {
	case "heartbeat":
	case "subscriptionStatus":
		if ev.Status == "error" {
			return fmt.Errorf("%w: %s", errSubscriptionRejected, ev.ErrorMessage)
		}
		s.log.Debug().Str("status", ev.Status).Msg("subscription status")
	default:
		s.log.Debug().Str("event", ev.Event).Str("status", ev.Status).Msg("event")
	}
	return nil
}
