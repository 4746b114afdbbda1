// Package kraken talks to the Kraken public REST and WebSocket APIs.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/srtrader/market"
)

const (
	// RESTURL is Kraken's public REST endpoint
	RESTURL = "https://api.kraken.com"
	// WSURL is Kraken's public WebSocket endpoint
	WSURL = "wss://ws.kraken.com"
)

// Client fetches historical candles from Kraken
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Kraken REST client. An empty baseURL uses RESTURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = RESTURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// OHLCRequest represents parameters for fetching historical candles
type OHLCRequest struct {
	Pair     string // Required: REST pair name (e.g., "XBTUSD")
	Interval int    // Minutes per candle (default: 1)
	Since    int64  // Optional: unix seconds
}

// OHLCResponse holds the normalized candles. Rows that failed to
// normalize are reported in Skipped and left out of Candles.
type OHLCResponse struct {
	Key     string // result key, e.g. "XXBTZUSD"
	Candles []market.Candle
	Skipped []error
	Last    int64
}

// ohlcEnvelope is the raw REST response
type ohlcEnvelope struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// OHLC fetches historical candles from Kraken
func (c *Client) OHLC(ctx context.Context, req OHLCRequest) (*OHLCResponse, error) {
	if req.Pair == "" {
		return nil, fmt.Errorf("pair is required")
	}

	params := url.Values{}
	params.Set("pair", req.Pair)
	if req.Interval > 0 {
		params.Set("interval", strconv.Itoa(req.Interval))
	}
	if req.Since > 0 {
		params.Set("since", strconv.FormatInt(req.Since, 10))
	}

	apiURL := fmt.Sprintf("%s/0/public/OHLC?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return DecodeOHLC(resp.Body)
}

// LoadFile reads a saved OHLC response, the same JSON the REST endpoint
// returns, for offline runs.
func LoadFile(path string) (*OHLCResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	out, err := DecodeOHLC(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// DecodeOHLC parses an OHLC response body. The pair key is not known in
// advance (XBTUSD answers as XXBTZUSD), so the first key other than "last"
// is taken.
func DecodeOHLC(r io.Reader) (*OHLCResponse, error) {
	var env ohlcEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(env.Error) > 0 {
		return nil, fmt.Errorf("kraken error: %s", strings.Join(env.Error, "; "))
	}

	out := &OHLCResponse{}
	if raw, ok := env.Result["last"]; ok {
		_ = json.Unmarshal(raw, &out.Last)
	}

	keys := make([]string, 0, len(env.Result))
	for key := range env.Result {
		if key != "last" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return nil, fmt.Errorf("no OHLC series in response")
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(env.Result[keys[0]], &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", keys[0], err)
	}
	out.Key = keys[0]
	out.Candles, out.Skipped = market.ParseHistorical(rows)
	return out, nil
}
