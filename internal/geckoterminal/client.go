// Package geckoterminal fetches OHLCV candles from the GeckoTerminal API.
package geckoterminal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"zera-sync/internal/domain"
	"zera-sync/internal/ratelimit"
)

// DefaultBaseURL is the public GeckoTerminal API root.
const DefaultBaseURL = "https://api.geckoterminal.com/api/v2"

// upstreamName keys the rate limiter bucket for this API.
const upstreamName = "geckoterminal"

// Client fetches candles for liquidity pools.
type Client struct {
	baseURL string
	network string
	client  *http.Client
	fetcher *ratelimit.Fetcher
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL string
	Network string // e.g. "solana"
	HTTP    *http.Client
	Fetcher *ratelimit.Fetcher
}

// NewClient creates a GeckoTerminal client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Network == "" {
		opts.Network = "solana"
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = ratelimit.NewFetcher(ratelimit.FetcherOptions{})
	}
	return &Client{
		baseURL: opts.BaseURL,
		network: opts.Network,
		client:  opts.HTTP,
		fetcher: opts.Fetcher,
	}
}

// timeframePath maps a timeframe to the API's path segment and aggregate
// query parameter.
func timeframePath(tf domain.Timeframe) (segment string, aggregate int, err error) {
	switch tf {
	case domain.Timeframe1m:
		return "minute", 1, nil
	case domain.Timeframe5m:
		return "minute", 5, nil
	case domain.Timeframe15m:
		return "minute", 15, nil
	case domain.Timeframe1H:
		return "hour", 1, nil
	case domain.Timeframe4H:
		return "hour", 4, nil
	case domain.Timeframe1D:
		return "day", 1, nil
	default:
		return "", 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// FetchOHLCV returns candles for a pool, ascending by timestamp.
// Malformed rows in the upstream payload are skipped, not fatal.
func (c *Client) FetchOHLCV(ctx context.Context, poolAddress string, tokenAddress string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	segment, aggregate, err := timeframePath(tf)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	q := url.Values{}
	q.Set("aggregate", fmt.Sprintf("%d", aggregate))
	q.Set("limit", fmt.Sprintf("%d", limit))
	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/%s?%s",
		c.baseURL, c.network, poolAddress, segment, q.Encode())

	var body []byte
	err = c.fetcher.Do(ctx, upstreamName, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return ratelimit.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return ratelimit.Transient(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return ratelimit.Transient(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch ohlcv for %s: %w", poolAddress, err)
	}

	return parseOHLCV(body, tokenAddress, tf)
}

// ohlcvResponse mirrors the GeckoTerminal payload shape. Rows are decoded
// loosely so one malformed row cannot poison the whole payload.
type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]interface{} `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// asFloat converts a loosely-decoded JSON value to float64.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// parseOHLCV decodes the ohlcv_list array-of-arrays into candles.
// Each row is [timestamp, open, high, low, close, volume].
func parseOHLCV(body []byte, tokenAddress string, tf domain.Timeframe) ([]domain.Candle, error) {
	var resp ohlcvResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode ohlcv response: %w", err)
	}

	candles := make([]domain.Candle, 0, len(resp.Data.Attributes.OHLCVList))
	for _, row := range resp.Data.Attributes.OHLCVList {
		if len(row) < 6 {
			continue
		}
		tsFloat, ok := asFloat(row[0])
		if !ok {
			continue
		}
		ts := int64(tsFloat)
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, okv := asFloat(row[i+1])
			if !okv {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		candles = append(candles, domain.Candle{
			TokenAddress: tokenAddress,
			Timeframe:    tf,
			Timestamp:    ts,
			Open:         vals[0],
			High:         vals[1],
			Low:          vals[2],
			Close:        vals[3],
			Volume:       vals[4],
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	return candles, nil
}
