package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the Binance spot REST endpoint.
const DefaultBaseURL = "https://api.binance.com"

// Client fetches prices and candles from the Binance REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Binance market data client. An empty baseURL selects
// the production endpoint; timeout bounds each HTTP request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// tickerResponse is the /api/v3/ticker/price payload.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// LatestPrice returns the last traded price for a symbol in BASE/QUOTE form.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", pairCode(symbol))

	var tr tickerResponse
	if err := c.getJSON(ctx, "/api/v3/ticker/price", params, &tr); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(tr.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad price %q for %s", ErrUnavailable, tr.Price, symbol)
	}
	return price, nil
}

// Candles returns up to limit klines for the given interval, oldest first.
// Binance kline rows are positional arrays:
// [openTime, open, high, low, close, volume, closeTime, ...].
func (c *Client) Candles(ctx context.Context, symbol string, interval string, limit int) ([]Candle, error) {
	if interval == "" {
		interval = "1h"
	}
	if limit <= 0 {
		limit = 24
	}

	params := url.Values{}
	params.Set("symbol", pairCode(symbol))
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var rows [][]any
	if err := c.getJSON(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	apiURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func parseKline(row []any) (Candle, error) {
	if len(row) < 6 {
		return Candle{}, fmt.Errorf("kline row has %d fields, want >= 6", len(row))
	}

	openMillis, ok := row[0].(float64)
	if !ok {
		return Candle{}, fmt.Errorf("kline open time is %T, want number", row[0])
	}

	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return Candle{}, fmt.Errorf("kline field %d is %T, want string", i, row[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("kline field %d: %v", i, err)
		}
		vals[i-1] = v
	}

	return Candle{
		Time:   time.UnixMilli(int64(openMillis)).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// pairCode strips the slash from a normalized symbol: "BTC/USDT" -> "BTCUSDT".
func pairCode(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
