// Package market defines the price-source contract and the shared market
// data types consumed by the ledger, the alert matcher, and analysis.
package market

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when a price or candle lookup cannot be
// served, for any transient reason: network failure, timeout, unknown
// symbol, malformed upstream response. Callers degrade gracefully and
// never treat it as fatal.
var ErrUnavailable = errors.New("market data unavailable")

// Candle represents one OHLCV candlestick, ordered ascending by Time.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSource supplies live market data. Implementations make network
// calls and must honor the passed context's deadline.
type PriceSource interface {
	// LatestPrice returns the last traded price for a normalized symbol.
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Candles returns up to limit candles for the given interval
	// (e.g. "1h"), oldest first.
	Candles(ctx context.Context, symbol string, interval string, limit int) ([]Candle, error)
}

// Normalize converts user input into the canonical BASE/QUOTE form.
// A bare base asset defaults to the USDT quote: "bnb" -> "BNB/USDT".
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}
	if !strings.Contains(s, "/") {
		s += "/USDT"
	}
	return s
}

// Closes extracts the closing prices from a candle series, oldest first.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
