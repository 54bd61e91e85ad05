// Package analysis condenses a symbol's recent candles into an indicator
// snapshot. Charting and commentary layers consume the snapshot; rendering
// is theirs.
package analysis

import (
	"context"
	"fmt"
	"math"

	"papertrade/indicators"
	"papertrade/market"
)

const (
	// candleCount covers the longest indicator lookback (SMA 25, RSI 14)
	// with room to spare on hourly candles.
	candleCount = 48

	shortSMAPeriod = 7
	longSMAPeriod  = 25
)

// Report is the indicator snapshot for one symbol. Indicator fields are
// NaN when the series is too short to define them.
type Report struct {
	Symbol       string
	Candles      []market.Candle
	LastClose    float64
	Change24hPct float64
	SMAShort     float64 // SMA(7) at the latest candle
	SMALong      float64 // SMA(25) at the latest candle
	RSI          float64 // RSI(14) at the latest candle
}

// Analyze fetches hourly candles for the symbol and computes the snapshot.
func Analyze(ctx context.Context, src market.PriceSource, symbol string) (Report, error) {
	candles, err := src.Candles(ctx, symbol, "1h", candleCount)
	if err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return Report{}, fmt.Errorf("analyze %s: no candles: %w", symbol, market.ErrUnavailable)
	}

	closes := market.Closes(candles)
	last := len(closes) - 1

	return Report{
		Symbol:       symbol,
		Candles:      candles,
		LastClose:    closes[last],
		Change24hPct: change24h(closes),
		SMAShort:     indicators.SMA(closes, shortSMAPeriod)[last],
		SMALong:      indicators.SMA(closes, longSMAPeriod)[last],
		RSI:          indicators.RSI(closes, indicators.DefaultRSIPeriod)[last],
	}, nil
}

// change24h is the percent move of the latest close against the close 24
// hourly candles earlier, or against the oldest close on short series.
func change24h(closes []float64) float64 {
	last := len(closes) - 1
	ref := 0
	if last >= 24 {
		ref = last - 24
	}
	if closes[ref] == 0 {
		return math.NaN()
	}
	return (closes[last]/closes[ref] - 1) * 100
}
