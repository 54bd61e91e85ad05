// Package indicators provides technical analysis transforms over
// closing-price series.
//
// All functions are pure and total: any input, including series shorter
// than the period, yields a result of the same length with NaN marking
// elements that are not yet defined. Callers test definedness with
// math.IsNaN.
package indicators

import "math"

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// SMA returns the simple moving average series for the given period.
// Element i is NaN while i < period-1, then the arithmetic mean of the
// trailing period closes ending at i, inclusive.
func SMA(closes []float64, period int) []float64 {
	out := undefinedSeries(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}

	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// RSI returns the Relative Strength Index series using Wilder's smoothing.
//
// The first period elements are NaN: seeding needs period deltas, i.e.
// period+1 closes. The seed is the plain average of gains and losses over
// the first period deltas; every later element applies the recursive
// smoothing avg = (avg*(period-1) + x) / period, which is not equivalent
// to re-averaging a sliding window.
func RSI(closes []float64, period int) []float64 {
	out := undefinedSeries(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		gainSum += math.Max(delta, 0)
		lossSum += math.Max(-delta, 0)
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		avgGain = (avgGain*(p-1) + math.Max(delta, 0)) / p
		avgLoss = (avgLoss*(p-1) + math.Max(-delta, 0)) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
