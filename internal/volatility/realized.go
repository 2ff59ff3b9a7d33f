// Package volatility compares implied volatility with realized volatility.
package volatility

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LogReturns converts closes to log returns, skipping pairs with a
// non-positive price.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 || math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// Realized returns the annualized standard deviation of the trailing window
// of log returns. ok is false when fewer than minCloses usable closes exist.
func Realized(closes []float64, window, minCloses, tradingDays int) (vol float64, samples int, ok bool) {
	if len(closes) < minCloses || minCloses < 2 {
		return 0, 0, false
	}
	returns := LogReturns(closes)
	if window > 0 && len(returns) > window {
		returns = returns[len(returns)-window:]
	}
	if len(returns) < minCloses-1 {
		return 0, len(returns), false
	}
	if tradingDays <= 0 {
		tradingDays = 252
	}
	sd := stat.StdDev(returns, nil)
	if math.IsNaN(sd) {
		return 0, len(returns), false
	}
	return sd * math.Sqrt(float64(tradingDays)), len(returns), true
}
