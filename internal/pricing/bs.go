// Package pricing provides Black-Scholes terms, probability estimates and
// the piecewise-linear curves the scorers are tuned with.
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DaysPerYear converts calendar days to years for T.
const DaysPerYear = 365.0

// Years converts calendar days to a year fraction.
func Years(days int) float64 {
	return float64(days) / DaysPerYear
}

// valid reports whether the inputs define a usable lognormal model.
func valid(S, K, T, sigma float64) bool {
	return S > 0 && K > 0 && T > 0 && sigma > 0 &&
		!math.IsNaN(S) && !math.IsNaN(K) && !math.IsNaN(T) && !math.IsNaN(sigma) &&
		!math.IsInf(S, 0) && !math.IsInf(K, 0) && !math.IsInf(T, 0) && !math.IsInf(sigma, 0)
}

// D1 returns the Black-Scholes d1 term. ok is false when any input is
// degenerate (non-positive price, strike, time or volatility).
func D1(S, K, T, r, sigma float64) (d1 float64, ok bool) {
	if !valid(S, K, T, sigma) {
		return 0, false
	}
	return (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T)), true
}

// D2 returns (ln(S/K) + (r - sigma^2/2)T) / (sigma sqrt(T)).
func D2(S, K, T, r, sigma float64) (d2 float64, ok bool) {
	d1, ok := D1(S, K, T, r, sigma)
	if !ok {
		return 0, false
	}
	return d1 - sigma*math.Sqrt(T), true
}

// NormCDF is the standard normal cumulative distribution.
func NormCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// ProbabilityAbove is the risk-neutral probability that the underlying
// finishes above level: N(d2) with level as the strike.
func ProbabilityAbove(S, level, T, r, sigma float64) (float64, bool) {
	d2, ok := D2(S, level, T, r, sigma)
	if !ok {
		return 0, false
	}
	return NormCDF(d2), true
}

// ProbabilityBelow is the risk-neutral probability that the underlying
// finishes below level: N(-d2).
func ProbabilityBelow(S, level, T, r, sigma float64) (float64, bool) {
	d2, ok := D2(S, level, T, r, sigma)
	if !ok {
		return 0, false
	}
	return NormCDF(-d2), true
}

// Price returns the Black-Scholes value of a European option. Degenerate
// inputs return intrinsic value.
func Price(isCall bool, S, K, T, r, sigma float64) float64 {
	d1, ok := D1(S, K, T, r, sigma)
	if !ok {
		if isCall {
			return math.Max(0, S-K)
		}
		return math.Max(0, K-S)
	}
	d2 := d1 - sigma*math.Sqrt(T)
	if isCall {
		return S*NormCDF(d1) - K*math.Exp(-r*T)*NormCDF(d2)
	}
	return K*math.Exp(-r*T)*NormCDF(-d2) - S*NormCDF(-d1)
}

// Delta returns the Black-Scholes delta. Degenerate inputs collapse to the
// expiry payoff slope (1/0 for calls, -1/0 for puts).
func Delta(isCall bool, S, K, T, r, sigma float64) float64 {
	d1, ok := D1(S, K, T, r, sigma)
	if !ok {
		switch {
		case isCall && S > K:
			return 1
		case !isCall && S < K:
			return -1
		}
		return 0
	}
	if isCall {
		return NormCDF(d1)
	}
	return NormCDF(d1) - 1
}

// ExpectedMove is the one-standard-deviation price move over T years.
func ExpectedMove(S, sigma, T float64) float64 {
	if S <= 0 || sigma <= 0 || T <= 0 {
		return 0
	}
	return S * sigma * math.Sqrt(T)
}
