package strategy

import (
	"math"
	"time"

	"optscore/internal/market"
	"optscore/internal/models"
	"optscore/internal/pricing"
)

// Factor names as they appear in score breakdowns.
const (
	FactorPremiumYield        = "premium_yield"
	FactorSafetyMargin        = "safety_margin"
	FactorProbabilityOfProfit = "probability_of_profit"
	FactorLiquidity           = "liquidity"
	FactorTimeDecay           = "time_decay"
	FactorVolatilityPremium   = "volatility_premium"
	FactorOvervaluation       = "overvaluation"
	FactorResistanceLevel     = "resistance_level"
	FactorVolatilityTiming    = "volatility_timing"
	FactorBullishMomentum     = "bullish_momentum"
	FactorBreakoutPotential   = "breakout_potential"
	FactorValueEfficiency     = "value_efficiency"
	FactorTimeOptimization    = "time_optimization"
	FactorBearishMomentum     = "bearish_momentum"
	FactorSupportBreak        = "support_break"
	FactorVolatilityExpansion = "volatility_expansion"
	FactorTimeValue           = "time_value"
)

// neutralScore is substituted when an optional input is missing.
const neutralScore = 50.0

// LiquidityCurves scores spread, volume and open interest. The spread curve
// takes the spread as a multiple of the market's MaxSpreadPct; the activity
// curve takes volume or open interest as a multiple of the market minimum.
type LiquidityCurves struct {
	SpreadWeight       float64
	VolumeWeight       float64
	OpenInterestWeight float64
	Spread             pricing.Curve
	Activity           pricing.Curve
}

// DefaultLiquidityCurves returns the 40/30/30 spread/volume/OI blend.
func DefaultLiquidityCurves() LiquidityCurves {
	return LiquidityCurves{
		SpreadWeight:       0.4,
		VolumeWeight:       0.3,
		OpenInterestWeight: 0.3,
		Spread:             pricing.Curve{{X: 0, Y: 100}, {X: 0.5, Y: 85}, {X: 1, Y: 65}, {X: 2, Y: 30}, {X: 2.5, Y: 10}, {X: 4, Y: 0}},
		Activity:           pricing.Curve{{X: 0, Y: 0}, {X: 1, Y: 50}, {X: 5, Y: 75}, {X: 10, Y: 90}, {X: 20, Y: 100}},
	}
}

// Score returns the liquidity subscore. A missing bid or ask scores 0;
// volume and open interest both under the market minimums halve the result.
func (l LiquidityCurves) Score(c models.OptionContract, liq market.Liquidity) float64 {
	if c.Bid <= 0 || c.Ask <= 0 {
		return 0
	}
	maxSpread := liq.MaxSpreadPct
	if maxSpread <= 0 {
		maxSpread = 0.10
	}
	spread := SpreadPct(c)

	score := l.SpreadWeight*l.Spread.At(spread/maxSpread) +
		l.VolumeWeight*l.Activity.At(ratio(c.Volume, liq.MinVolume)) +
		l.OpenInterestWeight*l.Activity.At(ratio(c.OpenInterest, liq.MinOpenInterest))

	if c.Volume < liq.MinVolume && c.OpenInterest < liq.MinOpenInterest {
		score *= 0.5
	}
	return pricing.ClampScore(score)
}

func ratio(v, min int64) float64 {
	if min <= 0 {
		if v > 0 {
			return 10
		}
		return 0
	}
	return float64(v) / float64(min)
}

// SpreadPct is (ask - bid) / mid. Contracts without a two-sided quote
// return +Inf.
func SpreadPct(c models.OptionContract) float64 {
	if c.Bid <= 0 || c.Ask <= 0 {
		return math.Inf(1)
	}
	return (c.Ask - c.Bid) / ((c.Ask + c.Bid) / 2)
}

// OTMPercent is the distance from spot to strike as a fraction of spot,
// positive when the contract is out of the money.
func OTMPercent(c models.OptionContract, spot float64) float64 {
	if spot <= 0 {
		return 0
	}
	if c.Type == models.Put {
		return (spot - c.Strike) / spot
	}
	return (c.Strike - spot) / spot
}

// AssignmentTier buckets OTM distance at the 15/10/5/0% cutoffs.
func AssignmentTier(otm float64) models.AssignmentRisk {
	switch {
	case otm >= 0.15:
		return models.AssignmentVeryLow
	case otm >= 0.10:
		return models.AssignmentLow
	case otm >= 0.05:
		return models.AssignmentModerate
	case otm >= 0:
		return models.AssignmentHigh
	default:
		return models.AssignmentVeryHigh
	}
}

// env is the per-call scoring context shared by every contract of one side.
type env struct {
	u          models.UnderlyingSnapshot
	cfg        *market.Config
	spot       float64
	histVol    float64
	multiplier float64
	asOf       time.Time
}

func newEnv(u models.UnderlyingSnapshot, cfg *market.Config) *env {
	e := &env{
		u:       u,
		cfg:     cfg,
		spot:    u.CurrentPrice,
		histVol: u.HistVol(),
		asOf:    u.AsOf,
	}
	if u.Symbol != "" {
		e.multiplier = cfg.MultiplierFor(u.Symbol)
	} else {
		e.multiplier = cfg.DefaultMultiplier()
	}
	return e
}

// sigma is the volatility used for model terms: the contract's IV, else the
// underlying's historical volatility. Zero means unavailable.
func (e *env) sigma(c models.OptionContract) float64 {
	if iv := c.IV(); iv > 0 {
		return iv
	}
	return e.histVol
}

// years returns T for the contract.
func (e *env) years(c models.OptionContract) float64 {
	return pricing.Years(c.DaysToExpiry)
}

// delta prefers the quoted greek and falls back to a model delta.
func (e *env) delta(c models.OptionContract) float64 {
	if c.Greeks != nil && c.Greeks.Delta != 0 && !math.IsNaN(c.Greeks.Delta) {
		return c.Greeks.Delta
	}
	return pricing.Delta(c.Type == models.Call, e.spot, c.Strike, e.years(c), e.cfg.RiskFreeRate(), e.sigma(c))
}

// ivRatio returns IV / HV, and false when either side is unavailable.
func (e *env) ivRatio(c models.OptionContract) (float64, bool) {
	iv := c.IV()
	if iv <= 0 || e.histVol <= 0 {
		return 0, false
	}
	return iv / e.histVol, true
}

// annualized scales a per-period return to a 365-day year.
func annualized(ret float64, dte int) float64 {
	if dte <= 0 {
		return 0
	}
	return ret * 365 / float64(dte)
}

// elasticity is |delta| * S / mid: percentage move of the option per 1%
// move in the underlying.
func (e *env) elasticity(c models.OptionContract, mid float64) float64 {
	if mid <= 0 {
		return 0
	}
	return math.Abs(e.delta(c)) * e.spot / mid
}

// MoneynessAdjust scales value efficiency by moneyness band.
type MoneynessAdjust struct {
	DeepOTM       float64 // OTM fraction beyond which DeepOTMFactor applies
	DeepOTMFactor float64
	DeepITM       float64 // ITM fraction beyond which DeepITMFactor applies
	DeepITMFactor float64
}

func (m MoneynessAdjust) apply(score, otm float64) float64 {
	switch {
	case otm > m.DeepOTM:
		return score * m.DeepOTMFactor
	case otm < -m.DeepITM:
		return score * m.DeepITMFactor
	}
	return score
}

// valueEfficiency scores directional leverage per unit of premium.
func (e *env) valueEfficiency(c models.OptionContract, mid float64, curve pricing.Curve, adj MoneynessAdjust) float64 {
	score := curve.At(e.elasticity(c, mid))
	return adj.apply(score, OTMPercent(c, e.spot))
}

// momentum scores a move in the wanted direction. sign is +1 for bullish and
// -1 for bearish; MA alignment nudges the result when MAs are known.
func (e *env) momentum(curve pricing.Curve, sign, maBonus float64) float64 {
	score := curve.At(sign * e.u.ChangePercent)
	if e.u.MA50 != nil && *e.u.MA50 > 0 {
		if sign*(e.spot-*e.u.MA50) > 0 {
			score += maBonus
		} else {
			score -= maBonus
		}
		if e.u.MA200 != nil && *e.u.MA200 > 0 {
			if sign*(*e.u.MA50-*e.u.MA200) > 0 {
				score += maBonus
			} else {
				score -= maBonus
			}
		}
	}
	return pricing.ClampScore(score)
}

// levelDistance scores proximity to the nearest level in the wanted
// direction: resistance/52-week high above spot for sign=+1, support/52-week
// low below spot for sign=-1. brokenScore applies when spot is already
// through the explicit level; missing levels score neutral.
func (e *env) levelDistance(curve pricing.Curve, sign, brokenScore float64) float64 {
	var level *float64
	var extreme float64
	if sign > 0 {
		level, extreme = e.u.Resistance, e.u.Week52High
	} else {
		level, extreme = e.u.Support, e.u.Week52Low
	}

	candidates := make([]float64, 0, 2)
	broken := false
	if level != nil && *level > 0 {
		if sign*(*level-e.spot) > 0 {
			candidates = append(candidates, *level)
		} else {
			broken = true
		}
	}
	if extreme > 0 && sign*(extreme-e.spot) > 0 {
		candidates = append(candidates, extreme)
	}
	if len(candidates) == 0 {
		if broken {
			return brokenScore
		}
		return neutralScore
	}
	nearest := math.Abs(candidates[0] - e.spot)
	for _, c := range candidates[1:] {
		nearest = math.Min(nearest, math.Abs(c-e.spot))
	}
	return curve.At(nearest / e.spot)
}

// newFactor clamps the subscore and applies the weight.
func newFactor(name string, weight, score float64) models.FactorScore {
	s := round2(pricing.ClampScore(score))
	return models.FactorScore{
		Name:     name,
		Weight:   weight,
		Score:    s,
		Weighted: s * weight,
	}
}

func sumFactors(factors []models.FactorScore) float64 {
	var total float64
	for _, f := range factors {
		total += f.Weighted
	}
	return pricing.ClampScore(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
