package strategy

import (
	"fmt"
	"math"

	"optscore/internal/delivery"
	"optscore/internal/market"
	"optscore/internal/models"
	"optscore/internal/pricing"
)

// BuyPutWeights are the factor weights of the buy-put score.
type BuyPutWeights struct {
	BearishMomentum     float64
	SupportBreak        float64
	ValueEfficiency     float64
	VolatilityExpansion float64
	Liquidity           float64
	TimeValue           float64
}

// BuyPutConfig tunes the put-purchase scorer. Curves take:
//   - Momentum: negated day change percent, nudged by MABonus for MA alignment
//   - SupportBreak: distance from spot down to support or 52-week low
//   - ValueEfficiency: |delta| * spot / mid
//   - VolatilityExpansion: IV / HV, with VolatilityLevel on raw IV as fallback
//
// A VIX reading below CalmVIX adds VIXAdjust (protection is cheap); above
// StressVIX it subtracts VIXAdjust.
type BuyPutConfig struct {
	Weights             BuyPutWeights
	Momentum            pricing.Curve
	MABonus             float64
	SupportBreak        pricing.Curve
	BrokenSupportScore  float64
	ValueEfficiency     pricing.Curve
	Moneyness           MoneynessAdjust
	VolatilityExpansion pricing.Curve
	VolatilityLevel     pricing.Curve
	CalmVIX             float64
	StressVIX           float64
	VIXAdjust           float64
	TimeValue           pricing.Curve
	Liquidity           LiquidityCurves
}

// DefaultBuyPutConfig returns the tuned buy-put parameters.
func DefaultBuyPutConfig() BuyPutConfig {
	return BuyPutConfig{
		Weights: BuyPutWeights{
			BearishMomentum:     0.25,
			SupportBreak:        0.20,
			ValueEfficiency:     0.20,
			VolatilityExpansion: 0.15,
			Liquidity:           0.10,
			TimeValue:           0.10,
		},
		Momentum:            pricing.Curve{{X: -5, Y: 10}, {X: -2, Y: 30}, {X: 0, Y: 50}, {X: 2, Y: 70}, {X: 5, Y: 90}, {X: 8, Y: 100}},
		MABonus:             10,
		SupportBreak:        pricing.Curve{{X: 0, Y: 95}, {X: 0.02, Y: 85}, {X: 0.05, Y: 65}, {X: 0.10, Y: 45}, {X: 0.20, Y: 25}},
		BrokenSupportScore:  85,
		ValueEfficiency:     pricing.Curve{{X: 0, Y: 0}, {X: 2, Y: 25}, {X: 5, Y: 50}, {X: 10, Y: 75}, {X: 20, Y: 95}, {X: 30, Y: 100}},
		Moneyness:           MoneynessAdjust{DeepOTM: 0.15, DeepOTMFactor: 0.7, DeepITM: 0.15, DeepITMFactor: 0.85},
		VolatilityExpansion: pricing.Curve{{X: 0.7, Y: 100}, {X: 0.9, Y: 85}, {X: 1, Y: 70}, {X: 1.2, Y: 45}, {X: 1.5, Y: 20}, {X: 2, Y: 5}},
		VolatilityLevel:     pricing.Curve{{X: 0.15, Y: 85}, {X: 0.25, Y: 65}, {X: 0.40, Y: 40}, {X: 0.60, Y: 20}, {X: 1, Y: 5}},
		CalmVIX:             15,
		StressVIX:           30,
		VIXAdjust:           10,
		TimeValue:           pricing.Curve{{X: 1, Y: 5}, {X: 7, Y: 10}, {X: 14, Y: 35}, {X: 30, Y: 70}, {X: 45, Y: 95}, {X: 60, Y: 100}, {X: 90, Y: 75}, {X: 180, Y: 50}},
		Liquidity:           DefaultLiquidityCurves(),
	}
}

// BuyPutScorer scores put purchases, directional or protective.
type BuyPutScorer struct {
	cfg      BuyPutConfig
	delivery *delivery.Calculator
}

// NewBuyPutScorer creates a buy-put scorer.
func NewBuyPutScorer(cfg BuyPutConfig, dc *delivery.Calculator) *BuyPutScorer {
	if dc == nil {
		dc = delivery.NewCalculator(delivery.DefaultThresholds())
	}
	return &BuyPutScorer{cfg: cfg, delivery: dc}
}

func (s *BuyPutScorer) Strategy() models.Strategy { return models.BuyPut }

func (s *BuyPutScorer) Score(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) []models.ScoredOption {
	return run(s, s.delivery, side, u, cfg).scored
}

func (s *BuyPutScorer) Analyze(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) *models.StrategyResult {
	return analyze(s, s.delivery, side, u, cfg)
}

func (s *BuyPutScorer) strategy() models.Strategy { return models.BuyPut }

func (s *BuyPutScorer) eligible(c models.OptionContract, _ *env) bool {
	return c.Ask > 0
}

func (s *BuyPutScorer) factors(c models.OptionContract, e *env) []models.FactorScore {
	w := s.cfg.Weights
	return []models.FactorScore{
		newFactor(FactorBearishMomentum, w.BearishMomentum, e.momentum(s.cfg.Momentum, -1, s.cfg.MABonus)),
		newFactor(FactorSupportBreak, w.SupportBreak, e.levelDistance(s.cfg.SupportBreak, -1, s.cfg.BrokenSupportScore)),
		newFactor(FactorValueEfficiency, w.ValueEfficiency, e.valueEfficiency(c, c.Mid(), s.cfg.ValueEfficiency, s.cfg.Moneyness)),
		newFactor(FactorVolatilityExpansion, w.VolatilityExpansion, s.volatilityExpansion(c, e)),
		newFactor(FactorLiquidity, w.Liquidity, s.cfg.Liquidity.Score(c, e.cfg.Liquidity())),
		newFactor(FactorTimeValue, w.TimeValue, s.cfg.TimeValue.At(float64(c.DaysToExpiry))),
	}
}

func (s *BuyPutScorer) volatilityExpansion(c models.OptionContract, e *env) float64 {
	score := neutralScore
	if r, ok := e.ivRatio(c); ok {
		score = s.cfg.VolatilityExpansion.At(r)
	} else if iv := c.IV(); iv > 0 {
		score = s.cfg.VolatilityLevel.At(iv)
	}
	if e.u.Sentiment != nil && e.u.Sentiment.VIX != nil {
		switch vix := *e.u.Sentiment.VIX; {
		case vix < s.cfg.CalmVIX:
			score += s.cfg.VIXAdjust
		case vix > s.cfg.StressVIX:
			score -= s.cfg.VIXAdjust
		}
	}
	return score
}

func (s *BuyPutScorer) derive(so *models.ScoredOption, e *env) {
	mid := so.MidPrice
	so.Breakeven = so.Strike - mid
	so.MaxLoss = mid * e.multiplier
	so.MaxProfit = math.Max(0, so.Strike-mid) * e.multiplier
}

func (s *BuyPutScorer) advice(best models.ScoredOption, e *env) []string {
	var out []string
	if best.DaysToExpiry < 14 {
		out = append(out, fmt.Sprintf("Best contract expires in %d days; time decay will be rapid", best.DaysToExpiry))
	}
	if e.u.Sentiment != nil && e.u.Sentiment.VIX != nil && *e.u.Sentiment.VIX > s.cfg.StressVIX {
		out = append(out, fmt.Sprintf("VIX at %.1f makes protection expensive; consider smaller size or a later entry", *e.u.Sentiment.VIX))
	}
	if best.OTMPercent >= 0 && best.OTMPercent <= 0.05 {
		out = append(out, "Near-the-money puts can hedge an existing long position")
	}
	return out
}
