package strategy

import (
	"fmt"

	"optscore/internal/delivery"
	"optscore/internal/market"
	"optscore/internal/models"
	"optscore/internal/pricing"
)

// BuyCallWeights are the factor weights of the buy-call score.
type BuyCallWeights struct {
	BullishMomentum   float64
	BreakoutPotential float64
	ValueEfficiency   float64
	VolatilityTiming  float64
	Liquidity         float64
	TimeOptimization  float64
}

// BuyCallConfig tunes the call-purchase scorer. Curves take:
//   - Momentum: day change percent, nudged by MABonus for MA alignment
//   - Breakout: distance from spot to resistance or 52-week high, as a fraction
//   - ValueEfficiency: |delta| * spot / mid
//   - VolatilityTiming: IV / HV (cheap volatility scores high), with
//     VolatilityLevel on raw IV as fallback
type BuyCallConfig struct {
	Weights          BuyCallWeights
	Momentum         pricing.Curve
	MABonus          float64
	Breakout         pricing.Curve
	BrokenOutScore   float64
	ValueEfficiency  pricing.Curve
	Moneyness        MoneynessAdjust
	VolatilityTiming pricing.Curve
	VolatilityLevel  pricing.Curve
	TimeOptimization pricing.Curve
	Liquidity        LiquidityCurves
}

// DefaultBuyCallConfig returns the tuned buy-call parameters.
func DefaultBuyCallConfig() BuyCallConfig {
	return BuyCallConfig{
		Weights: BuyCallWeights{
			BullishMomentum:   0.25,
			BreakoutPotential: 0.20,
			ValueEfficiency:   0.20,
			VolatilityTiming:  0.15,
			Liquidity:         0.10,
			TimeOptimization:  0.10,
		},
		Momentum:         pricing.Curve{{X: -5, Y: 10}, {X: -2, Y: 30}, {X: 0, Y: 50}, {X: 2, Y: 70}, {X: 5, Y: 90}, {X: 8, Y: 100}},
		MABonus:          10,
		Breakout:         pricing.Curve{{X: 0, Y: 95}, {X: 0.02, Y: 85}, {X: 0.05, Y: 65}, {X: 0.10, Y: 45}, {X: 0.20, Y: 25}},
		BrokenOutScore:   80,
		ValueEfficiency:  pricing.Curve{{X: 0, Y: 0}, {X: 2, Y: 25}, {X: 5, Y: 50}, {X: 10, Y: 75}, {X: 20, Y: 95}, {X: 30, Y: 100}},
		Moneyness:        MoneynessAdjust{DeepOTM: 0.15, DeepOTMFactor: 0.7, DeepITM: 0.15, DeepITMFactor: 0.85},
		VolatilityTiming: pricing.Curve{{X: 0.7, Y: 100}, {X: 0.9, Y: 80}, {X: 1, Y: 65}, {X: 1.2, Y: 40}, {X: 1.5, Y: 15}, {X: 2, Y: 0}},
		VolatilityLevel:  pricing.Curve{{X: 0.15, Y: 85}, {X: 0.25, Y: 65}, {X: 0.40, Y: 40}, {X: 0.60, Y: 20}, {X: 1, Y: 5}},
		TimeOptimization: pricing.Curve{{X: 1, Y: 5}, {X: 7, Y: 15}, {X: 14, Y: 40}, {X: 30, Y: 75}, {X: 45, Y: 100}, {X: 60, Y: 95}, {X: 90, Y: 70}, {X: 180, Y: 45}},
		Liquidity:        DefaultLiquidityCurves(),
	}
}

// BuyCallScorer scores call purchases.
type BuyCallScorer struct {
	cfg      BuyCallConfig
	delivery *delivery.Calculator
}

// NewBuyCallScorer creates a buy-call scorer.
func NewBuyCallScorer(cfg BuyCallConfig, dc *delivery.Calculator) *BuyCallScorer {
	if dc == nil {
		dc = delivery.NewCalculator(delivery.DefaultThresholds())
	}
	return &BuyCallScorer{cfg: cfg, delivery: dc}
}

func (s *BuyCallScorer) Strategy() models.Strategy { return models.BuyCall }

func (s *BuyCallScorer) Score(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) []models.ScoredOption {
	return run(s, s.delivery, side, u, cfg).scored
}

func (s *BuyCallScorer) Analyze(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) *models.StrategyResult {
	return analyze(s, s.delivery, side, u, cfg)
}

func (s *BuyCallScorer) strategy() models.Strategy { return models.BuyCall }

func (s *BuyCallScorer) eligible(c models.OptionContract, _ *env) bool {
	return c.Ask > 0
}

func (s *BuyCallScorer) factors(c models.OptionContract, e *env) []models.FactorScore {
	w := s.cfg.Weights
	return []models.FactorScore{
		newFactor(FactorBullishMomentum, w.BullishMomentum, e.momentum(s.cfg.Momentum, 1, s.cfg.MABonus)),
		newFactor(FactorBreakoutPotential, w.BreakoutPotential, e.levelDistance(s.cfg.Breakout, 1, s.cfg.BrokenOutScore)),
		newFactor(FactorValueEfficiency, w.ValueEfficiency, e.valueEfficiency(c, c.Mid(), s.cfg.ValueEfficiency, s.cfg.Moneyness)),
		newFactor(FactorVolatilityTiming, w.VolatilityTiming, s.volatilityTiming(c, e)),
		newFactor(FactorLiquidity, w.Liquidity, s.cfg.Liquidity.Score(c, e.cfg.Liquidity())),
		newFactor(FactorTimeOptimization, w.TimeOptimization, s.cfg.TimeOptimization.At(float64(c.DaysToExpiry))),
	}
}

func (s *BuyCallScorer) volatilityTiming(c models.OptionContract, e *env) float64 {
	if r, ok := e.ivRatio(c); ok {
		return s.cfg.VolatilityTiming.At(r)
	}
	if iv := c.IV(); iv > 0 {
		return s.cfg.VolatilityLevel.At(iv)
	}
	return neutralScore
}

func (s *BuyCallScorer) derive(so *models.ScoredOption, e *env) {
	mid := so.MidPrice
	so.Breakeven = so.Strike + mid
	so.MaxLoss = mid * e.multiplier
	so.MaxProfitUnlimited = true
}

func (s *BuyCallScorer) advice(best models.ScoredOption, e *env) []string {
	var out []string
	if best.DaysToExpiry < 14 {
		out = append(out, fmt.Sprintf("Best contract expires in %d days; time decay will be rapid", best.DaysToExpiry))
	}
	if best.OTMPercent > 0.10 {
		out = append(out, "Best strike is far out of the money; it needs a large move to pay off")
	}
	if len(out) == 0 {
		out = append(out, fmt.Sprintf("Risk is limited to the premium paid: %.2f %s per contract", best.MaxLoss, e.cfg.Currency()))
	}
	return out
}
