package strategy

import (
	"fmt"

	"optscore/internal/delivery"
	"optscore/internal/market"
	"optscore/internal/models"
	"optscore/internal/pricing"
)

// SellPutWeights are the factor weights of the sell-put score. They sum to 1.
type SellPutWeights struct {
	PremiumYield        float64
	SafetyMargin        float64
	ProbabilityOfProfit float64
	Liquidity           float64
	TimeDecay           float64
	VolatilityPremium   float64
}

// SellPutConfig tunes the cash-secured put scorer. Curves take:
//   - PremiumYield: annualized mid / strike
//   - SafetyMargin: OTM distance in expected one-sigma moves
//   - SafetyMarginOTM: raw OTM fraction, used when volatility is unknown
//   - VolatilityPremium: IV / HV
//   - VolatilityLevel: raw IV, used when HV is unknown
//
// ProbabilityFallback maps OTM fraction to win probability when the
// Black-Scholes inputs are degenerate. Strikes above spot * MaxStrikeRatio
// are excluded.
type SellPutConfig struct {
	Weights             SellPutWeights
	MaxStrikeRatio      float64
	PremiumYield        pricing.Curve
	SafetyMargin        pricing.Curve
	SafetyMarginOTM     pricing.Curve
	ProbabilityFallback pricing.Ladder
	TimeDecay           pricing.Curve
	VolatilityPremium   pricing.Curve
	VolatilityLevel     pricing.Curve
	Liquidity           LiquidityCurves
}

// DefaultSellPutConfig returns the tuned sell-put parameters.
func DefaultSellPutConfig() SellPutConfig {
	return SellPutConfig{
		Weights: SellPutWeights{
			PremiumYield:        0.25,
			SafetyMargin:        0.20,
			ProbabilityOfProfit: 0.20,
			Liquidity:           0.15,
			TimeDecay:           0.10,
			VolatilityPremium:   0.10,
		},
		MaxStrikeRatio:  1.02,
		PremiumYield:    pricing.Curve{{X: 0, Y: 0}, {X: 0.08, Y: 40}, {X: 0.15, Y: 60}, {X: 0.25, Y: 80}, {X: 0.40, Y: 100}},
		SafetyMargin:    pricing.Curve{{X: 0, Y: 10}, {X: 0.5, Y: 40}, {X: 1, Y: 70}, {X: 1.5, Y: 90}, {X: 2, Y: 100}},
		SafetyMarginOTM: pricing.Curve{{X: 0, Y: 10}, {X: 0.05, Y: 50}, {X: 0.10, Y: 80}, {X: 0.15, Y: 100}},
		ProbabilityFallback: pricing.Ladder{
			Rungs: []pricing.Rung{{Min: 0.15, Value: 0.90}, {Min: 0.10, Value: 0.80}, {Min: 0.05, Value: 0.70}, {Min: 0, Value: 0.55}},
			Floor: 0.40,
		},
		TimeDecay:         pricing.Curve{{X: 1, Y: 20}, {X: 7, Y: 40}, {X: 15, Y: 85}, {X: 30, Y: 100}, {X: 45, Y: 95}, {X: 60, Y: 70}, {X: 90, Y: 45}, {X: 180, Y: 20}},
		VolatilityPremium: pricing.Curve{{X: 0.7, Y: 20}, {X: 1, Y: 50}, {X: 1.2, Y: 70}, {X: 1.5, Y: 90}, {X: 2, Y: 100}},
		VolatilityLevel:   pricing.Curve{{X: 0.1, Y: 20}, {X: 0.2, Y: 45}, {X: 0.3, Y: 65}, {X: 0.5, Y: 85}, {X: 0.8, Y: 100}},
		Liquidity:         DefaultLiquidityCurves(),
	}
}

// SellPutScorer scores cash-secured put sales.
type SellPutScorer struct {
	cfg      SellPutConfig
	delivery *delivery.Calculator
}

// NewSellPutScorer creates a sell-put scorer.
func NewSellPutScorer(cfg SellPutConfig, dc *delivery.Calculator) *SellPutScorer {
	if dc == nil {
		dc = delivery.NewCalculator(delivery.DefaultThresholds())
	}
	return &SellPutScorer{cfg: cfg, delivery: dc}
}

func (s *SellPutScorer) Strategy() models.Strategy { return models.SellPut }

func (s *SellPutScorer) Score(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) []models.ScoredOption {
	return run(s, s.delivery, side, u, cfg).scored
}

func (s *SellPutScorer) Analyze(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) *models.StrategyResult {
	return analyze(s, s.delivery, side, u, cfg)
}

func (s *SellPutScorer) strategy() models.Strategy { return models.SellPut }

// eligible keeps strikes at or below spot * MaxStrikeRatio with a bid and
// positive time value. Selling pure intrinsic value is excluded.
func (s *SellPutScorer) eligible(c models.OptionContract, e *env) bool {
	return c.Strike <= e.spot*s.cfg.MaxStrikeRatio &&
		c.Bid > 0 &&
		c.TimeValue(e.spot) > 0
}

func (s *SellPutScorer) factors(c models.OptionContract, e *env) []models.FactorScore {
	w := s.cfg.Weights
	mid := c.Mid()
	return []models.FactorScore{
		newFactor(FactorPremiumYield, w.PremiumYield, s.cfg.PremiumYield.At(annualized(mid/c.Strike, c.DaysToExpiry))),
		newFactor(FactorSafetyMargin, w.SafetyMargin, s.safetyMargin(c, e)),
		newFactor(FactorProbabilityOfProfit, w.ProbabilityOfProfit, s.probability(c, e, mid)*100),
		newFactor(FactorLiquidity, w.Liquidity, s.cfg.Liquidity.Score(c, e.cfg.Liquidity())),
		newFactor(FactorTimeDecay, w.TimeDecay, s.cfg.TimeDecay.At(float64(c.DaysToExpiry))),
		newFactor(FactorVolatilityPremium, w.VolatilityPremium, s.volatilityPremium(c, e)),
	}
}

func (s *SellPutScorer) safetyMargin(c models.OptionContract, e *env) float64 {
	otm := OTMPercent(c, e.spot)
	move := pricing.ExpectedMove(e.spot, e.sigma(c), e.years(c))
	if move <= 0 {
		return s.cfg.SafetyMarginOTM.At(otm)
	}
	return s.cfg.SafetyMargin.At(otm * e.spot / move)
}

// probability is P(S_T > breakeven), or the OTM ladder when the model
// inputs are degenerate.
func (s *SellPutScorer) probability(c models.OptionContract, e *env, mid float64) float64 {
	if p, ok := pricing.ProbabilityAbove(e.spot, c.Strike-mid, e.years(c), e.cfg.RiskFreeRate(), e.sigma(c)); ok {
		return p
	}
	return s.cfg.ProbabilityFallback.At(OTMPercent(c, e.spot))
}

func (s *SellPutScorer) volatilityPremium(c models.OptionContract, e *env) float64 {
	if r, ok := e.ivRatio(c); ok {
		return s.cfg.VolatilityPremium.At(r)
	}
	if iv := c.IV(); iv > 0 {
		return s.cfg.VolatilityLevel.At(iv)
	}
	return neutralScore
}

func (s *SellPutScorer) derive(so *models.ScoredOption, e *env) {
	mid := so.MidPrice
	so.Breakeven = so.Strike - mid
	so.MaxProfit = mid * e.multiplier
	so.MaxLoss = (so.Strike - mid) * e.multiplier
}

func (s *SellPutScorer) advice(best models.ScoredOption, e *env) []string {
	var out []string
	if best.OTMPercent < 0.05 {
		out = append(out, fmt.Sprintf("Best strike %.2f is within 5%% of spot; assignment risk is elevated", best.Strike))
	}
	out = append(out, fmt.Sprintf("Keep %.2f %s per contract in cash to secure the put", best.Strike*e.multiplier, e.cfg.Currency()))
	return out
}
