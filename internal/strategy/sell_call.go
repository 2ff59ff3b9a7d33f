package strategy

import (
	"fmt"

	"optscore/internal/delivery"
	"optscore/internal/market"
	"optscore/internal/models"
	"optscore/internal/pricing"
)

// SellCallWeights are the factor weights of the sell-call score.
type SellCallWeights struct {
	PremiumYield     float64
	Overvaluation    float64
	ResistanceLevel  float64
	Liquidity        float64
	TimeDecay        float64
	VolatilityTiming float64
}

// SellCallConfig tunes the call-sale scorer. Curves take:
//   - PremiumYield: annualized mid / spot
//   - MADeviation: (spot - MA50) / MA50
//   - Resistance: (strike - spot) / (resistance - spot)
//   - VolatilityTiming: IV / HV, with VolatilityLevel on raw IV as fallback
//
// Overvaluation blends the 52-week range position (RangeWeight) with the MA50
// deviation. RallyBonus is added to volatility timing when the underlying is
// up at least RallyThreshold percent on the day.
type SellCallConfig struct {
	Weights              SellCallWeights
	MinStrikeRatio       float64
	PremiumYield         pricing.Curve
	RangeWeight          float64
	MADeviation          pricing.Curve
	Resistance           pricing.Curve
	AboveResistanceScore float64
	TimeDecay            pricing.Curve
	VolatilityTiming     pricing.Curve
	VolatilityLevel      pricing.Curve
	RallyThreshold       float64
	RallyBonus           float64
	Liquidity            LiquidityCurves
}

// DefaultSellCallConfig returns the tuned sell-call parameters.
func DefaultSellCallConfig() SellCallConfig {
	return SellCallConfig{
		Weights: SellCallWeights{
			PremiumYield:     0.25,
			Overvaluation:    0.20,
			ResistanceLevel:  0.20,
			Liquidity:        0.15,
			TimeDecay:        0.10,
			VolatilityTiming: 0.10,
		},
		MinStrikeRatio:       0.95,
		PremiumYield:         pricing.Curve{{X: 0, Y: 0}, {X: 0.06, Y: 40}, {X: 0.12, Y: 60}, {X: 0.20, Y: 80}, {X: 0.35, Y: 100}},
		RangeWeight:          0.6,
		MADeviation:          pricing.Curve{{X: -0.10, Y: 0}, {X: 0, Y: 40}, {X: 0.05, Y: 70}, {X: 0.10, Y: 90}, {X: 0.20, Y: 100}},
		Resistance:           pricing.Curve{{X: 0, Y: 20}, {X: 0.5, Y: 50}, {X: 1, Y: 85}, {X: 1.5, Y: 100}},
		AboveResistanceScore: 30,
		TimeDecay:            pricing.Curve{{X: 1, Y: 15}, {X: 7, Y: 35}, {X: 14, Y: 80}, {X: 21, Y: 95}, {X: 30, Y: 100}, {X: 45, Y: 90}, {X: 60, Y: 65}, {X: 90, Y: 40}},
		VolatilityTiming:     pricing.Curve{{X: 0.7, Y: 20}, {X: 1, Y: 50}, {X: 1.3, Y: 75}, {X: 1.6, Y: 95}, {X: 2, Y: 100}},
		VolatilityLevel:      pricing.Curve{{X: 0.1, Y: 20}, {X: 0.2, Y: 45}, {X: 0.3, Y: 65}, {X: 0.5, Y: 85}, {X: 0.8, Y: 100}},
		RallyThreshold:       2,
		RallyBonus:           10,
		Liquidity:            DefaultLiquidityCurves(),
	}
}

// SellCallScorer scores call sales.
type SellCallScorer struct {
	cfg      SellCallConfig
	delivery *delivery.Calculator
}

// NewSellCallScorer creates a sell-call scorer.
func NewSellCallScorer(cfg SellCallConfig, dc *delivery.Calculator) *SellCallScorer {
	if dc == nil {
		dc = delivery.NewCalculator(delivery.DefaultThresholds())
	}
	return &SellCallScorer{cfg: cfg, delivery: dc}
}

func (s *SellCallScorer) Strategy() models.Strategy { return models.SellCall }

func (s *SellCallScorer) Score(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) []models.ScoredOption {
	return run(s, s.delivery, side, u, cfg).scored
}

func (s *SellCallScorer) Analyze(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) *models.StrategyResult {
	return analyze(s, s.delivery, side, u, cfg)
}

func (s *SellCallScorer) strategy() models.Strategy { return models.SellCall }

func (s *SellCallScorer) eligible(c models.OptionContract, e *env) bool {
	return c.Strike >= e.spot*s.cfg.MinStrikeRatio && c.Bid > 0
}

func (s *SellCallScorer) factors(c models.OptionContract, e *env) []models.FactorScore {
	w := s.cfg.Weights
	return []models.FactorScore{
		newFactor(FactorPremiumYield, w.PremiumYield, s.cfg.PremiumYield.At(annualized(c.Mid()/e.spot, c.DaysToExpiry))),
		newFactor(FactorOvervaluation, w.Overvaluation, s.overvaluation(e)),
		newFactor(FactorResistanceLevel, w.ResistanceLevel, s.resistance(c, e)),
		newFactor(FactorLiquidity, w.Liquidity, s.cfg.Liquidity.Score(c, e.cfg.Liquidity())),
		newFactor(FactorTimeDecay, w.TimeDecay, s.cfg.TimeDecay.At(float64(c.DaysToExpiry))),
		newFactor(FactorVolatilityTiming, w.VolatilityTiming, s.volatilityTiming(c, e)),
	}
}

// overvaluation is high when spot sits near the top of its 52-week range
// and above its MA50.
func (s *SellCallScorer) overvaluation(e *env) float64 {
	rangePos := neutralScore
	if hi, lo := e.u.Week52High, e.u.Week52Low; hi > lo && lo > 0 {
		rangePos = pricing.ClampScore((e.spot - lo) / (hi - lo) * 100)
	}
	maScore := neutralScore
	if e.u.MA50 != nil && *e.u.MA50 > 0 {
		maScore = s.cfg.MADeviation.At((e.spot - *e.u.MA50) / *e.u.MA50)
	}
	return s.cfg.RangeWeight*rangePos + (1-s.cfg.RangeWeight)*maScore
}

// resistance rewards strikes at or beyond the nearest overhead level.
func (s *SellCallScorer) resistance(c models.OptionContract, e *env) float64 {
	level := 0.0
	if e.u.Resistance != nil && *e.u.Resistance > 0 {
		level = *e.u.Resistance
		if level <= e.spot {
			return s.cfg.AboveResistanceScore
		}
	} else if e.u.Week52High > e.spot {
		level = e.u.Week52High
	}
	if level <= e.spot {
		return neutralScore
	}
	return s.cfg.Resistance.At((c.Strike - e.spot) / (level - e.spot))
}

func (s *SellCallScorer) volatilityTiming(c models.OptionContract, e *env) float64 {
	score := neutralScore
	if r, ok := e.ivRatio(c); ok {
		score = s.cfg.VolatilityTiming.At(r)
	} else if iv := c.IV(); iv > 0 {
		score = s.cfg.VolatilityLevel.At(iv)
	}
	if e.u.ChangePercent >= s.cfg.RallyThreshold {
		score += s.cfg.RallyBonus
	}
	return score
}

func (s *SellCallScorer) derive(so *models.ScoredOption, e *env) {
	mid := so.MidPrice
	so.Breakeven = so.Strike + mid
	so.MaxProfit = mid * e.multiplier
	so.MaxLossUnlimited = true
}

func (s *SellCallScorer) advice(best models.ScoredOption, e *env) []string {
	out := []string{"Uncovered calls carry unlimited upside risk; sell against held shares or size conservatively"}
	if e.u.ChangePercent >= s.cfg.RallyThreshold {
		out = append(out, fmt.Sprintf("Underlying is up %.1f%% today; elevated premiums favor selling into strength", e.u.ChangePercent))
	}
	return out
}
