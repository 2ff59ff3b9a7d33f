// Package risk aggregates per-strategy risk into a portfolio view and sizes
// positions against a risk budget.
package risk

import (
	"fmt"
	"math"
	"sort"

	"optscore/internal/models"
	"optscore/internal/pricing"
	"optscore/internal/strategy"
)

// PortfolioConfig holds the portfolio risk weights and curves.
type PortfolioConfig struct {
	BaseRisk map[models.Strategy]float64

	BaseWeight   float64
	MarketWeight float64
	OptionWeight float64

	// Market risk blends realized volatility with the size of the day's move.
	VolatilityWeight float64
	Volatility       pricing.Curve
	Momentum         pricing.Curve

	// Option risk blends time to expiry, strike distance and illiquidity.
	DTEWeight       float64
	DistanceWeight  float64
	LiquidityWeight float64
	DTE             pricing.Curve
	SellerDistance  pricing.Curve
	BuyerDistance   pricing.Curve

	// Score adjustments by VRP tier. Cheap options hurt sellers and rich
	// options hurt buyers; the favorable side gets a small credit.
	SellerVRP map[models.VRPTier]float64
	BuyerVRP  map[models.VRPTier]float64

	DiversificationPerStrategy float64
	DiversificationCap         float64
	PairCorrelation            float64 // two strategies share a bias
	ClusterCorrelation         float64 // three or more share a bias

	LowBelow      float64
	ModerateBelow float64
	HighBelow     float64
}

// DefaultPortfolioConfig returns the standard portfolio risk model.
func DefaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{
		BaseRisk: map[models.Strategy]float64{
			models.SellPut:  50,
			models.SellCall: 65,
			models.BuyCall:  55,
			models.BuyPut:   45,
		},
		BaseWeight:       0.4,
		MarketWeight:     0.4,
		OptionWeight:     0.2,
		VolatilityWeight: 0.6,
		Volatility:       pricing.Curve{{X: 0.10, Y: 20}, {X: 0.20, Y: 40}, {X: 0.35, Y: 65}, {X: 0.60, Y: 90}},
		Momentum:         pricing.Curve{{X: 0, Y: 20}, {X: 2, Y: 50}, {X: 5, Y: 80}, {X: 10, Y: 100}},
		DTEWeight:        0.4,
		DistanceWeight:   0.4,
		LiquidityWeight:  0.2,
		DTE:              pricing.Curve{{X: 7, Y: 80}, {X: 30, Y: 50}, {X: 60, Y: 35}, {X: 120, Y: 25}},
		SellerDistance:   pricing.Curve{{X: 0, Y: 80}, {X: 0.05, Y: 55}, {X: 0.10, Y: 35}, {X: 0.20, Y: 20}},
		BuyerDistance:    pricing.Curve{{X: 0, Y: 35}, {X: 0.05, Y: 50}, {X: 0.10, Y: 70}, {X: 0.20, Y: 90}},

		SellerVRP: map[models.VRPTier]float64{
			models.VRPHighPremium:     -5,
			models.VRPModeratePremium: -3,
			models.VRPLowPremium:      8,
			models.VRPNegativePremium: 15,
		},
		BuyerVRP: map[models.VRPTier]float64{
			models.VRPHighPremium:     15,
			models.VRPModeratePremium: 8,
			models.VRPLowPremium:      -3,
			models.VRPNegativePremium: -5,
		},

		DiversificationPerStrategy: 5,
		DiversificationCap:         20,
		PairCorrelation:            10,
		ClusterCorrelation:         15,

		LowBelow:      30,
		ModerateBelow: 50,
		HighBelow:     70,
	}
}

// PortfolioAssessor scores the combined risk of each strategy's best contract.
type PortfolioAssessor struct {
	cfg PortfolioConfig
}

// NewPortfolioAssessor creates an assessor.
func NewPortfolioAssessor(cfg PortfolioConfig) *PortfolioAssessor {
	return &PortfolioAssessor{cfg: cfg}
}

var levelDescriptions = map[models.PortfolioRiskLevel]string{
	models.PortfolioLow:      "Low portfolio risk: positions are diversified and conservatively placed.",
	models.PortfolioModerate: "Moderate portfolio risk: acceptable for most accounts with normal monitoring.",
	models.PortfolioHigh:     "High portfolio risk: exposure is concentrated or the market is volatile.",
	models.PortfolioVeryHigh: "Very high portfolio risk: reduce exposure before adding positions.",
}

// Assess returns nil when no strategy has a recommendation. vrp may be nil,
// in which case no volatility regime adjustment is applied.
func (a *PortfolioAssessor) Assess(results map[models.Strategy]*models.StrategyResult, u models.UnderlyingSnapshot, vrp *models.VRPResult) *models.PortfolioRiskAssessment {
	market := a.marketRisk(u)

	risks := make(map[models.Strategy]models.StrategyRisk)
	var order []models.Strategy
	for _, s := range models.Strategies() {
		best, ok := results[s].Best()
		if !ok {
			continue
		}
		base := a.cfg.BaseRisk[s]
		opt := a.optionRisk(best)
		adj := a.vrpRisk(s, vrp)
		risks[s] = models.StrategyRisk{
			Strategy:   s,
			BaseRisk:   base,
			MarketRisk: round2(market),
			OptionRisk: round2(opt),
			VRPRisk:    adj,
			Score:      round2(pricing.ClampScore(a.cfg.BaseWeight*base + a.cfg.MarketWeight*market + a.cfg.OptionWeight*opt + adj)),
		}
		order = append(order, s)
	}
	if len(order) == 0 {
		return nil
	}

	var sum, maxRisk float64
	for _, s := range order {
		sum += risks[s].Score
		maxRisk = math.Max(maxRisk, risks[s].Score)
	}
	n := len(order)
	mean := sum / float64(n)

	out := &models.PortfolioRiskAssessment{
		StrategyRisks:        risks,
		MeanStrategyRisk:     round2(mean),
		DiversificationBonus: math.Min(a.cfg.DiversificationPerStrategy*float64(n), a.cfg.DiversificationCap),
		ConcentrationPenalty: round2((maxRisk - mean) / 2),
	}

	bias, shared := largestBiasGroup(order)
	switch {
	case shared >= 3:
		out.CorrelationPenalty = a.cfg.ClusterCorrelation
	case shared >= 2:
		out.CorrelationPenalty = a.cfg.PairCorrelation
	}

	score := mean - out.DiversificationBonus + out.ConcentrationPenalty + out.CorrelationPenalty
	out.Score = round2(pricing.ClampScore(score))
	out.Level = a.level(out.Score)
	out.Description = levelDescriptions[out.Level]
	out.Suggestions = a.suggestions(out, order, bias, shared, market, vrp)
	return out
}

func (a *PortfolioAssessor) marketRisk(u models.UnderlyingSnapshot) float64 {
	vol := a.cfg.Volatility.At(u.HistVol())
	if u.HistVol() <= 0 {
		vol = 50
	}
	mom := a.cfg.Momentum.At(math.Abs(u.ChangePercent))
	return a.cfg.VolatilityWeight*vol + (1-a.cfg.VolatilityWeight)*mom
}

func (a *PortfolioAssessor) vrpRisk(s models.Strategy, vrp *models.VRPResult) float64 {
	if vrp == nil {
		return 0
	}
	if s.IsSeller() {
		return a.cfg.SellerVRP[vrp.Tier]
	}
	return a.cfg.BuyerVRP[vrp.Tier]
}

func (a *PortfolioAssessor) optionRisk(so models.ScoredOption) float64 {
	dte := a.cfg.DTE.At(float64(so.DaysToExpiry))

	distance := a.cfg.BuyerDistance
	if so.Strategy.IsSeller() {
		distance = a.cfg.SellerDistance
	}
	dist := distance.At(math.Abs(so.OTMPercent))
	if so.Strategy.IsSeller() && so.OTMPercent < 0 {
		dist = distance.At(0)
	}

	illiquid := 50.0
	if f, ok := so.Factor(strategy.FactorLiquidity); ok {
		illiquid = 100 - f.Score
	}

	return a.cfg.DTEWeight*dte + a.cfg.DistanceWeight*dist + a.cfg.LiquidityWeight*illiquid
}

func (a *PortfolioAssessor) level(score float64) models.PortfolioRiskLevel {
	switch {
	case score < a.cfg.LowBelow:
		return models.PortfolioLow
	case score < a.cfg.ModerateBelow:
		return models.PortfolioModerate
	case score < a.cfg.HighBelow:
		return models.PortfolioHigh
	default:
		return models.PortfolioVeryHigh
	}
}

// largestBiasGroup returns the most common directional bias and its count.
func largestBiasGroup(strategies []models.Strategy) (models.DirectionalBias, int) {
	counts := make(map[models.DirectionalBias]int)
	for _, s := range strategies {
		counts[s.Bias()]++
	}
	biases := make([]models.DirectionalBias, 0, len(counts))
	for b := range counts {
		biases = append(biases, b)
	}
	sort.Slice(biases, func(i, j int) bool {
		if counts[biases[i]] != counts[biases[j]] {
			return counts[biases[i]] > counts[biases[j]]
		}
		return biases[i] < biases[j]
	})
	return biases[0], counts[biases[0]]
}

func (a *PortfolioAssessor) suggestions(p *models.PortfolioRiskAssessment, order []models.Strategy, bias models.DirectionalBias, shared int, market float64, vrp *models.VRPResult) []string {
	var out []string

	if p.Level == models.PortfolioHigh || p.Level == models.PortfolioVeryHigh {
		out = append(out, "Reduce position sizes or favor lower-risk strategies")
	}
	if len(order) == 1 {
		out = append(out, "Add a second strategy to diversify single-strategy exposure")
	}
	if p.ConcentrationPenalty >= 5 {
		var top models.Strategy
		var topScore float64
		for _, s := range order {
			if r := p.StrategyRisks[s]; r.Score > topScore {
				top, topScore = s, r.Score
			}
		}
		out = append(out, fmt.Sprintf("Trim %s, which carries most of the risk", top))
	}
	if shared >= 2 {
		out = append(out, fmt.Sprintf("%d strategies share a %s bias; balance with the opposite side", shared, bias))
	}
	if market >= 70 {
		out = append(out, "Volatility is elevated; use wider strikes or smaller size")
	}
	if vrp != nil {
		var sellers, buyers bool
		for _, s := range order {
			if s.IsSeller() {
				sellers = true
			} else {
				buyers = true
			}
		}
		switch {
		case sellers && (vrp.Tier == models.VRPLowPremium || vrp.Tier == models.VRPNegativePremium):
			out = append(out, fmt.Sprintf("Options are cheap (%s); premium sellers are underpaid, favor buying strategies", vrp.Tier))
		case buyers && vrp.Tier == models.VRPHighPremium:
			out = append(out, fmt.Sprintf("Options are expensive (%s); buyers overpay for volatility, favor selling premium", vrp.Tier))
		}
	}
	for _, s := range order {
		if p.StrategyRisks[s].OptionRisk >= 65 {
			out = append(out, fmt.Sprintf("Consider a longer expiry or more liquid strike for %s", s))
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
