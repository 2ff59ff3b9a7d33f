// Package profile classifies scored contracts by risk/reward style.
package profile

import (
	"fmt"
	"math"

	"optscore/internal/market"
	"optscore/internal/models"
	"optscore/internal/pricing"
)

// Probability methods recorded in profiles.
const (
	MethodBlackScholes = "black_scholes"
	MethodHeuristic    = "heuristic"
)

// Config tunes the profiler.
type Config struct {
	// VRP nudges to seller win probability and their ceiling.
	HighVRPNudge     float64
	ModerateVRPNudge float64
	WinCeiling       float64

	// Profit/loss estimates at a MoveSigmas standard-deviation move, capped
	// as percentages of premium.
	MoveSigmas        float64
	DefaultSigma      float64
	BuyCallCap        float64
	DeepOTMBuyCallCap float64
	DeepOTM           float64
	BuyPutCap         float64
	SellCallLossCap   float64
	MinLossPct        float64

	// Hedge: buy put with strike within HedgeMaxDistance of spot costing at
	// most HedgeMaxCost of spot.
	HedgeMaxDistance float64
	HedgeMaxCost     float64

	// Style thresholds.
	SteadyWin   float64
	BalancedWin float64
	HighRRBuyer float64
	LowWinBuyer float64

	// Fallback win probability by OTM fraction, per strategy.
	Fallback map[models.Strategy]pricing.Ladder
}

// DefaultConfig returns the standard profiler parameters.
func DefaultConfig() Config {
	return Config{
		HighVRPNudge:      0.05,
		ModerateVRPNudge:  0.03,
		WinCeiling:        0.90,
		MoveSigmas:        2,
		DefaultSigma:      0.30,
		BuyCallCap:        300,
		DeepOTMBuyCallCap: 500,
		DeepOTM:           0.10,
		BuyPutCap:         400,
		SellCallLossCap:   300,
		MinLossPct:        1,
		HedgeMaxDistance:  0.05,
		HedgeMaxCost:      0.03,
		SteadyWin:         0.75,
		BalancedWin:       0.60,
		HighRRBuyer:       3,
		LowWinBuyer:       0.35,
		Fallback: map[models.Strategy]pricing.Ladder{
			models.SellPut: {
				Rungs: []pricing.Rung{{Min: 0.15, Value: 0.85}, {Min: 0.10, Value: 0.78}, {Min: 0.05, Value: 0.68}, {Min: 0, Value: 0.55}},
				Floor: 0.40,
			},
			models.SellCall: {
				Rungs: []pricing.Rung{{Min: 0.15, Value: 0.85}, {Min: 0.10, Value: 0.76}, {Min: 0.05, Value: 0.65}, {Min: 0, Value: 0.52}},
				Floor: 0.35,
			},
			models.BuyCall: {
				Rungs: []pricing.Rung{{Min: 0.15, Value: 0.10}, {Min: 0.10, Value: 0.18}, {Min: 0.05, Value: 0.28}, {Min: 0, Value: 0.40}},
				Floor: 0.55,
			},
			models.BuyPut: {
				Rungs: []pricing.Rung{{Min: 0.15, Value: 0.08}, {Min: 0.10, Value: 0.15}, {Min: 0.05, Value: 0.25}, {Min: 0, Value: 0.38}},
				Floor: 0.52,
			},
		},
	}
}

// Profiler builds risk/return profiles. It holds no mutable state.
type Profiler struct {
	cfg Config
}

// NewProfiler creates a profiler.
func NewProfiler(cfg Config) *Profiler {
	return &Profiler{cfg: cfg}
}

// Profile classifies so. vrp may be nil.
func (p *Profiler) Profile(so models.ScoredOption, u models.UnderlyingSnapshot, cfg *market.Config, vrp *models.VRPResult) models.RiskReturnProfile {
	spot := u.CurrentPrice
	mid := so.MidPrice
	if mid <= 0 {
		mid = so.Mid()
	}
	sigma := so.IV()
	if sigma <= 0 {
		sigma = u.HistVol()
	}

	rate := 0.0
	if cfg != nil {
		rate = cfg.RiskFreeRate()
	}

	var pr models.RiskReturnProfile
	pr.WinProbability, pr.ProbabilityMethod = p.winProbability(so, spot, mid, sigma, rate)
	if so.Strategy.IsSeller() && vrp != nil {
		pr.WinProbability = p.nudge(pr.WinProbability, vrp.Tier)
	}
	pr.WinProbability = round4(pricing.Clamp(pr.WinProbability, 0, 1))

	if sigma <= 0 {
		sigma = p.cfg.DefaultSigma
	}
	pr.MaxProfitPct, pr.MaxLossPct = p.payoffPcts(so, spot, mid, sigma)
	pr.MaxProfitPct, pr.MaxLossPct = round2(pr.MaxProfitPct), round2(pr.MaxLossPct)
	if pr.MaxLossPct > 0 {
		pr.RiskRewardRatio = round4(pr.MaxProfitPct / pr.MaxLossPct)
	}

	pr.SafetyMarginPct = round2(safetyMargin(so, spot, mid))
	pr.AnnualizedReturnPct = round2(annualizedReturn(so, spot, mid))
	pr.Style = p.style(so, pr, spot, mid)
	pr.RiskLevel = p.riskLevel(so, pr)
	pr.Summary = summary(so, pr)
	return pr
}

// breakeven is strike - mid for puts and strike + mid for calls.
func breakeven(so models.ScoredOption, mid float64) float64 {
	if so.Type == models.Put {
		return so.Strike - mid
	}
	return so.Strike + mid
}

// winProbability: sellers of puts and buyers of calls win above breakeven;
// sellers of calls and buyers of puts win below it.
func (p *Profiler) winProbability(so models.ScoredOption, spot, mid, sigma, rate float64) (float64, string) {
	be := breakeven(so, mid)
	T := pricing.Years(so.DaysToExpiry)

	var prob float64
	var ok bool
	switch so.Strategy {
	case models.SellPut, models.BuyCall:
		prob, ok = pricing.ProbabilityAbove(spot, be, T, rate, sigma)
	case models.SellCall, models.BuyPut:
		prob, ok = pricing.ProbabilityBelow(spot, be, T, rate, sigma)
	}
	if ok {
		return prob, MethodBlackScholes
	}

	otm := 0.0
	if spot > 0 {
		if so.Type == models.Put {
			otm = (spot - so.Strike) / spot
		} else {
			otm = (so.Strike - spot) / spot
		}
	}
	return p.cfg.Fallback[so.Strategy].At(otm), MethodHeuristic
}

// nudge raises seller win probability in rich-volatility regimes without
// pushing it past the ceiling, and never lowers it.
func (p *Profiler) nudge(prob float64, tier models.VRPTier) float64 {
	var bump float64
	switch tier {
	case models.VRPHighPremium:
		bump = p.cfg.HighVRPNudge
	case models.VRPModeratePremium:
		bump = p.cfg.ModerateVRPNudge
	default:
		return prob
	}
	return math.Max(prob, math.Min(prob+bump, p.cfg.WinCeiling))
}

// payoffPcts returns max profit and max loss as percentages of premium.
func (p *Profiler) payoffPcts(so models.ScoredOption, spot, mid, sigma float64) (profit, loss float64) {
	if mid <= 0 || spot <= 0 {
		return 0, 0
	}
	move := p.cfg.MoveSigmas * pricing.ExpectedMove(spot, sigma, pricing.Years(so.DaysToExpiry))

	switch so.Strategy {
	case models.SellPut:
		profit = 100
		loss = math.Max(so.Strike-mid, 0) / mid * 100
	case models.SellCall:
		profit = 100
		loss = math.Max(spot+move-so.Strike-mid, 0) / mid * 100
		loss = math.Min(loss, p.cfg.SellCallLossCap)
	case models.BuyCall:
		loss = 100
		profit = math.Max(spot+move-so.Strike-mid, 0) / mid * 100
		capPct := p.cfg.BuyCallCap
		if (so.Strike-spot)/spot > p.cfg.DeepOTM {
			capPct = p.cfg.DeepOTMBuyCallCap
		}
		profit = math.Min(profit, capPct)
	case models.BuyPut:
		loss = 100
		profit = math.Max(so.Strike-mid-math.Max(spot-move, 0), 0) / mid * 100
		profit = math.Min(profit, p.cfg.BuyPutCap)
	}
	return profit, math.Max(loss, p.cfg.MinLossPct)
}

// safetyMargin is the percentage move from spot to breakeven in the
// position's favor; negative when the underlying must move to profit.
func safetyMargin(so models.ScoredOption, spot, mid float64) float64 {
	if spot <= 0 {
		return 0
	}
	be := breakeven(so, mid)
	switch so.Strategy {
	case models.SellPut:
		return (spot - be) / spot * 100
	case models.SellCall:
		return (be - spot) / spot * 100
	case models.BuyCall:
		return -(be - spot) / spot * 100
	case models.BuyPut:
		return -(spot - be) / spot * 100
	}
	return 0
}

// annualizedReturn is the premium yield on the capital basis, annualized.
// Buyers have no fixed return and report 0.
func annualizedReturn(so models.ScoredOption, spot, mid float64) float64 {
	if so.DaysToExpiry <= 0 || !so.Strategy.IsSeller() {
		return 0
	}
	basis := so.Strike
	if so.Strategy == models.SellCall {
		basis = spot
	}
	if basis <= 0 {
		return 0
	}
	return mid / basis * 365 / float64(so.DaysToExpiry) * 100
}

func (p *Profiler) style(so models.ScoredOption, pr models.RiskReturnProfile, spot, mid float64) models.TradingStyle {
	if so.Strategy == models.BuyPut && spot > 0 &&
		math.Abs(so.Strike-spot)/spot <= p.cfg.HedgeMaxDistance &&
		mid/spot <= p.cfg.HedgeMaxCost {
		return models.StyleHedge
	}

	if so.Strategy.IsSeller() {
		lowAssignment := so.AssignmentRisk == models.AssignmentVeryLow || so.AssignmentRisk == models.AssignmentLow
		switch {
		case pr.WinProbability >= p.cfg.SteadyWin && lowAssignment:
			return models.StyleSteadyIncome
		case pr.WinProbability >= p.cfg.BalancedWin:
			return models.StyleBalanced
		default:
			return models.StyleHighRiskHighGain
		}
	}

	if pr.RiskRewardRatio >= p.cfg.HighRRBuyer || pr.WinProbability < p.cfg.LowWinBuyer {
		return models.StyleHighRiskHighGain
	}
	return models.StyleBalanced
}

var riskLevels = []models.RiskLevel{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskVeryHigh}

func (p *Profiler) riskLevel(so models.ScoredOption, pr models.RiskReturnProfile) models.RiskLevel {
	if pr.Style == models.StyleHedge {
		return models.RiskLow
	}

	var idx int
	win := pr.WinProbability
	if so.Strategy.IsSeller() {
		switch {
		case win >= 0.80:
			idx = 0
		case win >= 0.65:
			idx = 1
		case win >= 0.50:
			idx = 2
		default:
			idx = 3
		}
		if so.MaxLossUnlimited {
			idx++
		}
	} else {
		switch {
		case win >= 0.45:
			idx = 1
		case win >= 0.30:
			idx = 2
		default:
			idx = 3
		}
	}
	if idx >= len(riskLevels) {
		idx = len(riskLevels) - 1
	}
	return riskLevels[idx]
}

var styleLabels = map[models.TradingStyle]string{
	models.StyleSteadyIncome:     "steady income",
	models.StyleBalanced:         "balanced",
	models.StyleHighRiskHighGain: "high risk, high reward",
	models.StyleHedge:            "hedge",
}

var strategyLabels = map[models.Strategy]string{
	models.SellPut:  "Sell put",
	models.SellCall: "Sell call",
	models.BuyCall:  "Buy call",
	models.BuyPut:   "Buy put",
}

func summary(so models.ScoredOption, pr models.RiskReturnProfile) string {
	s := fmt.Sprintf("%s %.2f (%d DTE): %.0f%% win probability", strategyLabels[so.Strategy], so.Strike, so.DaysToExpiry, pr.WinProbability*100)
	if so.Strategy.IsSeller() {
		s += fmt.Sprintf(", %.1f%% annualized", pr.AnnualizedReturnPct)
	} else {
		s += fmt.Sprintf(", up to %.0f%% on premium", pr.MaxProfitPct)
	}
	return s + fmt.Sprintf(", %s, %s risk", styleLabels[pr.Style], pr.RiskLevel)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
