package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"optscore/internal/models"
)

// Tier bounds capital at risk for one risk tolerance.
type Tier struct {
	MaxPortfolioRisk     decimal.Decimal // fraction of portfolio at risk across positions
	MaxPositionRisk      decimal.Decimal // fraction of portfolio per position
	VolatilityMultiplier decimal.Decimal
}

// DefaultTiers returns the conservative, moderate and aggressive tiers.
func DefaultTiers() map[models.RiskTolerance]Tier {
	return map[models.RiskTolerance]Tier{
		models.Conservative: {
			MaxPortfolioRisk:     decimal.RequireFromString("0.10"),
			MaxPositionRisk:      decimal.RequireFromString("0.02"),
			VolatilityMultiplier: decimal.RequireFromString("0.5"),
		},
		models.Moderate: {
			MaxPortfolioRisk:     decimal.RequireFromString("0.20"),
			MaxPositionRisk:      decimal.RequireFromString("0.05"),
			VolatilityMultiplier: decimal.RequireFromString("1.0"),
		},
		models.Aggressive: {
			MaxPortfolioRisk:     decimal.RequireFromString("0.35"),
			MaxPositionRisk:      decimal.RequireFromString("0.10"),
			VolatilityMultiplier: decimal.RequireFromString("1.5"),
		},
	}
}

// Risk bases recorded on each position.
const (
	BasisPremium = "premium"
	BasisMargin  = "margin"
)

// SizingInput is the best contract per strategy with the context needed to
// estimate seller margin.
type SizingInput struct {
	Best       map[models.Strategy]models.ScoredOption
	Spot       float64
	MarginRate float64
}

// Sizer suggests contract counts within a tier's budget.
type Sizer struct {
	tiers map[models.RiskTolerance]Tier
}

// NewSizer creates a sizer. A nil tiers map uses DefaultTiers.
func NewSizer(tiers map[models.RiskTolerance]Tier) *Sizer {
	if tiers == nil {
		tiers = DefaultTiers()
	}
	return &Sizer{tiers: tiers}
}

// Tier resolves a tolerance name. Unknown names fall back to moderate and
// report ok=false.
func (s *Sizer) Tier(tolerance string) (Tier, models.RiskTolerance, bool) {
	rt := models.RiskTolerance(strings.ToLower(strings.TrimSpace(tolerance)))
	if t, ok := s.tiers[rt]; ok {
		return t, rt, true
	}
	return s.tiers[models.Moderate], models.Moderate, false
}

type sized struct {
	strategy  models.Strategy
	risk      decimal.Decimal
	contracts int64
	basis     string
	so        models.ScoredOption
}

// Size returns per-strategy contract counts. When the combined capital would
// exceed the portfolio budget every position is scaled down by the same
// factor; positions are never scaled up.
func (s *Sizer) Size(in SizingInput, portfolioValue float64, tolerance string) models.PositionSizingResult {
	tier, rt, known := s.Tier(tolerance)

	res := models.PositionSizingResult{
		RiskTolerance:  rt,
		PortfolioValue: portfolioValue,
		Positions:      make(map[models.Strategy]models.PositionSize),
		ScalingFactor:  1,
	}
	if !known {
		res.Notes = append(res.Notes, fmt.Sprintf("unknown risk tolerance %q, using moderate", tolerance))
	}

	if !finite(portfolioValue) {
		res.Notes = append(res.Notes, fmt.Sprintf("portfolio value %v is not a finite number, using 0", portfolioValue))
		portfolioValue = 0
		res.PortfolioValue = 0
	}
	pv := decimal.NewFromFloat(portfolioValue)
	if pv.IsNegative() {
		pv = decimal.Zero
	}
	budget := pv.Mul(tier.MaxPortfolioRisk).Truncate(2)
	allowed := pv.Mul(tier.MaxPositionRisk)
	res.RiskBudget = budget.InexactFloat64()

	var positions []*sized
	for _, st := range models.Strategies() {
		so, ok := in.Best[st]
		if !ok {
			continue
		}
		if !finiteInputs(so, in.Spot, in.MarginRate) {
			res.Notes = append(res.Notes, fmt.Sprintf("%s skipped: price, spot or margin rate is not a finite number", st))
			continue
		}
		risk, basis := perContractRisk(so, in.Spot, in.MarginRate)
		if !risk.IsPositive() {
			res.Notes = append(res.Notes, fmt.Sprintf("%s skipped: no measurable risk per contract", st))
			continue
		}

		n := allowed.Div(risk).Floor().Mul(tier.VolatilityMultiplier).Floor().IntPart()
		if n < 1 {
			n = 1
		}
		positions = append(positions, &sized{strategy: st, risk: risk, contracts: n, basis: basis, so: so})
	}

	total := totalCapital(positions)
	if total.GreaterThan(budget) && total.IsPositive() {
		factor := budget.Div(total).Truncate(12)
		for _, p := range positions {
			p.contracts = decimal.NewFromInt(p.contracts).Mul(factor).Floor().IntPart()
		}
		trimToBudget(positions, budget)
		res.Scaled = true
		res.ScalingFactor = factor.InexactFloat64()
		res.Notes = append(res.Notes, fmt.Sprintf("positions scaled by %s to stay within the %s risk budget", factor.StringFixed(4), budget.StringFixed(2)))
		total = totalCapital(positions)
	}

	for _, p := range positions {
		if p.contracts == 0 {
			res.Notes = append(res.Notes, fmt.Sprintf("%s dropped: one contract exceeds the scaled budget", p.strategy))
		}
		res.Positions[p.strategy] = models.PositionSize{
			Strategy:        p.strategy,
			Strike:          p.so.Strike,
			Contracts:       int(p.contracts),
			PerContractRisk: p.risk.InexactFloat64(),
			CapitalRequired: capital(p).InexactFloat64(),
			Multiplier:      multiplier(p.so).InexactFloat64(),
			RiskBasis:       p.basis,
		}
	}
	res.TotalCapital = total.InexactFloat64()
	return res
}

// perContractRisk is premium x multiplier for buyers. Sellers carry the
// estimated margin net of premium received; when that is zero, or no margin
// rate is known, the premium stands in.
func perContractRisk(so models.ScoredOption, spot, marginRate float64) (decimal.Decimal, string) {
	mid := so.MidPrice
	if mid <= 0 {
		mid = so.Mid()
	}
	mult := multiplier(so)
	premium := decimal.NewFromFloat(mid).Mul(mult)

	if !so.Strategy.IsSeller() || marginRate <= 0 {
		return premium.Truncate(2), BasisPremium
	}

	basis := so.Strike
	if so.Strategy == models.SellCall && spot > 0 {
		basis = spot
	}
	margin := decimal.NewFromFloat(basis).Mul(mult).Mul(decimal.NewFromFloat(marginRate))
	risk := decimal.Max(margin.Sub(premium), decimal.Zero).Truncate(2)
	if !risk.IsPositive() {
		return premium.Truncate(2), BasisPremium
	}
	return risk, BasisMargin
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteInputs reports whether every number perContractRisk turns into a
// decimal is finite.
func finiteInputs(so models.ScoredOption, spot, marginRate float64) bool {
	for _, v := range []float64{so.MidPrice, so.Mid(), so.Strike, so.Multiplier, spot, marginRate} {
		if !finite(v) {
			return false
		}
	}
	return true
}

func multiplier(so models.ScoredOption) decimal.Decimal {
	if so.Multiplier > 0 {
		return decimal.NewFromFloat(so.Multiplier)
	}
	return decimal.NewFromInt(1)
}

func capital(p *sized) decimal.Decimal {
	return p.risk.Mul(decimal.NewFromInt(p.contracts)).Truncate(2)
}

func totalCapital(ps []*sized) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		total = total.Add(capital(p))
	}
	return total
}

// trimToBudget removes contracts from the largest position until the total
// fits. Flooring after a uniform scale already lands within budget; this only
// absorbs rounding in the scale factor.
func trimToBudget(ps []*sized, budget decimal.Decimal) {
	for totalCapital(ps).GreaterThan(budget) {
		var largest *sized
		for _, p := range ps {
			if p.contracts > 0 && (largest == nil || capital(p).GreaterThan(capital(largest))) {
				largest = p
			}
		}
		if largest == nil {
			return
		}
		largest.contracts--
	}
}
