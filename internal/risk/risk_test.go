package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optscore/internal/models"
	"optscore/internal/strategy"
)

func best(s models.Strategy, otm float64, dte int, liquidity float64) *models.StrategyResult {
	return &models.StrategyResult{
		Strategy: s,
		Success:  true,
		Recommendations: []models.ScoredOption{{
			OptionContract: models.OptionContract{DaysToExpiry: dte, Type: s.ContractType()},
			Strategy:       s,
			OTMPercent:     otm,
			Factors:        []models.FactorScore{{Name: strategy.FactorLiquidity, Score: liquidity}},
		}},
	}
}

func snapshot() models.UnderlyingSnapshot {
	return models.UnderlyingSnapshot{Symbol: "AAPL", CurrentPrice: 180, ChangePercent: 1, Volatility30d: 0.25}
}

func TestAssessEmpty(t *testing.T) {
	a := NewPortfolioAssessor(DefaultPortfolioConfig())
	assert.Nil(t, a.Assess(nil, snapshot(), nil))
	assert.Nil(t, a.Assess(map[models.Strategy]*models.StrategyResult{
		models.SellPut: {Strategy: models.SellPut, Success: true},
	}, snapshot(), nil))
}

func TestAssessSingleStrategy(t *testing.T) {
	a := NewPortfolioAssessor(DefaultPortfolioConfig())
	p := a.Assess(map[models.Strategy]*models.StrategyResult{
		models.SellPut: best(models.SellPut, 0.10, 30, 80),
	}, snapshot(), nil)
	require.NotNil(t, p)

	r := p.StrategyRisks[models.SellPut]
	assert.Equal(t, 50.0, r.BaseRisk)
	assert.InDelta(t, 43.0, r.MarketRisk, 0.01)
	assert.InDelta(t, 38.0, r.OptionRisk, 0.01)
	assert.InDelta(t, 44.8, r.Score, 0.01)

	assert.Equal(t, 5.0, p.DiversificationBonus)
	assert.Equal(t, 0.0, p.ConcentrationPenalty)
	assert.Equal(t, 0.0, p.CorrelationPenalty)
	assert.InDelta(t, 39.8, p.Score, 0.01)
	assert.Equal(t, models.PortfolioModerate, p.Level)
	assert.NotEmpty(t, p.Description)
	assert.Contains(t, p.Suggestions, "Add a second strategy to diversify single-strategy exposure")
}

func TestAssessAllStrategies(t *testing.T) {
	a := NewPortfolioAssessor(DefaultPortfolioConfig())
	results := make(map[models.Strategy]*models.StrategyResult)
	for _, s := range models.Strategies() {
		results[s] = best(s, 0.10, 30, 80)
	}

	p := a.Assess(results, snapshot(), nil)
	require.NotNil(t, p)
	require.Len(t, p.StrategyRisks, 4)

	assert.InDelta(t, 50.8, p.StrategyRisks[models.SellCall].Score, 0.01)
	assert.InDelta(t, 49.6, p.StrategyRisks[models.BuyCall].Score, 0.01)
	assert.InDelta(t, 45.6, p.StrategyRisks[models.BuyPut].Score, 0.01)
	assert.InDelta(t, 47.7, p.MeanStrategyRisk, 0.01)
	assert.Equal(t, 20.0, p.DiversificationBonus)
	assert.InDelta(t, 1.55, p.ConcentrationPenalty, 0.01)
	assert.Equal(t, 10.0, p.CorrelationPenalty)
	assert.InDelta(t, 39.25, p.Score, 0.01)
	assert.Equal(t, models.PortfolioModerate, p.Level)
}

func TestAssessCorrelatedPair(t *testing.T) {
	a := NewPortfolioAssessor(DefaultPortfolioConfig())
	p := a.Assess(map[models.Strategy]*models.StrategyResult{
		models.SellPut: best(models.SellPut, 0.10, 30, 80),
		models.BuyCall: best(models.BuyCall, 0.10, 30, 80),
	}, snapshot(), nil)
	require.NotNil(t, p)

	assert.Equal(t, 10.0, p.CorrelationPenalty)
	assert.Contains(t, p.Suggestions, "2 strategies share a bullish bias; balance with the opposite side")
}

func TestAssessVolatileMarket(t *testing.T) {
	a := NewPortfolioAssessor(DefaultPortfolioConfig())
	u := snapshot()
	u.Volatility30d = 0.80
	u.ChangePercent = -12

	p := a.Assess(map[models.Strategy]*models.StrategyResult{
		models.SellCall: best(models.SellCall, -0.02, 5, 10),
	}, u, nil)
	require.NotNil(t, p)

	assert.Equal(t, 94.0, p.StrategyRisks[models.SellCall].MarketRisk)
	assert.Contains(t, p.Suggestions, "Volatility is elevated; use wider strikes or smaller size")
	assert.Contains(t, p.Suggestions, "Consider a longer expiry or more liquid strike for sell_call")
	assert.Contains(t, p.Suggestions, "Reduce position sizes or favor lower-risk strategies")
}

func TestPortfolioLevels(t *testing.T) {
	a := NewPortfolioAssessor(DefaultPortfolioConfig())
	cases := []struct {
		score float64
		want  models.PortfolioRiskLevel
	}{
		{0, models.PortfolioLow},
		{29.99, models.PortfolioLow},
		{30, models.PortfolioModerate},
		{49.99, models.PortfolioModerate},
		{50, models.PortfolioHigh},
		{69.99, models.PortfolioHigh},
		{70, models.PortfolioVeryHigh},
		{100, models.PortfolioVeryHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, a.level(tc.score), "score %v", tc.score)
	}
}

func option(s models.Strategy, strike, mid, multiplier float64) models.ScoredOption {
	return models.ScoredOption{
		OptionContract: models.OptionContract{Strike: strike, Bid: mid, Ask: mid, DaysToExpiry: 30, Type: s.ContractType()},
		Strategy:       s,
		MidPrice:       mid,
		Multiplier:     multiplier,
	}
}

func TestSizeModerate(t *testing.T) {
	s := NewSizer(nil)
	res := s.Size(SizingInput{
		Best: map[models.Strategy]models.ScoredOption{
			models.BuyCall:  option(models.BuyCall, 185, 2.5, 100),
			models.SellPut:  option(models.SellPut, 170, 2.6, 100),
			models.SellCall: option(models.SellCall, 190, 1.5, 100),
		},
		Spot:       180,
		MarginRate: 0.20,
	}, 100000, "moderate")

	assert.Equal(t, models.Moderate, res.RiskTolerance)
	assert.Equal(t, 20000.0, res.RiskBudget)
	assert.False(t, res.Scaled)
	assert.Equal(t, 1.0, res.ScalingFactor)
	assert.Empty(t, res.Notes)

	bc := res.Positions[models.BuyCall]
	assert.Equal(t, 20, bc.Contracts)
	assert.Equal(t, 250.0, bc.PerContractRisk)
	assert.Equal(t, 5000.0, bc.CapitalRequired)
	assert.Equal(t, BasisPremium, bc.RiskBasis)

	sp := res.Positions[models.SellPut]
	assert.Equal(t, 1, sp.Contracts)
	assert.Equal(t, 3140.0, sp.PerContractRisk)
	assert.Equal(t, BasisMargin, sp.RiskBasis)

	// Calls are margined on the underlying price.
	sc := res.Positions[models.SellCall]
	assert.Equal(t, 3450.0, sc.PerContractRisk)

	assert.Equal(t, 11590.0, res.TotalCapital)
}

func TestSizeConservativeVolatilityMultiplier(t *testing.T) {
	res := NewSizer(nil).Size(SizingInput{
		Best: map[models.Strategy]models.ScoredOption{models.BuyCall: option(models.BuyCall, 185, 2.5, 100)},
	}, 100000, "Conservative")

	assert.Equal(t, models.Conservative, res.RiskTolerance)
	assert.Equal(t, 4, res.Positions[models.BuyCall].Contracts)
	assert.Equal(t, 1000.0, res.TotalCapital)
}

func TestSizeScalesDownUniformly(t *testing.T) {
	res := NewSizer(nil).Size(SizingInput{
		Best: map[models.Strategy]models.ScoredOption{
			models.BuyCall:  option(models.BuyCall, 55, 1.0, 100),
			models.BuyPut:   option(models.BuyPut, 45, 0.5, 100),
			models.SellPut:  option(models.SellPut, 50, 0.5, 100),
			models.SellCall: option(models.SellCall, 55, 0.4, 100),
		},
		Spot:       50,
		MarginRate: 0.20,
	}, 10000, "aggressive")

	assert.True(t, res.Scaled)
	assert.InDelta(t, 3500.0/4910.0, res.ScalingFactor, 1e-9)
	assert.Equal(t, 3500.0, res.RiskBudget)
	assert.Equal(t, 10, res.Positions[models.BuyCall].Contracts)
	assert.Equal(t, 21, res.Positions[models.BuyPut].Contracts)
	assert.Equal(t, 0, res.Positions[models.SellPut].Contracts)
	assert.Equal(t, 0, res.Positions[models.SellCall].Contracts)
	assert.Equal(t, 2050.0, res.TotalCapital)
	assert.LessOrEqual(t, res.TotalCapital, res.RiskBudget)
	assert.Contains(t, res.Notes, "sell_put dropped: one contract exceeds the scaled budget")
}

func TestSizeUnknownTolerance(t *testing.T) {
	res := NewSizer(nil).Size(SizingInput{
		Best: map[models.Strategy]models.ScoredOption{models.BuyPut: option(models.BuyPut, 170, 2.0, 100)},
	}, 50000, "yolo")

	assert.Equal(t, models.Moderate, res.RiskTolerance)
	require.NotEmpty(t, res.Notes)
	assert.Equal(t, `unknown risk tolerance "yolo", using moderate`, res.Notes[0])
	assert.Equal(t, 12, res.Positions[models.BuyPut].Contracts)
}

func TestSizeSellerWithoutMargin(t *testing.T) {
	res := NewSizer(nil).Size(SizingInput{
		Best: map[models.Strategy]models.ScoredOption{models.SellPut: option(models.SellPut, 170, 2.6, 100)},
		Spot: 180,
	}, 100000, "moderate")

	sp := res.Positions[models.SellPut]
	assert.Equal(t, BasisPremium, sp.RiskBasis)
	assert.Equal(t, 260.0, sp.PerContractRisk)
	assert.Equal(t, 19, sp.Contracts)
}

func TestSizeSkipsZeroRisk(t *testing.T) {
	res := NewSizer(nil).Size(SizingInput{
		Best: map[models.Strategy]models.ScoredOption{models.BuyCall: option(models.BuyCall, 185, 0, 100)},
	}, 100000, "moderate")

	assert.Empty(t, res.Positions)
	assert.Equal(t, 0.0, res.TotalCapital)
	assert.Contains(t, res.Notes, "buy_call skipped: no measurable risk per contract")
}

func TestSizeNonFinitePortfolioValue(t *testing.T) {
	in := SizingInput{
		Best: map[models.Strategy]models.ScoredOption{models.BuyCall: option(models.BuyCall, 185, 2.5, 100)},
	}
	for _, pv := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		var res models.PositionSizingResult
		require.NotPanics(t, func() { res = NewSizer(nil).Size(in, pv, "moderate") }, "portfolio %v", pv)

		assert.Equal(t, 0.0, res.PortfolioValue)
		assert.Equal(t, 0.0, res.RiskBudget)
		assert.Equal(t, 0.0, res.TotalCapital)
		assert.Equal(t, 0, res.Positions[models.BuyCall].Contracts)
		require.NotEmpty(t, res.Notes)
		assert.Contains(t, res.Notes[0], "is not a finite number, using 0")
	}
}

func TestSizeSkipsNonFiniteInputs(t *testing.T) {
	nanMid := option(models.BuyPut, 170, 0, 100)
	nanMid.MidPrice = math.NaN()
	infStrike := option(models.SellPut, math.Inf(1), 2.6, 100)

	var res models.PositionSizingResult
	require.NotPanics(t, func() {
		res = NewSizer(nil).Size(SizingInput{
			Best: map[models.Strategy]models.ScoredOption{
				models.BuyCall: option(models.BuyCall, 185, 2.5, 100),
				models.BuyPut:  nanMid,
				models.SellPut: infStrike,
			},
			Spot:       180,
			MarginRate: 0.20,
		}, 100000, "moderate")
	})

	assert.Equal(t, 20, res.Positions[models.BuyCall].Contracts)
	assert.NotContains(t, res.Positions, models.BuyPut)
	assert.NotContains(t, res.Positions, models.SellPut)
	assert.Contains(t, res.Notes, "buy_put skipped: price, spot or margin rate is not a finite number")
	assert.Contains(t, res.Notes, "sell_put skipped: price, spot or margin rate is not a finite number")

	res = NewSizer(nil).Size(SizingInput{
		Best:       map[models.Strategy]models.ScoredOption{models.SellCall: option(models.SellCall, 190, 1.5, 100)},
		Spot:       math.NaN(),
		MarginRate: math.Inf(1),
	}, 100000, "moderate")
	assert.Empty(t, res.Positions)
	assert.Contains(t, res.Notes, "sell_call skipped: price, spot or margin rate is not a finite number")
}

func TestAssessFoldsVRPTier(t *testing.T) {
	a := NewPortfolioAssessor(DefaultPortfolioConfig())
	results := map[models.Strategy]*models.StrategyResult{
		models.SellPut: best(models.SellPut, 0.10, 30, 80),
		models.BuyPut:  best(models.BuyPut, 0.10, 30, 80),
	}

	base := a.Assess(results, snapshot(), nil)
	normal := a.Assess(results, snapshot(), &models.VRPResult{Tier: models.VRPNormal})
	cheap := a.Assess(results, snapshot(), &models.VRPResult{Tier: models.VRPNegativePremium})
	rich := a.Assess(results, snapshot(), &models.VRPResult{Tier: models.VRPHighPremium})
	require.NotNil(t, base)

	assert.Equal(t, base.Score, normal.Score)
	assert.InDelta(t, 44.8, base.StrategyRisks[models.SellPut].Score, 0.01)

	// Cheap options: the seller carries more risk, the buyer slightly less.
	assert.InDelta(t, 59.8, cheap.StrategyRisks[models.SellPut].Score, 0.01)
	assert.Equal(t, 15.0, cheap.StrategyRisks[models.SellPut].VRPRisk)
	assert.Less(t, cheap.StrategyRisks[models.BuyPut].Score, base.StrategyRisks[models.BuyPut].Score)
	assert.NotEqual(t, base.Score, cheap.Score)
	assert.Contains(t, cheap.Suggestions,
		"Options are cheap (negative_premium); premium sellers are underpaid, favor buying strategies")

	// Rich options: the reverse.
	assert.InDelta(t, 39.8, rich.StrategyRisks[models.SellPut].Score, 0.01)
	assert.Greater(t, rich.StrategyRisks[models.BuyPut].Score, base.StrategyRisks[models.BuyPut].Score)
	assert.Contains(t, rich.Suggestions,
		"Options are expensive (high_premium); buyers overpay for volatility, favor selling premium")
}
