package models

import "time"

// FactorScore is one weighted component of a contract score.
type FactorScore struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Score    float64 `json:"score"`
	Weighted float64 `json:"weighted"`
}

// DeliveryRiskAssessment is the time-to-delivery assessment of a physically
// settled contract.
type DeliveryRiskAssessment struct {
	ContractCode   string         `json:"contract_code"`
	Parsed         bool           `json:"parsed"`
	DeliveryDate   *time.Time     `json:"delivery_date,omitempty"`
	DaysToDelivery int            `json:"days_to_delivery"`
	Zone           DeliveryZone   `json:"zone"`
	Penalty        float64        `json:"penalty"`
	Recommendation DeliveryAction `json:"recommendation"`
	Note           string         `json:"note,omitempty"`
}

// RiskReturnProfile classifies the risk/reward of one contract.
type RiskReturnProfile struct {
	Style               TradingStyle `json:"style"`
	RiskLevel           RiskLevel    `json:"risk_level"`
	WinProbability      float64      `json:"win_probability"`
	ProbabilityMethod   string       `json:"probability_method"`
	SafetyMarginPct     float64      `json:"safety_margin_pct"`
	AnnualizedReturnPct float64      `json:"annualized_return_pct"`
	MaxProfitPct        float64      `json:"max_profit_pct"`
	MaxLossPct          float64      `json:"max_loss_pct"`
	RiskRewardRatio     float64      `json:"risk_reward_ratio"`
	Summary             string       `json:"summary"`
}

// ScoredOption is a contract with its strategy score and derived metrics.
type ScoredOption struct {
	OptionContract

	Strategy           Strategy                `json:"strategy"`
	Score              float64                 `json:"score"`
	Factors            []FactorScore           `json:"factors"`
	MidPrice           float64                 `json:"mid_price"`
	Breakeven          float64                 `json:"breakeven"`
	MaxProfit          float64                 `json:"max_profit"`
	MaxProfitUnlimited bool                    `json:"max_profit_unlimited"`
	MaxLoss            float64                 `json:"max_loss"`
	MaxLossUnlimited   bool                    `json:"max_loss_unlimited"`
	OTMPercent         float64                 `json:"otm_percent"`
	AssignmentRisk     AssignmentRisk          `json:"assignment_risk"`
	Multiplier         float64                 `json:"multiplier"`
	Delivery           *DeliveryRiskAssessment `json:"delivery,omitempty"`
	Profile            *RiskReturnProfile      `json:"profile,omitempty"`
}

// Factor returns the named factor score, or false when absent.
func (s ScoredOption) Factor(name string) (FactorScore, bool) {
	for _, f := range s.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return FactorScore{}, false
}

// StrategySummary is the qualitative view over one strategy's candidates.
type StrategySummary struct {
	Outlook         MarketOutlook `json:"outlook"`
	BestScore       float64       `json:"best_score"`
	AverageScore    float64       `json:"average_score"`
	HighScoreCount  int           `json:"high_score_count"`
	Recommendations []string      `json:"recommendations"`
}

// StrategyResult is the scored output for one strategy.
type StrategyResult struct {
	Strategy        Strategy        `json:"strategy"`
	Success         bool            `json:"success"`
	Recommendations []ScoredOption  `json:"recommendations"`
	Evaluated       int             `json:"evaluated"`
	Eligible        int             `json:"eligible"`
	Skipped         int             `json:"skipped"`
	Summary         StrategySummary `json:"summary"`
}

// Best returns the top recommendation, if any.
func (r *StrategyResult) Best() (ScoredOption, bool) {
	if r == nil || len(r.Recommendations) == 0 {
		return ScoredOption{}, false
	}
	return r.Recommendations[0], true
}

// VRPResult is the implied-vs-realized volatility comparison.
type VRPResult struct {
	ImpliedVol    float64  `json:"implied_vol"`
	HistoricalVol float64  `json:"historical_vol"`
	VRPAbsolute   float64  `json:"vrp_absolute"`
	VRPRelative   float64  `json:"vrp_relative"`
	Tier          VRPTier  `json:"tier"`
	IVSource      string   `json:"iv_source"`
	HVSource      string   `json:"hv_source"`
	SampleSize    int      `json:"sample_size"`
	Description   string   `json:"description"`
	Assumptions   []string `json:"assumptions,omitempty"`
}

// StrategyRisk is the risk breakdown of one strategy inside a portfolio.
type StrategyRisk struct {
	Strategy   Strategy `json:"strategy"`
	BaseRisk   float64  `json:"base_risk"`
	MarketRisk float64  `json:"market_risk"`
	OptionRisk float64  `json:"option_risk"`
	// VRPRisk is added to Score when the volatility regime favors the other side.
	VRPRisk float64 `json:"vrp_risk"`
	Score   float64 `json:"score"`
}

// PortfolioRiskAssessment aggregates risk across strategies.
type PortfolioRiskAssessment struct {
	StrategyRisks        map[Strategy]StrategyRisk `json:"strategy_risks"`
	Score                float64                   `json:"score"`
	MeanStrategyRisk     float64                   `json:"mean_strategy_risk"`
	DiversificationBonus float64                   `json:"diversification_bonus"`
	ConcentrationPenalty float64                   `json:"concentration_penalty"`
	CorrelationPenalty   float64                   `json:"correlation_penalty"`
	Level                PortfolioRiskLevel        `json:"level"`
	Description          string                    `json:"description"`
	Suggestions          []string                  `json:"suggestions"`
}

// PositionSize is the sizing suggestion for one strategy.
type PositionSize struct {
	Strategy        Strategy `json:"strategy"`
	Strike          float64  `json:"strike"`
	Contracts       int      `json:"contracts"`
	PerContractRisk float64  `json:"per_contract_risk"`
	CapitalRequired float64  `json:"capital_required"`
	Multiplier      float64  `json:"multiplier"`
	RiskBasis       string   `json:"risk_basis"` // premium or margin
}

// PositionSizingResult is the sizing suggestion across strategies.
type PositionSizingResult struct {
	RiskTolerance  RiskTolerance             `json:"risk_tolerance"`
	PortfolioValue float64                   `json:"portfolio_value"`
	RiskBudget     float64                   `json:"risk_budget"`
	Positions      map[Strategy]PositionSize `json:"positions"`
	TotalCapital   float64                   `json:"total_capital"`
	ScalingFactor  float64                   `json:"scaling_factor"`
	Scaled         bool                      `json:"scaled"`
	Notes          []string                  `json:"notes,omitempty"`
}

// BestStrategy is a strategy whose best contract cleared the quality bar.
type BestStrategy struct {
	Strategy Strategy     `json:"strategy"`
	Score    float64      `json:"score"`
	Option   ScoredOption `json:"option"`
}

// OverallRecommendation is the single analysis-level call.
type OverallRecommendation struct {
	Action    Action `json:"action"`
	Rationale string `json:"rationale"`
}

// AnalysisResult is the full multi-strategy analysis for one symbol.
type AnalysisResult struct {
	ID             string                          `json:"id"`
	Symbol         string                          `json:"symbol"`
	Market         MarketCode                      `json:"market"`
	Currency       string                          `json:"currency"`
	AsOf           time.Time                       `json:"as_of"`
	Success        bool                            `json:"success"`
	ErrorCode      string                          `json:"error_code,omitempty"`
	Error          string                          `json:"error,omitempty"`
	AllowedSymbols []string                        `json:"allowed_symbols,omitempty"`
	Underlying     *UnderlyingSnapshot             `json:"underlying,omitempty"`
	VRP            *VRPResult                      `json:"vrp,omitempty"`
	Strategies     map[Strategy]*StrategyResult    `json:"strategies,omitempty"`
	BestStrategies []BestStrategy                  `json:"best_strategies,omitempty"`
	StyleBuckets   map[TradingStyle][]ScoredOption `json:"style_buckets,omitempty"`
	PortfolioRisk  *PortfolioRiskAssessment        `json:"portfolio_risk,omitempty"`
	Overall        *OverallRecommendation          `json:"overall,omitempty"`
}
