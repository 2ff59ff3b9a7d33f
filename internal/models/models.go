// Package models provides domain models for the options scoring engine.
package models

// MarketCode identifies a market family with its own contract conventions.
type MarketCode string

const (
	MarketUS        MarketCode = "US"
	MarketHK        MarketCode = "HK"
	MarketCN        MarketCode = "CN"
	MarketCommodity MarketCode = "COMMODITY" // physically settled commodity futures options
)

// Strategy represents a single-leg option strategy.
type Strategy string

const (
	SellPut  Strategy = "sell_put"
	SellCall Strategy = "sell_call"
	BuyPut   Strategy = "buy_put"
	BuyCall  Strategy = "buy_call"

	// AllStrategies requests every strategy in one analysis.
	AllStrategies Strategy = "all"
)

// Strategies returns the single-leg strategies in canonical order.
func Strategies() []Strategy {
	return []Strategy{SellPut, SellCall, BuyPut, BuyCall}
}

// ParseStrategy validates a strategy name. The second result is false for unknown names.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case SellPut, SellCall, BuyPut, BuyCall, AllStrategies:
		return Strategy(s), true
	}
	return "", false
}

// IsSeller returns true for premium-selling strategies.
func (s Strategy) IsSeller() bool {
	return s == SellPut || s == SellCall
}

// ContractType returns the option side the strategy trades.
func (s Strategy) ContractType() ContractType {
	if s == SellPut || s == BuyPut {
		return Put
	}
	return Call
}

// Bias returns the directional bias of the strategy.
func (s Strategy) Bias() DirectionalBias {
	switch s {
	case SellPut, BuyCall:
		return BiasBullish
	case SellCall, BuyPut:
		return BiasBearish
	}
	return BiasNeutral
}

// DirectionalBias is the market direction a strategy profits from.
type DirectionalBias string

const (
	BiasBullish DirectionalBias = "bullish"
	BiasBearish DirectionalBias = "bearish"
	BiasNeutral DirectionalBias = "neutral"
)

// MarketOutlook tags a strategy-level summary.
type MarketOutlook string

const (
	OutlookNeutralBullish MarketOutlook = "neutral_bullish"
	OutlookNeutralBearish MarketOutlook = "neutral_bearish"
	OutlookBullish        MarketOutlook = "bullish"
	OutlookBearish        MarketOutlook = "bearish"
)

// AssignmentRisk is the tiered likelihood of early assignment or finishing ITM.
type AssignmentRisk string

const (
	AssignmentVeryLow  AssignmentRisk = "very_low"
	AssignmentLow      AssignmentRisk = "low"
	AssignmentModerate AssignmentRisk = "moderate"
	AssignmentHigh     AssignmentRisk = "high"
	AssignmentVeryHigh AssignmentRisk = "very_high"
)

// DeliveryZone classifies time-to-delivery for physically settled contracts.
type DeliveryZone string

const (
	ZoneSafe    DeliveryZone = "safe"
	ZoneWarning DeliveryZone = "warning"
	ZoneRed     DeliveryZone = "red"
)

// DeliveryAction is the recommended action for a delivery zone.
type DeliveryAction string

const (
	DeliveryOK     DeliveryAction = "ok"
	DeliveryReduce DeliveryAction = "reduce"
	DeliveryClose  DeliveryAction = "close"
)

// VRPTier classifies the volatility risk premium.
type VRPTier string

const (
	VRPHighPremium     VRPTier = "high_premium"
	VRPModeratePremium VRPTier = "moderate_premium"
	VRPNormal          VRPTier = "normal"
	VRPLowPremium      VRPTier = "low_premium"
	VRPNegativePremium VRPTier = "negative_premium"
)

// Rank orders tiers from richest (4) to cheapest (0) implied volatility.
func (t VRPTier) Rank() int {
	switch t {
	case VRPHighPremium:
		return 4
	case VRPModeratePremium:
		return 3
	case VRPNormal:
		return 2
	case VRPLowPremium:
		return 1
	default:
		return 0
	}
}

// TradingStyle is the risk/reward style of a single contract.
type TradingStyle string

const (
	StyleSteadyIncome     TradingStyle = "steady_income"
	StyleBalanced         TradingStyle = "balanced"
	StyleHighRiskHighGain TradingStyle = "high_risk_high_reward"
	StyleHedge            TradingStyle = "hedge"
)

// TradingStyles returns all styles in display order.
func TradingStyles() []TradingStyle {
	return []TradingStyle{StyleSteadyIncome, StyleBalanced, StyleHighRiskHighGain, StyleHedge}
}

// RiskLevel is a coarse risk label for a contract profile.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// PortfolioRiskLevel buckets the aggregate portfolio risk score.
type PortfolioRiskLevel string

const (
	PortfolioLow      PortfolioRiskLevel = "low"
	PortfolioModerate PortfolioRiskLevel = "moderate"
	PortfolioHigh     PortfolioRiskLevel = "high"
	PortfolioVeryHigh PortfolioRiskLevel = "very_high"
)

// RiskTolerance selects a position-sizing tier.
type RiskTolerance string

const (
	Conservative RiskTolerance = "conservative"
	Moderate     RiskTolerance = "moderate"
	Aggressive   RiskTolerance = "aggressive"
)

// Action is the overall recommendation of an analysis.
type Action string

const (
	ActionStrongBuy Action = "strong_buy"
	ActionBuy       Action = "buy"
	ActionCautious  Action = "cautious"
	ActionWait      Action = "wait"
)
