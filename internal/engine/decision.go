package engine

import (
	"fmt"
	"sort"

	"optscore/internal/models"
	"optscore/internal/strategy"
)

// bestStrategies returns the strategies whose top contract scores above
// threshold, highest first.
func bestStrategies(results map[models.Strategy]*models.StrategyResult, threshold float64) []models.BestStrategy {
	var out []models.BestStrategy
	for _, s := range models.Strategies() {
		best, ok := results[s].Best()
		if !ok || best.Score <= threshold {
			continue
		}
		out = append(out, models.BestStrategy{Strategy: s, Score: best.Score, Option: best})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// styleBuckets groups profiled recommendations by trading style and keeps
// the top n of each. Styles with no contracts are omitted.
func styleBuckets(results map[models.Strategy]*models.StrategyResult, n int) map[models.TradingStyle][]models.ScoredOption {
	buckets := make(map[models.TradingStyle][]models.ScoredOption)
	for _, s := range models.Strategies() {
		sr := results[s]
		if sr == nil {
			continue
		}
		for _, so := range sr.Recommendations {
			if so.Profile == nil || so.Profile.Style == "" {
				continue
			}
			buckets[so.Profile.Style] = append(buckets[so.Profile.Style], so)
		}
	}
	for style, list := range buckets {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
		if len(list) > n {
			list = list[:n]
		}
		buckets[style] = list
	}
	if len(buckets) == 0 {
		return nil
	}
	return buckets
}

// topOption returns the highest-scoring recommendation across strategies.
// Ties keep canonical strategy order.
func topOption(results map[models.Strategy]*models.StrategyResult) (models.ScoredOption, bool) {
	var (
		top   models.ScoredOption
		found bool
	)
	for _, s := range models.Strategies() {
		best, ok := results[s].Best()
		if ok && (!found || best.Score > top.Score) {
			top, found = best, true
		}
	}
	return top, found
}

func topScore(results map[models.Strategy]*models.StrategyResult) float64 {
	top, _ := topOption(results)
	return top.Score
}

var actionOrder = []models.Action{
	models.ActionStrongBuy,
	models.ActionBuy,
	models.ActionCautious,
	models.ActionWait,
}

func downgrade(a models.Action) models.Action {
	for i, x := range actionOrder {
		if x == a && i+1 < len(actionOrder) {
			return actionOrder[i+1]
		}
	}
	return a
}

// decide maps the best score, portfolio risk and VRP regime to one action.
//
//	best >= 80 and risk low/moderate   strong_buy
//	best >= 70 and risk not very_high  buy
//	best >= 60                         cautious
//	otherwise                          wait
//
// The action then drops one step when the volatility regime works against
// the best strategy: sellers in a low or negative premium, buyers in a high
// premium.
func decide(results map[models.Strategy]*models.StrategyResult, pr *models.PortfolioRiskAssessment, tier models.VRPTier) models.OverallRecommendation {
	top, ok := topOption(results)
	if !ok {
		return models.OverallRecommendation{
			Action:    models.ActionWait,
			Rationale: "No eligible contracts for the requested strategies",
		}
	}

	level := models.PortfolioModerate
	if pr != nil {
		level = pr.Level
	}

	var action models.Action
	switch {
	case top.Score >= strategy.StrongScore && (level == models.PortfolioLow || level == models.PortfolioModerate):
		action = models.ActionStrongBuy
	case top.Score >= strategy.HighScore && level != models.PortfolioVeryHigh:
		action = models.ActionBuy
	case top.Score >= strategy.ModerateScore:
		action = models.ActionCautious
	default:
		action = models.ActionWait
	}

	rationale := fmt.Sprintf("Best candidate is %s %.2f scoring %.1f with %s portfolio risk",
		top.Strategy, top.Strike, top.Score, level)

	against := (top.Strategy.IsSeller() && (tier == models.VRPLowPremium || tier == models.VRPNegativePremium)) ||
		(!top.Strategy.IsSeller() && tier == models.VRPHighPremium)
	if against && action != models.ActionWait {
		action = downgrade(action)
		rationale += fmt.Sprintf("; downgraded because the %s volatility regime works against it", tier)
	}

	return models.OverallRecommendation{Action: action, Rationale: rationale}
}
