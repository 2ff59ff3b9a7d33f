// Package strategy scores single-leg option contracts for the four canonical
// strategies: selling puts, selling calls, buying calls and buying puts.
package strategy

import (
	"fmt"
	"sort"

	"optscore/internal/delivery"
	"optscore/internal/market"
	"optscore/internal/models"
)

// TopN is the number of recommendations an analysis keeps.
const TopN = 10

// Scorer scores one side of a chain for a single strategy. Implementations
// are stateless and safe for concurrent use.
type Scorer interface {
	Strategy() models.Strategy
	// Score returns every eligible contract, scored and sorted.
	Score(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) []models.ScoredOption
	// Analyze returns the top recommendations with a strategy summary.
	Analyze(side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) *models.StrategyResult
}

// variant is the per-strategy part of the shared scoring skeleton.
type variant interface {
	strategy() models.Strategy
	eligible(c models.OptionContract, e *env) bool
	factors(c models.OptionContract, e *env) []models.FactorScore
	derive(so *models.ScoredOption, e *env)
	advice(best models.ScoredOption, e *env) []string
}

// pass is the outcome of scoring one side.
type pass struct {
	scored    []models.ScoredOption
	evaluated int
	skipped   int
}

// run applies the skeleton: validate, filter, score, derive, penalize
// delivery risk and sort.
func run(v variant, dc *delivery.Calculator, side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) pass {
	p := pass{evaluated: len(side)}
	if cfg == nil || u.CurrentPrice <= 0 {
		p.skipped = len(side)
		return p
	}
	e := newEnv(u, cfg)
	want := v.strategy().ContractType()

	for _, c := range side {
		if c.Validate() != nil || c.Type != want {
			p.skipped++
			continue
		}
		if !v.eligible(c, e) {
			continue
		}

		factors := v.factors(c, e)
		so := models.ScoredOption{
			OptionContract: c,
			Strategy:       v.strategy(),
			Score:          sumFactors(factors),
			Factors:        factors,
			MidPrice:       c.Mid(),
			OTMPercent:     OTMPercent(c, e.spot),
			Multiplier:     e.multiplier,
		}
		so.AssignmentRisk = AssignmentTier(so.OTMPercent)
		v.derive(&so, e)

		if !cfg.CashSettled() {
			code := c.ContractCode
			if code == "" {
				code = u.Symbol
			}
			a := dc.AssessContract(code, e.asOf, cfg.Location())
			so.Delivery = &a
			so.Score *= delivery.Multiplier(a)
		}
		so.Score = round2(so.Score)
		p.scored = append(p.scored, so)
	}

	sortScored(p.scored)
	return p
}

// sortScored orders by score desc, then strike asc, then DTE asc.
func sortScored(s []models.ScoredOption) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		if s[i].Strike != s[j].Strike {
			return s[i].Strike < s[j].Strike
		}
		return s[i].DaysToExpiry < s[j].DaysToExpiry
	})
}

// analyze wraps run with top-N truncation and the summary.
func analyze(v variant, dc *delivery.Calculator, side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) *models.StrategyResult {
	p := run(v, dc, side, u, cfg)

	top := p.scored
	if len(top) > TopN {
		top = top[:TopN]
	}
	recs := make([]models.ScoredOption, len(top))
	copy(recs, top)

	return &models.StrategyResult{
		Strategy:        v.strategy(),
		Success:         true,
		Recommendations: recs,
		Evaluated:       p.evaluated,
		Eligible:        len(p.scored),
		Skipped:         p.skipped,
		Summary:         summarize(v, p.scored, recs, cfg, u),
	}
}

// Summary thresholds.
const (
	HighScore     = 70.0
	StrongScore   = 80.0
	ModerateScore = 60.0
)

var outlooks = map[models.Strategy]models.MarketOutlook{
	models.SellPut:  models.OutlookNeutralBullish,
	models.SellCall: models.OutlookNeutralBearish,
	models.BuyCall:  models.OutlookBullish,
	models.BuyPut:   models.OutlookBearish,
}

func summarize(v variant, all, top []models.ScoredOption, cfg *market.Config, u models.UnderlyingSnapshot) models.StrategySummary {
	s := models.StrategySummary{Outlook: outlooks[v.strategy()]}
	name := displayName(v.strategy())

	if len(all) == 0 {
		s.Recommendations = []string{fmt.Sprintf("No eligible contracts for %s", name)}
		return s
	}

	var sum float64
	for _, so := range all {
		sum += so.Score
		if so.Score >= HighScore {
			s.HighScoreCount++
		}
	}
	best := top[0]
	s.BestScore = best.Score
	s.AverageScore = round2(sum / float64(len(all)))

	switch {
	case best.Score >= StrongScore:
		s.Recommendations = append(s.Recommendations,
			fmt.Sprintf("Strong %s setup: strike %.2f, %d DTE, score %.1f", name, best.Strike, best.DaysToExpiry, best.Score))
	case best.Score >= ModerateScore:
		s.Recommendations = append(s.Recommendations,
			fmt.Sprintf("Moderate %s opportunity at strike %.2f; confirm with your own view", name, best.Strike))
	default:
		s.Recommendations = append(s.Recommendations,
			fmt.Sprintf("No compelling %s candidates; consider waiting", name))
	}
	if s.HighScoreCount >= 3 {
		s.Recommendations = append(s.Recommendations,
			fmt.Sprintf("%d contracts score %.0f or better; spread entries across strikes", s.HighScoreCount, HighScore))
	}

	e := newEnv(u, cfg)
	s.Recommendations = append(s.Recommendations, v.advice(best, e)...)

	if cfg != nil && !cfg.CashSettled() {
		for _, so := range top {
			if so.Delivery != nil && so.Delivery.Zone != models.ZoneSafe {
				s.Recommendations = append(s.Recommendations,
					"Some contracts are close to their delivery month and were penalized; prefer later months")
				break
			}
		}
	}
	return s
}

func displayName(s models.Strategy) string {
	switch s {
	case models.SellPut:
		return "sell put"
	case models.SellCall:
		return "sell call"
	case models.BuyCall:
		return "buy call"
	case models.BuyPut:
		return "buy put"
	}
	return string(s)
}

// Registry holds one scorer per strategy.
type Registry struct {
	scorers map[models.Strategy]Scorer
}

// NewRegistry creates scorers with default configs. A nil calculator uses
// the default delivery thresholds.
func NewRegistry(dc *delivery.Calculator) *Registry {
	if dc == nil {
		dc = delivery.NewCalculator(delivery.DefaultThresholds())
	}
	return &Registry{
		scorers: map[models.Strategy]Scorer{
			models.SellPut:  NewSellPutScorer(DefaultSellPutConfig(), dc),
			models.SellCall: NewSellCallScorer(DefaultSellCallConfig(), dc),
			models.BuyCall:  NewBuyCallScorer(DefaultBuyCallConfig(), dc),
			models.BuyPut:   NewBuyPutScorer(DefaultBuyPutConfig(), dc),
		},
	}
}

// Get returns the scorer for a single-leg strategy.
func (r *Registry) Get(s models.Strategy) (Scorer, bool) {
	sc, ok := r.scorers[s]
	return sc, ok
}

// Register replaces the scorer for its strategy.
func (r *Registry) Register(sc Scorer) {
	r.scorers[sc.Strategy()] = sc
}
