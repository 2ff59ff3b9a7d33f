// Package engine runs a full options analysis for one symbol: market
// resolution, data fetch, volatility premium, per-strategy scoring, risk
// profiles, portfolio risk and the overall recommendation.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "optscore/internal/errors"
	"optscore/internal/logging"
	"optscore/internal/market"
	"optscore/internal/metrics"
	"optscore/internal/models"
	"optscore/internal/profile"
	"optscore/internal/provider"
	"optscore/internal/risk"
	"optscore/internal/strategy"
	"optscore/internal/underlying"
	"optscore/internal/volatility"
)

// Options tunes an Engine.
type Options struct {
	ProfileTopN        int     // recommendations per strategy that get a profile
	HistoryDays        int     // daily bars requested for enrichment and realized vol
	BestScoreThreshold float64 // strategies whose best score exceeds this are "best"
	StyleBucketSize    int
	Now                func() time.Time
}

// DefaultOptions returns the standard analysis options.
func DefaultOptions() Options {
	return Options{
		ProfileTopN:        5,
		HistoryDays:        260,
		BestScoreThreshold: 70,
		StyleBucketSize:    3,
		Now:                time.Now,
	}
}

// Engine orchestrates analyses. It holds only read-only collaborators, so
// concurrent analyses need no coordination.
type Engine struct {
	resolver  *market.Resolver
	provider  provider.Provider
	scorers   *strategy.Registry
	vrp       *volatility.Calculator
	enricher  *underlying.Enricher
	profiler  *profile.Profiler
	portfolio *risk.PortfolioAssessor
	sizer     *risk.Sizer
	metrics   *metrics.Registry
	logger    zerolog.Logger
	opts      Options
}

// New creates an engine with default component configurations. m may be nil.
func New(resolver *market.Resolver, p provider.Provider, opts Options, m *metrics.Registry, logger zerolog.Logger) *Engine {
	if resolver == nil {
		resolver = market.Default()
	}
	def := DefaultOptions()
	if opts.ProfileTopN < 0 {
		opts.ProfileTopN = 0
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = def.HistoryDays
	}
	if opts.BestScoreThreshold <= 0 {
		opts.BestScoreThreshold = def.BestScoreThreshold
	}
	if opts.StyleBucketSize <= 0 {
		opts.StyleBucketSize = def.StyleBucketSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		resolver:  resolver,
		provider:  p,
		scorers:   strategy.NewRegistry(nil),
		vrp:       volatility.NewCalculator(volatility.DefaultConfig()),
		enricher:  underlying.NewEnricher(underlying.DefaultConfig()),
		profiler:  profile.NewProfiler(profile.DefaultConfig()),
		portfolio: risk.NewPortfolioAssessor(risk.DefaultPortfolioConfig()),
		sizer:     risk.NewSizer(nil),
		metrics:   m,
		logger:    logger,
		opts:      opts,
	}
}

// Resolver returns the engine's market resolver.
func (e *Engine) Resolver() *market.Resolver { return e.resolver }

// parseStrategies expands "all" into the canonical order.
func parseStrategies(name string) ([]models.Strategy, bool) {
	s, ok := models.ParseStrategy(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return nil, false
	}
	if s == models.AllStrategies {
		return models.Strategies(), true
	}
	return []models.Strategy{s}, true
}

// AnalyzeOptionsChain runs a full analysis. Failures are reported on the
// result with Success=false and an error code; it never returns a nil result.
func (e *Engine) AnalyzeOptionsChain(ctx context.Context, symbol, strategyName string) *models.AnalysisResult {
	sym := market.Normalize(symbol)
	cfg := e.resolver.Resolve(sym)

	res := &models.AnalysisResult{
		ID:       uuid.NewString(),
		Symbol:   sym,
		Market:   cfg.Code(),
		Currency: cfg.Currency(),
		AsOf:     e.opts.Now(),
	}
	logger := logging.WithRequestID(logging.WithSymbol(e.logger, sym), res.ID)
	timer := e.metrics.StartAnalysis(string(cfg.Code()))
	start := time.Now()

	fail := func(err error) *models.AnalysisResult {
		res.Success = false
		res.ErrorCode = string(apperrors.Code(err))
		res.Error = err.Error()
		timer.Stop(false)
		logging.LogAnalysisFailure(logger, sym, res.ErrorCode, err)
		return res
	}

	strategies, ok := parseStrategies(strategyName)
	if !ok {
		return fail(fmt.Errorf("%w %q: want sell_put, sell_call, buy_put, buy_call or all",
			apperrors.ErrInvalidStrategy, strategyName))
	}

	if !cfg.Allows(sym) {
		res.AllowedSymbols = market.AllowedSymbols(cfg)
		return fail(&apperrors.WhitelistError{Symbol: sym, Market: string(cfg.Code()), Allowed: res.AllowedSymbols})
	}

	if e.provider == nil {
		return fail(apperrors.Unavailable("chain", sym, fmt.Errorf("no data provider configured")))
	}
	if err := ctx.Err(); err != nil {
		return fail(apperrors.Unavailable("chain", sym, err))
	}
	chain, err := e.provider.OptionsChain(ctx, sym)
	if err != nil {
		return fail(dataErr("chain", sym, err))
	}
	snap, err := e.provider.Underlying(ctx, sym)
	if err != nil {
		return fail(dataErr("underlying", sym, err))
	}
	if chain == nil || snap == nil {
		return fail(apperrors.Unavailable("snapshot", sym, nil))
	}

	bars, err := e.provider.PriceHistory(ctx, sym, e.opts.HistoryDays)
	if err != nil {
		logger.Warn().Err(err).Msg("Price history unavailable; continuing without it")
		bars = nil
	}

	u := e.enricher.Enrich(*snap, bars)
	if u.Symbol == "" {
		u.Symbol = sym
	}
	if u.AsOf.IsZero() {
		u.AsOf = chain.AsOf
	}
	if u.AsOf.IsZero() {
		u.AsOf = res.AsOf
	}
	res.AsOf = u.AsOf
	if u.CurrentPrice <= 0 {
		return fail(apperrors.NewDataError("underlying", sym, "no current price", apperrors.ErrDataUnavailable))
	}

	vrp := e.vrp.Calculate(chain, u, models.Closes(bars), cfg.TradingDaysPerYear())
	if u.Volatility30d <= 0 && vrp.HVSource == volatility.SourcePriceHistory {
		u.Volatility30d = vrp.HistoricalVol
	}
	res.VRP = &vrp
	res.Underlying = &u

	res.Strategies = make(map[models.Strategy]*models.StrategyResult, len(strategies))
	for _, s := range strategies {
		sc, _ := e.scorers.Get(s)
		sr := sc.Analyze(chain.Side(s.ContractType()), u, cfg)
		e.attachProfiles(sr, u, cfg, &vrp)
		res.Strategies[s] = sr

		e.metrics.RecordScored(string(s), sr.Eligible)
		logging.LogStrategyScored(logging.WithStrategy(logger, string(s)), string(s), sr.Evaluated, sr.Eligible, sr.Summary.BestScore)
	}

	res.PortfolioRisk = e.portfolio.Assess(res.Strategies, u, &vrp)
	res.BestStrategies = bestStrategies(res.Strategies, e.opts.BestScoreThreshold)
	res.StyleBuckets = styleBuckets(res.Strategies, e.opts.StyleBucketSize)
	overall := decide(res.Strategies, res.PortfolioRisk, vrp.Tier)
	res.Overall = &overall
	res.Success = true

	timer.Stop(true)
	logging.LogAnalysis(logger, sym, string(cfg.Code()), string(overall.Action), topScore(res.Strategies), time.Since(start))
	return res
}

func (e *Engine) attachProfiles(sr *models.StrategyResult, u models.UnderlyingSnapshot, cfg *market.Config, vrp *models.VRPResult) {
	n := e.opts.ProfileTopN
	if n > len(sr.Recommendations) {
		n = len(sr.Recommendations)
	}
	for i := 0; i < n; i++ {
		p := e.profiler.Profile(sr.Recommendations[i], u, cfg, vrp)
		sr.Recommendations[i].Profile = &p
	}
}

// ScoreOptions scores one side of a chain for a single strategy and returns
// every eligible contract, sorted.
func (e *Engine) ScoreOptions(strategyName string, side []models.OptionContract, u models.UnderlyingSnapshot, cfg *market.Config) ([]models.ScoredOption, error) {
	s, ok := models.ParseStrategy(strings.ToLower(strings.TrimSpace(strategyName)))
	if !ok || s == models.AllStrategies {
		return nil, fmt.Errorf("%w %q: want a single strategy", apperrors.ErrInvalidStrategy, strategyName)
	}
	if cfg == nil {
		cfg = e.resolver.Resolve(u.Symbol)
	}
	sc, _ := e.scorers.Get(s)
	out := sc.Score(side, u, cfg)
	e.metrics.RecordScored(string(s), len(out))
	return out, nil
}

// CalculatePositionSizing sizes the best contract of each strategy in an
// analysis against portfolioValue under the named risk tolerance.
func (e *Engine) CalculatePositionSizing(res *models.AnalysisResult, portfolioValue float64, tolerance string) models.PositionSizingResult {
	in := risk.SizingInput{Best: make(map[models.Strategy]models.ScoredOption)}
	if res == nil {
		return e.sizer.Size(in, portfolioValue, tolerance)
	}
	for s, sr := range res.Strategies {
		if best, ok := sr.Best(); ok {
			in.Best[s] = best
		}
	}
	if res.Underlying != nil {
		in.Spot = res.Underlying.CurrentPrice
	}
	if cfg := e.resolver.Config(res.Market); cfg != nil {
		in.MarginRate = cfg.MarginRate()
	}
	return e.sizer.Size(in, portfolioValue, tolerance)
}

// dataErr keeps provider errors that already carry a result code and maps
// everything else to DATA_UNAVAILABLE.
func dataErr(dataType, symbol string, err error) error {
	if apperrors.Code(err) == apperrors.CodeInternal {
		return apperrors.Unavailable(dataType, symbol, err)
	}
	return err
}
