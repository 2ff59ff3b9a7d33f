package engine

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optscore/internal/errors"
	"optscore/internal/market"
	"optscore/internal/metrics"
	"optscore/internal/models"
	"optscore/internal/volatility"
)

type fakeProvider struct {
	chain      *models.OptionChain
	underlying *models.UnderlyingSnapshot
	bars       []models.Bar

	chainErr   error
	historyErr error
	calls      atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) OptionsChain(_ context.Context, _ string) (*models.OptionChain, error) {
	f.calls.Add(1)
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return f.chain, nil
}

func (f *fakeProvider) Underlying(_ context.Context, _ string) (*models.UnderlyingSnapshot, error) {
	f.calls.Add(1)
	u := *f.underlying
	return &u, nil
}

func (f *fakeProvider) PriceHistory(_ context.Context, _ string, _ int) ([]models.Bar, error) {
	f.calls.Add(1)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.bars, nil
}

var asOf = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

// sampleChain builds a 30 DTE chain around a 180 spot with strikes every 5.
func sampleChain() *models.OptionChain {
	c := &models.OptionChain{Symbol: "AAPL", AsOf: asOf}
	expiry := asOf.AddDate(0, 0, 30)
	for k := 150.0; k <= 210; k += 5 {
		putMid := 0.5 + max(k-180, 0) + (k-150)/15
		callMid := 0.5 + max(180-k, 0) + (210-k)/15
		base := models.OptionContract{
			Strike:            k,
			Volume:            400,
			OpenInterest:      2500,
			ImpliedVolatility: 0.28,
			DaysToExpiry:      30,
			Expiry:            expiry,
			Greeks:            &models.OptionGreeks{Delta: 0.4},
		}
		put := base
		put.Type, put.Bid, put.Ask = models.Put, putMid-0.05, putMid+0.05
		put.Greeks = &models.OptionGreeks{Delta: -0.4}
		call := base
		call.Type, call.Bid, call.Ask = models.Call, callMid-0.05, callMid+0.05
		c.Puts = append(c.Puts, put)
		c.Calls = append(c.Calls, call)
	}
	return c
}

func sampleUnderlying() *models.UnderlyingSnapshot {
	return &models.UnderlyingSnapshot{
		Symbol:        "AAPL",
		AsOf:          asOf,
		CurrentPrice:  180,
		ChangePercent: 0.8,
		Volatility30d: 22,
		Week52High:    200,
		Week52Low:     150,
		Support:       models.Float(172),
		Resistance:    models.Float(192),
		MA50:          models.Float(176),
		MA200:         models.Float(168),
	}
}

func sampleBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	price := 160.0
	for i := range bars {
		if i%2 == 0 {
			price *= 1.012
		} else {
			price *= 0.994
		}
		bars[i] = models.Bar{
			Date:  asOf.AddDate(0, 0, i-n),
			Open:  price,
			High:  price * 1.01,
			Low:   price * 0.99,
			Close: price,
		}
	}
	return bars
}

func newTestEngine(p *fakeProvider, m *metrics.Registry) *Engine {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return asOf }
	return New(market.Default(), p, opts, m, zerolog.New(io.Discard))
}

func newFake() *fakeProvider {
	return &fakeProvider{chain: sampleChain(), underlying: sampleUnderlying(), bars: sampleBars(60)}
}

func TestAnalyzeAllStrategies(t *testing.T) {
	m := metrics.New()
	e := newTestEngine(newFake(), m)

	res := e.AnalyzeOptionsChain(context.Background(), "aapl", "all")
	require.True(t, res.Success, res.Error)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, models.MarketUS, res.Market)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, asOf, res.AsOf)
	require.Len(t, res.Strategies, 4)
	require.NotNil(t, res.VRP)
	assert.Equal(t, volatility.SourcePriceHistory, res.VRP.HVSource)
	require.NotNil(t, res.Overall)

	for s, sr := range res.Strategies {
		assert.Equal(t, 13, sr.Evaluated, s)
		for i, so := range sr.Recommendations {
			if i < 5 {
				require.NotNil(t, so.Profile, "%s #%d", s, i)
				assert.NotEmpty(t, so.Profile.Summary)
			} else {
				assert.Nil(t, so.Profile, "%s #%d", s, i)
			}
		}
	}

	for i, b := range res.BestStrategies {
		assert.Greater(t, b.Score, 70.0)
		if i > 0 {
			assert.LessOrEqual(t, b.Score, res.BestStrategies[i-1].Score)
		}
	}
	for style, list := range res.StyleBuckets {
		assert.NotEmpty(t, list, style)
		assert.LessOrEqual(t, len(list), 3, style)
		for _, so := range list {
			assert.Equal(t, style, so.Profile.Style)
		}
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("US", metrics.ResultSuccess)))
}

func TestAnalyzeSingleStrategy(t *testing.T) {
	e := newTestEngine(newFake(), nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "Sell_Put")
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Strategies, 1)
	sr, ok := res.Strategies[models.SellPut]
	require.True(t, ok)
	for _, so := range sr.Recommendations {
		assert.LessOrEqual(t, so.Strike, 180*1.02)
	}
	require.NotNil(t, res.PortfolioRisk)
	assert.Contains(t, res.PortfolioRisk.StrategyRisks, models.SellPut)
}

func TestAnalyzeIdempotent(t *testing.T) {
	e := newTestEngine(newFake(), nil)

	a := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	b := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	require.True(t, a.Success)
	require.True(t, b.Success)

	assert.NotEqual(t, a.ID, b.ID)
	b.ID = a.ID
	assert.Equal(t, a, b)
}

func TestAnalyzeInvalidStrategy(t *testing.T) {
	p := newFake()
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "iron_condor")
	assert.False(t, res.Success)
	assert.Equal(t, string(apperrors.CodeInvalidStrategy), res.ErrorCode)
	assert.Contains(t, res.Error, "iron_condor")
	assert.Zero(t, p.calls.Load())
}

func TestAnalyzeNotWhitelisted(t *testing.T) {
	p := newFake()
	m := metrics.New()
	e := newTestEngine(p, m)

	res := e.AnalyzeOptionsChain(context.Background(), "600519.SS", "all")
	assert.False(t, res.Success)
	assert.Equal(t, string(apperrors.CodeNotWhitelisted), res.ErrorCode)
	assert.Equal(t, models.MarketCN, res.Market)
	assert.Contains(t, res.AllowedSymbols, "510050.SS")
	assert.Zero(t, p.calls.Load(), "whitelist check must run before any fetch")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("CN", metrics.ResultFailure)))
}

func TestAnalyzeCommodityNotWhitelisted(t *testing.T) {
	p := newFake()
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "ZZ2601", "sell_put")
	assert.False(t, res.Success)
	assert.Equal(t, string(apperrors.CodeNotWhitelisted), res.ErrorCode)
	assert.Equal(t, models.MarketCommodity, res.Market)
	assert.Zero(t, p.calls.Load())
}

func TestAnalyzeDataUnavailable(t *testing.T) {
	p := newFake()
	p.chainErr = errors.New("connection reset")
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	assert.False(t, res.Success)
	assert.Equal(t, string(apperrors.CodeDataUnavailable), res.ErrorCode)
	assert.Nil(t, res.Strategies)
}

func TestAnalyzeSymbolNotFound(t *testing.T) {
	p := newFake()
	p.chainErr = apperrors.NewDataError("chain", "AAPL", "no snapshot", apperrors.ErrSymbolNotFound)
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	assert.False(t, res.Success)
	assert.Equal(t, string(apperrors.CodeDataUnavailable), res.ErrorCode)
	assert.Contains(t, res.Error, "no snapshot")
}

func TestAnalyzeMissingPrice(t *testing.T) {
	p := newFake()
	p.underlying.CurrentPrice = 0
	p.bars = nil
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	assert.False(t, res.Success)
	assert.Equal(t, string(apperrors.CodeDataUnavailable), res.ErrorCode)
}

func TestAnalyzePriceFromHistory(t *testing.T) {
	p := newFake()
	p.underlying.CurrentPrice = 0
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "sell_put")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, p.bars[len(p.bars)-1].Close, res.Underlying.CurrentPrice)
}

func TestAnalyzeToleratesMissingHistory(t *testing.T) {
	p := newFake()
	p.historyErr = errors.New("history offline")
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, volatility.SourceSnapshot, res.VRP.HVSource)
	assert.InDelta(t, 0.22, res.VRP.HistoricalVol, 1e-9)
}

func TestAnalyzeFillsVolatilityFromHistory(t *testing.T) {
	p := newFake()
	p.underlying.Volatility30d = 0
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, res.VRP.HistoricalVol, res.Underlying.Volatility30d)
	assert.Greater(t, res.Underlying.Volatility30d, 0.0)
}

func TestAnalyzeEmptyChain(t *testing.T) {
	p := newFake()
	p.chain = &models.OptionChain{Symbol: "AAPL", AsOf: asOf}
	e := newTestEngine(p, nil)

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	require.True(t, res.Success, res.Error)
	for _, sr := range res.Strategies {
		assert.Empty(t, sr.Recommendations)
	}
	assert.Empty(t, res.BestStrategies)
	assert.Nil(t, res.StyleBuckets)
	assert.Nil(t, res.PortfolioRisk)
	assert.Equal(t, models.ActionWait, res.Overall.Action)
	assert.Equal(t, volatility.SourceDefault, res.VRP.IVSource)
}

func TestAnalyzeNoProvider(t *testing.T) {
	e := New(nil, nil, DefaultOptions(), nil, zerolog.New(io.Discard))

	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	assert.False(t, res.Success)
	assert.Equal(t, string(apperrors.CodeDataUnavailable), res.ErrorCode)
}

func TestScoreOptions(t *testing.T) {
	e := newTestEngine(newFake(), nil)
	u := *sampleUnderlying()

	scored, err := e.ScoreOptions("sell_call", sampleChain().Calls, u, nil)
	require.NoError(t, err)
	require.NotEmpty(t, scored)
	for i, so := range scored {
		assert.GreaterOrEqual(t, so.Strike, 180*0.95)
		assert.Equal(t, models.SellCall, so.Strategy)
		if i > 0 {
			assert.LessOrEqual(t, so.Score, scored[i-1].Score)
		}
	}

	_, err = e.ScoreOptions("all", nil, u, nil)
	assert.Equal(t, apperrors.CodeInvalidStrategy, apperrors.Code(err))
	_, err = e.ScoreOptions("straddle", nil, u, nil)
	assert.Equal(t, apperrors.CodeInvalidStrategy, apperrors.Code(err))
}

func TestScoreOptionsExcludesZeroAsk(t *testing.T) {
	e := newTestEngine(newFake(), nil)
	u := *sampleUnderlying()
	calls := sampleChain().Calls

	before, err := e.ScoreOptions("buy_call", calls, u, nil)
	require.NoError(t, err)

	calls[len(calls)-1].Ask = 0
	calls[len(calls)-1].Bid = 0
	after, err := e.ScoreOptions("buy_call", calls, u, nil)
	require.NoError(t, err)
	assert.Len(t, after, len(before)-1)
}

func TestCalculatePositionSizing(t *testing.T) {
	e := newTestEngine(newFake(), nil)
	res := e.AnalyzeOptionsChain(context.Background(), "AAPL", "all")
	require.True(t, res.Success, res.Error)

	sizing := e.CalculatePositionSizing(res, 100000, "conservative")
	assert.Equal(t, models.Conservative, sizing.RiskTolerance)
	assert.Equal(t, 10000.0, sizing.RiskBudget)
	assert.LessOrEqual(t, sizing.TotalCapital, sizing.RiskBudget)
	assert.NotEmpty(t, sizing.Positions)

	empty := e.CalculatePositionSizing(nil, 100000, "moderate")
	assert.Empty(t, empty.Positions)
}

func TestAnalyzeBatchKeepsOrder(t *testing.T) {
	e := newTestEngine(newFake(), nil)
	symbols := []string{"AAPL", "600519.SS", "aapl", "ZZ2601"}

	results := e.AnalyzeBatch(context.Background(), symbols, "all", 2)
	require.Len(t, results, 4)
	assert.True(t, results[0].Success)
	assert.Equal(t, string(apperrors.CodeNotWhitelisted), results[1].ErrorCode)
	assert.True(t, results[2].Success)
	assert.Equal(t, "AAPL", results[2].Symbol)
	assert.Equal(t, models.MarketCommodity, results[3].Market)
}

func TestAnalyzeBatchCancelled(t *testing.T) {
	p := newFake()
	e := newTestEngine(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.AnalyzeBatch(ctx, []string{"AAPL", "SPY", "QQQ"}, "all", 0)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, string(apperrors.CodeDataUnavailable), r.ErrorCode)
	}
	assert.Zero(t, p.calls.Load())
}
