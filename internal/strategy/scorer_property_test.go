package strategy

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"optscore/internal/models"
)

// contractGen generates contracts around a 100 spot with valid quotes.
func contractGen(t models.ContractType) gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(50, 150), // strike
		gen.Float64Range(0, 20),   // bid
		gen.Float64Range(0, 2),    // spread
		gen.IntRange(1, 200),      // dte
		gen.Float64Range(0, 1.5),  // iv
		gen.Int64Range(0, 5000),   // volume
		gen.Int64Range(0, 20000),  // open interest
	).Map(func(v []interface{}) models.OptionContract {
		bid := v[1].(float64)
		return models.OptionContract{
			Strike:            v[0].(float64),
			Bid:               bid,
			Ask:               bid + v[2].(float64),
			DaysToExpiry:      v[3].(int),
			ImpliedVolatility: v[4].(float64),
			Volume:            v[5].(int64),
			OpenInterest:      v[6].(int64),
			Type:              t,
		}
	})
}

func underlyingGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-10, 10),  // change percent
		gen.Float64Range(0, 80),    // volatility30d in percent
		gen.Float64Range(0.6, 1.4), // MA50 / spot
		gen.Float64Range(0, 1),     // VIX selector
	).Map(func(v []interface{}) models.UnderlyingSnapshot {
		u := models.UnderlyingSnapshot{
			Symbol:        "TEST",
			AsOf:          time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			CurrentPrice:  100,
			ChangePercent: v[0].(float64),
			Volatility30d: v[1].(float64),
			Week52High:    130,
			Week52Low:     70,
			MA50:          models.Float(100 * v[2].(float64)),
			Resistance:    models.Float(108),
			Support:       models.Float(93),
		}
		if sel := v[3].(float64); sel > 0.5 {
			u.Sentiment = &models.MarketSentiment{VIX: models.Float(sel * 60)}
		}
		return u
	})
}

// Property: every scored contract, for every strategy, lands in [0, 100]
// and carries factor scores in [0, 100].
func TestProperty_ScoreWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	reg := NewRegistry(nil)

	for _, st := range models.Strategies() {
		st := st
		sc, _ := reg.Get(st)
		properties.Property(string(st)+" score is within [0, 100]", prop.ForAll(
			func(side []models.OptionContract, u models.UnderlyingSnapshot) bool {
				for _, so := range sc.Score(side, u, usConfig()) {
					if so.Score < 0 || so.Score > 100 {
						return false
					}
					for _, f := range so.Factors {
						if f.Score < 0 || f.Score > 100 {
							return false
						}
					}
				}
				return true
			},
			gen.SliceOfN(20, contractGen(st.ContractType())),
			underlyingGen(),
		))
	}

	properties.TestingRun(t)
}

// Property: sell-put recommendations never exceed spot * 1.02 and sell-call
// recommendations never fall below spot * 0.95.
func TestProperty_SellerStrikeBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	sp := NewSellPutScorer(DefaultSellPutConfig(), nil)
	sc := NewSellCallScorer(DefaultSellCallConfig(), nil)

	properties.Property("sell put strike <= spot * 1.02", prop.ForAll(
		func(side []models.OptionContract, u models.UnderlyingSnapshot) bool {
			for _, so := range sp.Analyze(side, u, usConfig()).Recommendations {
				if so.Strike > u.CurrentPrice*1.02 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(30, contractGen(models.Put)),
		underlyingGen(),
	))

	properties.Property("sell call strike >= spot * 0.95", prop.ForAll(
		func(side []models.OptionContract, u models.UnderlyingSnapshot) bool {
			for _, so := range sc.Analyze(side, u, usConfig()).Recommendations {
				if so.Strike < u.CurrentPrice*0.95 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(30, contractGen(models.Call)),
		underlyingGen(),
	))

	properties.TestingRun(t)
}

// Property: analysis never returns more than TopN recommendations and
// accounts for every contract it was given.
func TestProperty_AnalyzeAccounting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	sc := NewBuyPutScorer(DefaultBuyPutConfig(), nil)

	properties.Property("top-N and counts are consistent", prop.ForAll(
		func(side []models.OptionContract, u models.UnderlyingSnapshot) bool {
			res := sc.Analyze(side, u, usConfig())
			return res.Success &&
				len(res.Recommendations) <= TopN &&
				res.Evaluated == len(side) &&
				res.Eligible+res.Skipped <= res.Evaluated &&
				len(res.Recommendations) == min(res.Eligible, TopN)
		},
		gen.SliceOfN(40, contractGen(models.Put)),
		underlyingGen(),
	))

	properties.TestingRun(t)
}
