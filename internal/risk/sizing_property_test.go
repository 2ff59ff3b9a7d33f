package risk

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"optscore/internal/models"
)

func TestProperty_SizedCapitalWithinBudget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	tolerances := []string{"conservative", "moderate", "aggressive", "unknown"}

	properties.Property("total capital never exceeds the tier budget", prop.ForAll(
		func(pv, spot, premium, margin float64, mult, tol int) bool {
			in := SizingInput{Best: map[models.Strategy]models.ScoredOption{}, Spot: spot, MarginRate: margin}
			for i, st := range models.Strategies() {
				strike := spot * (0.8 + 0.1*float64(i))
				in.Best[st] = option(st, strike, premium*(1+float64(i)), float64(mult))
			}

			res := NewSizer(nil).Size(in, pv, tolerances[tol])
			if res.TotalCapital > res.RiskBudget {
				return false
			}
			var sum float64
			for _, p := range res.Positions {
				if p.Contracts < 0 {
					return false
				}
				sum += p.CapitalRequired
			}
			return sum <= res.RiskBudget+1e-6
		},
		gen.Float64Range(1000, 5_000_000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(0.01, 50),
		gen.Float64Range(0, 0.5),
		gen.IntRange(1, 10000),
		gen.IntRange(0, len(tolerances)-1),
	))

	properties.Property("scaling never increases contract counts", prop.ForAll(
		func(pv, premium float64) bool {
			in := SizingInput{Best: map[models.Strategy]models.ScoredOption{
				models.BuyCall: option(models.BuyCall, 100, premium, 100),
				models.BuyPut:  option(models.BuyPut, 100, premium, 100),
			}}
			res := NewSizer(nil).Size(in, pv, "aggressive")
			if !res.Scaled {
				return res.ScalingFactor == 1
			}
			return res.ScalingFactor > 0 && res.ScalingFactor < 1
		},
		gen.Float64Range(100, 1_000_000),
		gen.Float64Range(0.05, 100),
	))

	properties.TestingRun(t)
}
