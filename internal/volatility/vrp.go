package volatility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"optscore/internal/models"
)

// Sources recorded in VRPResult.
const (
	SourceNearMoney    = "near_money"
	SourceWideBand     = "wide_band"
	SourceChainAverage = "chain_average"
	SourceDefault      = "default"
	SourcePriceHistory = "price_history"
	SourceSnapshot     = "snapshot_30d"
)

// Config holds VRP parameters.
type Config struct {
	NearMoneyBand        float64 // strikes within this fraction of spot
	WideBand             float64 // fallback band when the near band is empty
	Window               int     // trailing returns used for realized volatility
	MinCloses            int
	DefaultImpliedVol    float64
	DefaultHistoricalVol float64
	HighPremium          float64
	ModeratePremium      float64
	LowPremium           float64 // negative
	NegativePremium      float64 // negative
}

// DefaultConfig returns the standard VRP parameters.
func DefaultConfig() Config {
	return Config{
		NearMoneyBand:        0.05,
		WideBand:             0.10,
		Window:               30,
		MinCloses:            10,
		DefaultImpliedVol:    0.25,
		DefaultHistoricalVol: 0.20,
		HighPremium:          0.15,
		ModeratePremium:      0.05,
		LowPremium:           -0.05,
		NegativePremium:      -0.15,
	}
}

// Calculator computes volatility risk premium. It never fails: missing data
// is replaced by documented defaults listed in Assumptions.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a VRP calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate compares chain IV with realized volatility from closes (oldest
// first), falling back to the snapshot's 30-day volatility.
func (c *Calculator) Calculate(chain *models.OptionChain, u models.UnderlyingSnapshot, closes []float64, tradingDays int) models.VRPResult {
	var r models.VRPResult
	r.ImpliedVol, r.IVSource = c.impliedVol(chain, u.CurrentPrice)
	if r.IVSource == SourceDefault {
		r.Assumptions = append(r.Assumptions,
			fmt.Sprintf("no implied volatility in chain; assumed %.0f%%", c.cfg.DefaultImpliedVol*100))
	}

	if hv, n, ok := Realized(closes, c.cfg.Window, c.cfg.MinCloses, tradingDays); ok {
		r.HistoricalVol, r.HVSource, r.SampleSize = hv, SourcePriceHistory, n
	} else if hv := u.HistVol(); hv > 0 {
		r.HistoricalVol, r.HVSource = hv, SourceSnapshot
		if len(closes) > 0 {
			r.Assumptions = append(r.Assumptions,
				fmt.Sprintf("only %d closes; used snapshot 30-day volatility", len(closes)))
		}
	} else {
		r.HistoricalVol, r.HVSource = c.cfg.DefaultHistoricalVol, SourceDefault
		r.Assumptions = append(r.Assumptions,
			fmt.Sprintf("no realized volatility available; assumed %.0f%%", c.cfg.DefaultHistoricalVol*100))
	}

	r.VRPAbsolute = r.ImpliedVol - r.HistoricalVol
	if r.HistoricalVol > 0 {
		r.VRPRelative = r.VRPAbsolute / r.HistoricalVol
	}
	r.Tier = c.Classify(r.VRPAbsolute)
	r.Description = describe(r)
	return r
}

// Classify buckets an absolute VRP into a tier.
func (c *Calculator) Classify(vrp float64) models.VRPTier {
	switch {
	case vrp >= c.cfg.HighPremium:
		return models.VRPHighPremium
	case vrp >= c.cfg.ModeratePremium:
		return models.VRPModeratePremium
	case vrp <= c.cfg.NegativePremium:
		return models.VRPNegativePremium
	case vrp <= c.cfg.LowPremium:
		return models.VRPLowPremium
	default:
		return models.VRPNormal
	}
}

// impliedVol averages IV over calls and puts near the money, widening the
// band and finally using the whole chain when a band is empty.
func (c *Calculator) impliedVol(chain *models.OptionChain, spot float64) (float64, string) {
	if chain == nil {
		return c.cfg.DefaultImpliedVol, SourceDefault
	}
	all := make([]models.OptionContract, 0, len(chain.Calls)+len(chain.Puts))
	all = append(all, chain.Calls...)
	all = append(all, chain.Puts...)

	if spot > 0 {
		if iv, ok := meanIV(all, spot, c.cfg.NearMoneyBand); ok {
			return iv, SourceNearMoney
		}
		if iv, ok := meanIV(all, spot, c.cfg.WideBand); ok {
			return iv, SourceWideBand
		}
	}
	if iv, ok := meanIV(all, 0, 0); ok {
		return iv, SourceChainAverage
	}
	return c.cfg.DefaultImpliedVol, SourceDefault
}

// meanIV averages positive IVs of contracts within band of spot. A zero
// spot disables the band.
func meanIV(contracts []models.OptionContract, spot, band float64) (float64, bool) {
	ivs := make([]float64, 0, len(contracts))
	for _, ct := range contracts {
		iv := ct.IV()
		if iv <= 0 || math.IsNaN(iv) || math.IsInf(iv, 0) {
			continue
		}
		if spot > 0 && math.Abs(ct.Strike-spot)/spot > band {
			continue
		}
		ivs = append(ivs, iv)
	}
	if len(ivs) == 0 {
		return 0, false
	}
	return stat.Mean(ivs, nil), true
}

func describe(r models.VRPResult) string {
	spread := fmt.Sprintf("IV %.1f%% vs HV %.1f%%", r.ImpliedVol*100, r.HistoricalVol*100)
	switch r.Tier {
	case models.VRPHighPremium:
		return "Options are richly priced (" + spread + "); premium selling is favored"
	case models.VRPModeratePremium:
		return "Options carry a moderate premium (" + spread + "); selling has a mild edge"
	case models.VRPLowPremium:
		return "Options are slightly cheap (" + spread + "); buying has a mild edge"
	case models.VRPNegativePremium:
		return "Options are cheap relative to realized movement (" + spread + "); buying is favored"
	default:
		return "Implied and realized volatility are in line (" + spread + ")"
	}
}
