// Package underlying fills in snapshot fields that can be derived from
// daily price history.
package underlying

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"

	"optscore/internal/models"
)

// Config controls the lookback windows.
type Config struct {
	ShortMA     int // 50
	LongMA      int // 200
	LevelWindow int // bars scanned for support and resistance
	YearBars    int // bars in a 52-week range
}

// DefaultConfig returns the standard windows.
func DefaultConfig() Config {
	return Config{
		ShortMA:     50,
		LongMA:      200,
		LevelWindow: 20,
		YearBars:    252,
	}
}

// Enricher derives missing snapshot fields from bars.
type Enricher struct {
	cfg Config
}

// NewEnricher creates an enricher.
func NewEnricher(cfg Config) *Enricher {
	return &Enricher{cfg: cfg}
}

// Enrich returns a copy of u with missing fields derived from bars. Fields
// already present in u are never overwritten. Bars may arrive in any order.
func (e *Enricher) Enrich(u models.UnderlyingSnapshot, bars []models.Bar) models.UnderlyingSnapshot {
	bars = usable(bars)
	if len(bars) == 0 {
		return u
	}
	closes := models.Closes(bars)
	last := closes[len(closes)-1]

	if u.CurrentPrice <= 0 {
		u.CurrentPrice = last
		if n := len(closes); n >= 2 && closes[n-2] > 0 {
			u.ChangePercent = (last/closes[n-2] - 1) * 100
		}
	}
	if u.MA50 == nil {
		u.MA50 = sma(closes, e.cfg.ShortMA)
	}
	if u.MA200 == nil {
		u.MA200 = sma(closes, e.cfg.LongMA)
	}
	if u.Week52High <= 0 || u.Week52Low <= 0 {
		hi, lo := highLow(tail(bars, e.cfg.YearBars))
		if u.Week52High <= 0 {
			u.Week52High = hi
		}
		if u.Week52Low <= 0 {
			u.Week52Low = lo
		}
	}
	if u.Support == nil || u.Resistance == nil {
		hi, lo := highLow(tail(bars, e.cfg.LevelWindow))
		if u.Resistance == nil {
			u.Resistance = models.Float(hi)
		}
		if u.Support == nil {
			u.Support = models.Float(lo)
		}
	}
	return u
}

// usable drops bars without a positive close and sorts by date.
func usable(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 && !math.IsNaN(b.Close) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// sma returns the latest simple moving average, or nil with too few closes.
func sma(closes []float64, period int) *float64 {
	if period <= 1 || len(closes) < period {
		return nil
	}
	out := talib.Sma(closes, period)
	if len(out) == 0 || math.IsNaN(out[len(out)-1]) {
		return nil
	}
	v := out[len(out)-1]
	return &v
}

func tail(bars []models.Bar, n int) []models.Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

// highLow scans highs and lows, using the close when a bar has no range.
func highLow(bars []models.Bar) (hi, lo float64) {
	lo = math.Inf(1)
	for _, b := range bars {
		h, l := b.High, b.Low
		if h <= 0 {
			h = b.Close
		}
		if l <= 0 {
			l = b.Close
		}
		hi = math.Max(hi, h)
		lo = math.Min(lo, l)
	}
	if math.IsInf(lo, 1) {
		lo = 0
	}
	return hi, lo
}
