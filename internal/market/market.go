// Package market resolves per-market contract parameters from a symbol.
package market

import (
	"sort"
	"strings"
	"time"

	"optscore/internal/models"
	"optscore/pkg/utils"
)

// Liquidity holds the minimum activity a contract needs to score well.
type Liquidity struct {
	MinVolume       int64   `json:"min_volume"`
	MinOpenInterest int64   `json:"min_open_interest"`
	MaxSpreadPct    float64 `json:"max_spread_pct"`
}

// Params is the mutable input used to build a Config.
type Params struct {
	Code               models.MarketCode
	Currency           string
	DefaultMultiplier  float64
	Multipliers        map[string]float64
	RiskFreeRate       float64
	TradingDaysPerYear int
	MarginRate         float64
	Liquidity          Liquidity
	EnforceWhitelist   bool
	Whitelist          []string
	// CashSettled is false only for markets whose contracts go to physical
	// delivery of a commodity, which is what drives the delivery penalty.
	CashSettled bool
}

// Config is an immutable set of market parameters. It is safe for
// concurrent use.
type Config struct {
	p         Params
	whitelist map[string]struct{}
	location  *time.Location
}

// NewConfig builds a Config from p. Maps and slices are copied.
func NewConfig(p Params) *Config {
	c := &Config{
		p:         p,
		whitelist: make(map[string]struct{}, len(p.Whitelist)),
		location:  utils.MarketLocation(p.Code),
	}
	c.p.Multipliers = make(map[string]float64, len(p.Multipliers))
	for k, v := range p.Multipliers {
		c.p.Multipliers[normalize(k)] = v
	}
	c.p.Whitelist = nil
	for _, s := range p.Whitelist {
		c.whitelist[normalize(s)] = struct{}{}
	}
	if c.p.DefaultMultiplier <= 0 {
		c.p.DefaultMultiplier = 1
	}
	if c.p.TradingDaysPerYear <= 0 {
		c.p.TradingDaysPerYear = 252
	}
	return c
}

func (c *Config) Code() models.MarketCode { return c.p.Code }
func (c *Config) Currency() string { return c.p.Currency }
func (c *Config) DefaultMultiplier() float64 { return c.p.DefaultMultiplier }
func (c *Config) RiskFreeRate() float64 { return c.p.RiskFreeRate }
func (c *Config) TradingDaysPerYear() int { return c.p.TradingDaysPerYear }
func (c *Config) MarginRate() float64 { return c.p.MarginRate }
func (c *Config) Liquidity() Liquidity { return c.p.Liquidity }
func (c *Config) EnforcesWhitelist() bool { return c.p.EnforceWhitelist }
func (c *Config) CashSettled() bool { return c.p.CashSettled }
func (c *Config) Location() *time.Location { return c.location }

// MultiplierFor returns the per-symbol override, else the market default.
// Commodity symbols are looked up by product code.
func (c *Config) MultiplierFor(symbol string) float64 {
	key := normalize(symbol)
	if c.p.Code == models.MarketCommodity {
		key = ProductCode(key)
	}
	if m, ok := c.p.Multipliers[key]; ok && m > 0 {
		return m
	}
	return c.p.DefaultMultiplier
}

// Allows reports whether symbol passes the whitelist. Markets without an
// enforced whitelist allow everything.
func (c *Config) Allows(symbol string) bool {
	if !c.p.EnforceWhitelist {
		return true
	}
	key := normalize(symbol)
	if c.p.Code == models.MarketCommodity {
		key = ProductCode(key)
	}
	_, ok := c.whitelist[key]
	return ok
}

// Whitelist returns the allowed symbols, sorted.
func (c *Config) Whitelist() []string {
	out := make([]string, 0, len(c.whitelist))
	for s := range c.whitelist {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// withOverride returns a copy of c with non-zero override values applied.
func (c *Config) withOverride(o Override) *Config {
	p := c.p
	p.Multipliers = make(map[string]float64, len(c.p.Multipliers)+len(o.Multipliers))
	for k, v := range c.p.Multipliers {
		p.Multipliers[k] = v
	}
	for k, v := range o.Multipliers {
		p.Multipliers[k] = v
	}
	p.Whitelist = append(c.Whitelist(), o.Whitelist...)

	if o.RiskFreeRate > 0 {
		p.RiskFreeRate = o.RiskFreeRate
	}
	if o.MarginRate > 0 {
		p.MarginRate = o.MarginRate
	}
	if o.MinVolume > 0 {
		p.Liquidity.MinVolume = o.MinVolume
	}
	if o.MinOpenInterest > 0 {
		p.Liquidity.MinOpenInterest = o.MinOpenInterest
	}
	if o.MaxSpreadPct > 0 {
		p.Liquidity.MaxSpreadPct = o.MaxSpreadPct
	}
	return NewConfig(p)
}

// normalize trims and upper-cases a symbol, folds the .SH alias onto .SS and
// zero-pads numeric HK tickers to four digits.
func normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, ".SH"):
		s = strings.TrimSuffix(s, ".SH") + ".SS"
	case strings.HasSuffix(s, ".HK"):
		base := strings.TrimSuffix(s, ".HK")
		if isDigits(base) && len(base) < 4 {
			base = strings.Repeat("0", 4-len(base)) + base
		}
		s = base + ".HK"
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
