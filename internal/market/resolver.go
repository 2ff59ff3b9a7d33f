package market

import (
	"strings"

	"optscore/internal/models"
)

// Resolver maps symbols to market configs. The registry is built once and
// only read afterwards, so a Resolver is safe for concurrent use.
type Resolver struct {
	configs  map[models.MarketCode]*Config
	products map[string]struct{}
}

var defaultResolver = NewResolver(nil)

// Default returns the resolver with built-in parameters only.
func Default() *Resolver {
	return defaultResolver
}

// NewResolver builds a resolver from the built-in registry with optional
// per-market overrides applied.
func NewResolver(overrides map[models.MarketCode]Override) *Resolver {
	r := &Resolver{
		configs:  builtinConfigs(),
		products: make(map[string]struct{}, len(commodityProducts)),
	}
	for code, o := range overrides {
		if base, ok := r.configs[code]; ok {
			r.configs[code] = base.withOverride(o)
		}
	}
	for p := range commodityProducts {
		r.products[p] = struct{}{}
	}
	for _, p := range r.configs[models.MarketCommodity].Whitelist() {
		r.products[p] = struct{}{}
	}
	return r
}

// Detect returns the market a symbol belongs to. Unknown shapes fall back
// to US.
//
// Order: explicit .US, .HK, .SS/.SH/.SZ suffixes, then dated commodity
// contract codes, then registered product codes carrying a futures exchange
// suffix (AU.SHF, MA.ZCE). Product codes are one or two letters and collide
// with US tickers (C, MA, M), so a bare product code resolves to US.
func (r *Resolver) Detect(symbol string) models.MarketCode {
	s := normalize(symbol)
	switch {
	case strings.HasSuffix(s, ".US"):
		return models.MarketUS
	case strings.HasSuffix(s, ".HK"):
		return models.MarketHK
	case strings.HasSuffix(s, ".SS"), strings.HasSuffix(s, ".SZ"):
		return models.MarketCN
	case IsContractCode(s):
		return models.MarketCommodity
	}
	if base, ok := trimCommoditySuffix(s); ok {
		if _, known := r.products[base]; known {
			return models.MarketCommodity
		}
	}
	return models.MarketUS
}

// Resolve returns the config for the symbol's market.
func (r *Resolver) Resolve(symbol string) *Config {
	return r.configs[r.Detect(symbol)]
}

// Config returns the config for a market code, or nil when unknown.
func (r *Resolver) Config(code models.MarketCode) *Config {
	return r.configs[code]
}

// Multiplier returns the contract multiplier for symbol.
func (r *Resolver) Multiplier(symbol string) float64 {
	return r.Resolve(symbol).MultiplierFor(symbol)
}

// IsAllowed reports whether symbol passes its market's whitelist.
func (r *Resolver) IsAllowed(symbol string) bool {
	return r.Resolve(symbol).Allows(symbol)
}

// AllowedSymbols returns the sorted whitelist of cfg, or nil when the market
// does not enforce one.
func AllowedSymbols(cfg *Config) []string {
	if cfg == nil || !cfg.EnforcesWhitelist() {
		return nil
	}
	return cfg.Whitelist()
}

// Normalize returns the canonical form of a symbol.
func Normalize(symbol string) string {
	return normalize(symbol)
}
