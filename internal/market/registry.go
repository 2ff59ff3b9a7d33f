package market

import (
	"strings"

	"optscore/internal/config"
	"optscore/internal/models"
)

// hkMultipliers lists board-lot contract sizes that differ from the HK default.
var hkMultipliers = map[string]float64{
	"0700.HK": 100,
	"9988.HK": 500,
	"0005.HK": 400,
	"1299.HK": 1000,
	"0941.HK": 500,
	"3690.HK": 100,
	"1810.HK": 1000,
	"0388.HK": 100,
	"2318.HK": 500,
}

// cnETFs are the exchange-listed ETF option underlyings.
var cnETFs = []string{
	"510050.SS", // SSE 50
	"510300.SS", // CSI 300 (SSE)
	"510500.SS", // CSI 500
	"588000.SS", // STAR 50
	"159919.SZ", // CSI 300 (SZSE)
	"159915.SZ", // ChiNext
	"159922.SZ", // CSI 500 (SZSE)
}

// commodityProducts maps supported commodity option products to their
// contract size in units of the underlying.
var commodityProducts = map[string]float64{
	"AU": 1000, // gold, grams
	"AG": 15,   // silver, kg
	"CU": 5,    // copper, tonnes
	"AL": 5,
	"ZN": 5,
	"RU": 10, // rubber
	"M":  10, // soybean meal
	"SR": 10, // sugar
	"CF": 5,  // cotton
	"I":  100,
	"C":  10, // corn
	"P":  10, // palm oil
	"Y":  10, // soybean oil
	"TA": 5,
	"MA": 10, // methanol
}

func builtinConfigs() map[models.MarketCode]*Config {
	products := make([]string, 0, len(commodityProducts))
	for p := range commodityProducts {
		products = append(products, p)
	}

	return map[models.MarketCode]*Config{
		models.MarketUS: NewConfig(Params{
			Code:               models.MarketUS,
			Currency:           "USD",
			DefaultMultiplier:  100,
			RiskFreeRate:       0.045,
			TradingDaysPerYear: 252,
			MarginRate:         0.20,
			Liquidity:          Liquidity{MinVolume: 10, MinOpenInterest: 100, MaxSpreadPct: 0.10},
			CashSettled:        true,
		}),
		models.MarketHK: NewConfig(Params{
			Code:               models.MarketHK,
			Currency:           "HKD",
			DefaultMultiplier:  100,
			Multipliers:        hkMultipliers,
			RiskFreeRate:       0.04,
			TradingDaysPerYear: 247,
			MarginRate:         0.20,
			Liquidity:          Liquidity{MinVolume: 5, MinOpenInterest: 50, MaxSpreadPct: 0.15},
			CashSettled:        true,
		}),
		models.MarketCN: NewConfig(Params{
			Code:               models.MarketCN,
			Currency:           "CNY",
			DefaultMultiplier:  10000,
			RiskFreeRate:       0.02,
			TradingDaysPerYear: 244,
			MarginRate:         0.12,
			Liquidity:          Liquidity{MinVolume: 10, MinOpenInterest: 100, MaxSpreadPct: 0.10},
			EnforceWhitelist:   true,
			Whitelist:          cnETFs,
			CashSettled:        true,
		}),
		models.MarketCommodity: NewConfig(Params{
			Code:               models.MarketCommodity,
			Currency:           "CNY",
			DefaultMultiplier:  10,
			Multipliers:        commodityProducts,
			RiskFreeRate:       0.02,
			TradingDaysPerYear: 244,
			MarginRate:         0.10,
			Liquidity:          Liquidity{MinVolume: 5, MinOpenInterest: 50, MaxSpreadPct: 0.15},
			EnforceWhitelist:   true,
			Whitelist:          products,
			CashSettled:        false,
		}),
	}
}

// Override adjusts a built-in market. Zero values leave the built-in
// parameter unchanged; whitelist and multiplier entries are added.
type Override struct {
	RiskFreeRate    float64
	MarginRate      float64
	MinVolume       int64
	MinOpenInterest int64
	MaxSpreadPct    float64
	Whitelist       []string
	Multipliers     map[string]float64
}

// OverridesFromConfig converts the [markets.<CODE>] config sections.
// Unknown market codes are ignored.
func OverridesFromConfig(markets map[string]config.MarketOverrideConfig) map[models.MarketCode]Override {
	out := make(map[models.MarketCode]Override, len(markets))
	for code, m := range markets {
		mc := models.MarketCode(strings.ToUpper(code))
		switch mc {
		case models.MarketUS, models.MarketHK, models.MarketCN, models.MarketCommodity:
		default:
			continue
		}
		out[mc] = Override{
			RiskFreeRate:    m.RiskFreeRate,
			MarginRate:      m.MarginRate,
			MinVolume:       m.MinVolume,
			MinOpenInterest: m.MinOpenInterest,
			MaxSpreadPct:    m.MaxSpreadPct,
			Whitelist:       m.Whitelist,
			Multipliers:     m.Multipliers,
		}
	}
	return out
}
