package models

import (
	"math"
	"time"

	apperrors "optscore/internal/errors"
)

// ContractType is the option right.
type ContractType string

const (
	Call ContractType = "call"
	Put  ContractType = "put"
)

// OptionGreeks represents option Greeks.
type OptionGreeks struct {
	Delta float64 `json:"delta" yaml:"delta" msgpack:"delta"`
	Gamma float64 `json:"gamma" yaml:"gamma" msgpack:"gamma"`
	Theta float64 `json:"theta" yaml:"theta" msgpack:"theta"`
	Vega  float64 `json:"vega" yaml:"vega" msgpack:"vega"`
}

// OptionContract represents a single listed option.
type OptionContract struct {
	Strike            float64       `json:"strike" yaml:"strike" msgpack:"strike"`
	Bid               float64       `json:"bid" yaml:"bid" msgpack:"bid"`
	Ask               float64       `json:"ask" yaml:"ask" msgpack:"ask"`
	LastPrice         float64       `json:"last_price" yaml:"last_price" msgpack:"last_price"`
	Volume            int64         `json:"volume" yaml:"volume" msgpack:"volume"`
	OpenInterest      int64         `json:"open_interest" yaml:"open_interest" msgpack:"open_interest"`
	ImpliedVolatility float64       `json:"implied_volatility" yaml:"implied_volatility" msgpack:"implied_volatility"`
	Greeks            *OptionGreeks `json:"greeks,omitempty" yaml:"greeks,omitempty" msgpack:"greeks,omitempty"`
	DaysToExpiry      int           `json:"days_to_expiry" yaml:"days_to_expiry" msgpack:"days_to_expiry"`
	Expiry            time.Time     `json:"expiry" yaml:"expiry" msgpack:"expiry"`
	Type              ContractType  `json:"type" yaml:"type" msgpack:"type"`
	ContractCode      string        `json:"contract_code,omitempty" yaml:"contract_code,omitempty" msgpack:"contract_code,omitempty"`
}

// Mid returns the mid price, falling back to whichever quote is present.
func (c OptionContract) Mid() float64 {
	switch {
	case c.Bid > 0 && c.Ask > 0:
		return (c.Bid + c.Ask) / 2
	case c.Ask > 0:
		return c.Ask
	case c.Bid > 0:
		return c.Bid
	default:
		return c.LastPrice
	}
}

// IV returns implied volatility as a decimal. Feeds quoting percentages (25 for 25%)
// are normalized.
func (c OptionContract) IV() float64 {
	if c.ImpliedVolatility > 5 {
		return c.ImpliedVolatility / 100
	}
	return c.ImpliedVolatility
}

// Intrinsic returns the intrinsic value at the given underlying price.
func (c OptionContract) Intrinsic(spot float64) float64 {
	if c.Type == Put {
		return max(c.Strike-spot, 0)
	}
	return max(spot-c.Strike, 0)
}

// TimeValue returns mid minus intrinsic value.
func (c OptionContract) TimeValue(spot float64) float64 {
	return c.Mid() - c.Intrinsic(spot)
}

// MarketSentiment carries optional market-wide sentiment readings.
type MarketSentiment struct {
	VIX          *float64 `json:"vix,omitempty" yaml:"vix,omitempty" msgpack:"vix,omitempty"`
	PutCallRatio *float64 `json:"put_call_ratio,omitempty" yaml:"put_call_ratio,omitempty" msgpack:"put_call_ratio,omitempty"`
}

// UnderlyingSnapshot describes the underlying instrument at analysis time.
// Pointer fields are optional; scorers substitute a neutral subscore when nil.
type UnderlyingSnapshot struct {
	Symbol        string           `json:"symbol" yaml:"symbol" msgpack:"symbol"`
	AsOf          time.Time        `json:"as_of" yaml:"as_of" msgpack:"as_of"`
	CurrentPrice  float64          `json:"current_price" yaml:"current_price" msgpack:"current_price"`
	ChangePercent float64          `json:"change_percent" yaml:"change_percent" msgpack:"change_percent"`
	Volatility30d float64          `json:"volatility_30d" yaml:"volatility_30d" msgpack:"volatility_30d"`
	Week52High    float64          `json:"week52_high" yaml:"week52_high" msgpack:"week52_high"`
	Week52Low     float64          `json:"week52_low" yaml:"week52_low" msgpack:"week52_low"`
	Support       *float64         `json:"support,omitempty" yaml:"support,omitempty" msgpack:"support,omitempty"`
	Resistance    *float64         `json:"resistance,omitempty" yaml:"resistance,omitempty" msgpack:"resistance,omitempty"`
	MA50          *float64         `json:"ma50,omitempty" yaml:"ma50,omitempty" msgpack:"ma50,omitempty"`
	MA200         *float64         `json:"ma200,omitempty" yaml:"ma200,omitempty" msgpack:"ma200,omitempty"`
	Sentiment     *MarketSentiment `json:"sentiment,omitempty" yaml:"sentiment,omitempty" msgpack:"sentiment,omitempty"`
}

// HistVol returns the caller-supplied 30-day volatility as a decimal.
func (u UnderlyingSnapshot) HistVol() float64 {
	if u.Volatility30d > 5 {
		return u.Volatility30d / 100
	}
	return u.Volatility30d
}

// OptionChain holds both sides of a chain for one underlying.
type OptionChain struct {
	Symbol string           `json:"symbol" yaml:"symbol" msgpack:"symbol"`
	AsOf   time.Time        `json:"as_of" yaml:"as_of" msgpack:"as_of"`
	Calls  []OptionContract `json:"calls" yaml:"calls" msgpack:"calls"`
	Puts   []OptionContract `json:"puts" yaml:"puts" msgpack:"puts"`
}

// Side returns the contracts of the given type.
func (c *OptionChain) Side(t ContractType) []OptionContract {
	if c == nil {
		return nil
	}
	if t == Put {
		return c.Puts
	}
	return c.Calls
}

// Float returns a pointer to v, for populating optional snapshot fields.
func Float(v float64) *float64 {
	return &v
}

// Validate reports contracts that cannot be evaluated.
func (c OptionContract) Validate() error {
	switch {
	case c.Strike <= 0 || math.IsNaN(c.Strike) || math.IsInf(c.Strike, 0):
		return apperrors.NewContractError(c.Strike, "strike", "must be positive")
	case c.Bid < 0 || math.IsNaN(c.Bid):
		return apperrors.NewContractError(c.Strike, "bid", "must be non-negative")
	case c.Ask < 0 || math.IsNaN(c.Ask):
		return apperrors.NewContractError(c.Strike, "ask", "must be non-negative")
	case c.Ask > 0 && c.Ask < c.Bid:
		return apperrors.NewContractError(c.Strike, "ask", "below bid")
	case c.DaysToExpiry <= 0:
		return apperrors.NewContractError(c.Strike, "days_to_expiry", "must be positive")
	case c.Type != Call && c.Type != Put:
		return apperrors.NewContractError(c.Strike, "type", "must be call or put")
	}
	return nil
}

// Bar is one daily OHLCV bar of the underlying.
type Bar struct {
	Date   time.Time `json:"date" yaml:"date" msgpack:"date"`
	Open   float64   `json:"open" yaml:"open" msgpack:"open"`
	High   float64   `json:"high" yaml:"high" msgpack:"high"`
	Low    float64   `json:"low" yaml:"low" msgpack:"low"`
	Close  float64   `json:"close" yaml:"close" msgpack:"close"`
	Volume int64     `json:"volume" yaml:"volume" msgpack:"volume"`
}

// Closes extracts closing prices, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
