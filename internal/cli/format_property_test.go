package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var groupedPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})*$`)

// parseMoney reverses FormatMoney for a known symbol.
func parseMoney(s, symbol string) float64 {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, symbol)
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	if negative {
		return -v
	}
	return v
}

// Property: money formatting groups by thousands, keeps two decimals and
// preserves the rounded value.
func TestProperty_MoneyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("grouped with two decimals", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatMoney(amount, "USD")
			num := strings.TrimPrefix(strings.TrimPrefix(formatted, "-"), "$")
			intPart, dec, ok := strings.Cut(num, ".")
			if !ok || len(dec) != 2 {
				t.Logf("bad decimals for %f: %s", amount, formatted)
				return false
			}
			if !groupedPattern.MatchString(intPart) {
				t.Logf("bad grouping for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("value preserved", prop.ForAll(
		func(amount float64) bool {
			parsed := parseMoney(FormatMoney(amount, "HKD"), "HK$")
			return math.Abs(parsed-math.Round(amount*100)/100) <= 0.01
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("percent carries sign and suffix", prop.ForAll(
		func(value float64) bool {
			formatted := FormatPercent(value)
			if !strings.HasSuffix(formatted, "%") {
				return false
			}
			return value <= 0 || strings.HasPrefix(formatted, "+")
		},
		gen.Float64Range(-100, 100),
	))

	properties.Property("truncate respects max length", prop.ForAll(
		func(s string, n int) bool {
			out := []rune(TruncateString(s, n))
			return len(out) <= n || len(out) == len([]rune(s))
		},
		gen.AnyString(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestFormatMoneyExamples(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{1234567.891, "USD", "$1,234,567.89"},
		{-999.5, "HKD", "-HK$999.50"},
		{100, "CNY", "¥100.00"},
		{0, "USD", "$0.00"},
		{1500, "EUR", "1,500.00 EUR"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.amount, tt.currency); got != tt.want {
			t.Errorf("FormatMoney(%v, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}
