package market

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// Property: FormatContractCode and ParseDeliveryMonth are inverses for every
// year in [2000, 2099] and month in [1, 12].
func TestProperty_ContractCodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	products := []interface{}{"AU", "AG", "CU", "M", "SR", "I", "C"}

	properties.Property("parse(format(p, y, m)) == (y, m)", prop.ForAll(
		func(product string, year, month int) bool {
			code, err := FormatContractCode(product, year, month)
			if err != nil {
				return false
			}
			y, m, err := ParseDeliveryMonth(code)
			return err == nil && y == year && m == month && ProductCode(code) == product
		},
		gen.OneConstOf(products...),
		gen.IntRange(2000, 2099),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

func TestParseDeliveryMonth(t *testing.T) {
	tests := []struct {
		code      string
		year      int
		month     int
		expectErr bool
	}{
		{"AU2506", 2025, 6, false},
		{"cu2601", 2026, 1, false},
		{"M2509-C-3000", 2025, 9, false},
		{"SR2511P6000", 2025, 11, false},
		{"au2506.shf", 2025, 6, false},
		{"AU2500", 0, 0, true},
		{"AU2513", 0, 0, true},
		{"AU25", 0, 0, true},
		{"AAPL", 0, 0, true},
		{"ABC2506", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			y, m, err := ParseDeliveryMonth(tt.code)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.year, y)
			assert.Equal(t, tt.month, m)
		})
	}
}

func TestProductCode(t *testing.T) {
	assert.Equal(t, "AU", ProductCode("AU2506"))
	assert.Equal(t, "AU", ProductCode("au.shf"))
	assert.Equal(t, "MA", ProductCode("MA2509.ZCE"))
	assert.Equal(t, "AAPL", ProductCode(" aapl "))
	assert.Equal(t, 10.0, Default().Multiplier("MA.ZCE"))
	assert.True(t, Default().IsAllowed("CU.SHF"))
}

func TestFormatContractCodeRejectsOutOfRange(t *testing.T) {
	_, err := FormatContractCode("AU", 1999, 6)
	assert.Error(t, err)
	_, err = FormatContractCode("AU", 2100, 6)
	assert.Error(t, err)
	_, err = FormatContractCode("AU", 2025, 0)
	assert.Error(t, err)
	_, err = FormatContractCode("GOLD", 2025, 6)
	assert.Error(t, err)
	_, err = FormatContractCode("A1", 2025, 6)
	assert.Error(t, err)

	code, err := FormatContractCode("au", 2007, 3)
	assert.NoError(t, err)
	assert.Equal(t, "AU0703", code)
}
