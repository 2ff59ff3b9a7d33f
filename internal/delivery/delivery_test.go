package delivery

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optscore/internal/models"
	"optscore/pkg/utils"
)

func TestAssessZones(t *testing.T) {
	tests := []struct {
		days    int
		zone    models.DeliveryZone
		penalty float64
		action  models.DeliveryAction
	}{
		{-5, models.ZoneRed, 1.0, models.DeliveryClose},
		{0, models.ZoneRed, 1.0, models.DeliveryClose},
		{20, models.ZoneRed, 1.0, models.DeliveryClose},
		{30, models.ZoneRed, 1.0, models.DeliveryClose},
		{31, models.ZoneWarning, 29.0 / 30.0, models.DeliveryReduce},
		{45, models.ZoneWarning, 0.5, models.DeliveryReduce},
		{60, models.ZoneWarning, 0, models.DeliveryReduce},
		{61, models.ZoneSafe, 0, models.DeliveryOK},
		{90, models.ZoneSafe, 0, models.DeliveryOK},
	}
	for _, tt := range tests {
		a := Assess(tt.days)
		assert.Equal(t, tt.zone, a.Zone, "days=%d", tt.days)
		assert.InDelta(t, tt.penalty, a.Penalty, 1e-9, "days=%d", tt.days)
		assert.Equal(t, tt.action, a.Recommendation, "days=%d", tt.days)
		assert.True(t, a.Parsed)
	}
}

func TestAssess45DaysIsPartial(t *testing.T) {
	a := Assess(45)
	assert.Greater(t, a.Penalty, 0.0)
	assert.Less(t, a.Penalty, 1.0)
	assert.Equal(t, models.DeliveryReduce, a.Recommendation)
}

// Property: penalty is within [0, 1] and non-increasing in days to delivery.
func TestProperty_PenaltyNonIncreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("penalty(d) >= penalty(d+k)", prop.ForAll(
		func(d, k int) bool {
			a, b := Assess(d), Assess(d+k)
			return a.Penalty >= b.Penalty && a.Penalty >= 0 && a.Penalty <= 1
		},
		gen.IntRange(25, 65),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestAssessContract(t *testing.T) {
	loc := utils.ShanghaiLocation
	asOf := time.Date(2025, 3, 15, 10, 0, 0, 0, loc)

	a := NewCalculator(DefaultThresholds()).AssessContract("AU2506", asOf, loc)
	require.True(t, a.Parsed)
	require.NotNil(t, a.DeliveryDate)
	assert.Equal(t, time.June, a.DeliveryDate.Month())
	assert.Equal(t, 78, a.DaysToDelivery)
	assert.Equal(t, models.ZoneSafe, a.Zone)

	a = defaultCalculator.AssessContract("cu2505C80000", asOf, loc)
	assert.Equal(t, 47, a.DaysToDelivery)
	assert.Equal(t, models.ZoneWarning, a.Zone)
	assert.InDelta(t, 13.0/30.0, a.Penalty, 1e-9)

	a = defaultCalculator.AssessContract("M2504", asOf, loc)
	assert.Equal(t, 17, a.DaysToDelivery)
	assert.Equal(t, models.DeliveryClose, a.Recommendation)
	assert.Equal(t, 0.0, Multiplier(a))
}

func TestAssessContractUnparsable(t *testing.T) {
	for _, code := range []string{"", "AAPL", "AU2513", "GOLD"} {
		a := defaultCalculator.AssessContract(code, time.Now(), nil)
		assert.False(t, a.Parsed, code)
		assert.Equal(t, models.ZoneSafe, a.Zone)
		assert.Equal(t, 0.0, a.Penalty)
		assert.Equal(t, models.DeliveryOK, a.Recommendation)
		assert.Nil(t, a.DeliveryDate)
	}
}

func TestAssessContractWithoutAsOf(t *testing.T) {
	a := defaultCalculator.AssessContract("AU2506", time.Time{}, nil)
	assert.False(t, a.Parsed)
	assert.Equal(t, models.ZoneSafe, a.Zone)
	assert.Equal(t, 0.0, a.Penalty)
	assert.Equal(t, 1.0, Multiplier(a))
	assert.Nil(t, a.DeliveryDate)
	assert.Contains(t, a.Note, "no as-of time")
}

func TestNewCalculatorRejectsInvertedThresholds(t *testing.T) {
	c := NewCalculator(Thresholds{RedDays: 60, WarningDays: 30})
	assert.Equal(t, DefaultThresholds(), c.Thresholds())

	c = NewCalculator(Thresholds{RedDays: 10, WarningDays: 20})
	assert.Equal(t, models.ZoneWarning, c.Assess(15).Zone)
	assert.InDelta(t, 0.5, c.Assess(15).Penalty, 1e-9)
}
