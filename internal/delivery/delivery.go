// Package delivery assesses time-to-delivery risk for physically settled
// commodity option contracts.
package delivery

import (
	"time"

	"optscore/internal/market"
	"optscore/internal/models"
	"optscore/pkg/utils"
)

// Thresholds are the day counts at which delivery risk kicks in.
type Thresholds struct {
	RedDays     int // at or below: close the position
	WarningDays int // at or below: penalty ramps linearly from 0 to 1
}

// DefaultThresholds returns the standard 30/60 day thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RedDays:     30,
		WarningDays: 60,
	}
}

// Calculator computes delivery risk assessments. It holds no mutable state.
type Calculator struct {
	thresholds Thresholds
}

// NewCalculator creates a calculator. Invalid thresholds fall back to the defaults.
func NewCalculator(th Thresholds) *Calculator {
	if th.RedDays < 0 || th.WarningDays <= th.RedDays {
		th = DefaultThresholds()
	}
	return &Calculator{thresholds: th}
}

var defaultCalculator = NewCalculator(DefaultThresholds())

// Assess classifies days to delivery with the default thresholds.
func Assess(daysToDelivery int) models.DeliveryRiskAssessment {
	return defaultCalculator.Assess(daysToDelivery)
}

// Thresholds returns the calculator's thresholds.
func (c *Calculator) Thresholds() Thresholds {
	return c.thresholds
}

// Assess classifies days to delivery. Past delivery dates count as red.
func (c *Calculator) Assess(daysToDelivery int) models.DeliveryRiskAssessment {
	a := models.DeliveryRiskAssessment{
		Parsed:         true,
		DaysToDelivery: daysToDelivery,
	}
	a.Zone, a.Penalty, a.Recommendation = c.classify(daysToDelivery)
	return a
}

func (c *Calculator) classify(days int) (models.DeliveryZone, float64, models.DeliveryAction) {
	red, warn := c.thresholds.RedDays, c.thresholds.WarningDays
	switch {
	case days <= red:
		return models.ZoneRed, 1.0, models.DeliveryClose
	case days <= warn:
		return models.ZoneWarning, float64(warn-days) / float64(warn-red), models.DeliveryReduce
	default:
		return models.ZoneSafe, 0, models.DeliveryOK
	}
}

// AssessContract parses the delivery month from a contract code and assesses
// the calendar days from asOf to the first of that month, both taken in loc.
// Unparsable codes, and a zero asOf, are reported as safe with Parsed=false.
func (c *Calculator) AssessContract(code string, asOf time.Time, loc *time.Location) models.DeliveryRiskAssessment {
	unparsed := models.DeliveryRiskAssessment{
		ContractCode:   code,
		Zone:           models.ZoneSafe,
		Recommendation: models.DeliveryOK,
	}
	year, month, err := market.ParseDeliveryMonth(code)
	if err != nil {
		unparsed.Note = "no delivery month in contract code"
		return unparsed
	}
	if asOf.IsZero() {
		unparsed.Note = "no as-of time for the quote, delivery not assessed"
		return unparsed
	}
	if loc == nil {
		loc = utils.ShanghaiLocation
	}

	deliveryDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	a := c.Assess(utils.CalendarDaysBetween(asOf, deliveryDate, loc))
	a.ContractCode = code
	a.DeliveryDate = &deliveryDate
	return a
}

// Multiplier returns the factor a raw strategy score is scaled by.
func Multiplier(a models.DeliveryRiskAssessment) float64 {
	return 1 - a.Penalty
}
