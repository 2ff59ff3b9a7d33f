package cli

import (
	"fmt"
	"math"
	"time"

	"optscore/pkg/utils"
)

// FormatMoney formats an amount with its currency symbol and thousands
// separators.
func FormatMoney(amount float64, currency string) string {
	return utils.FormatCurrency(amount, currency)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	return utils.FormatPercent(value)
}

// FormatPrice formats a price with two decimals, four below 1.
func FormatPrice(price float64) string {
	if math.Abs(price) < 1 && price != 0 {
		return fmt.Sprintf("%.4f", price)
	}
	return fmt.Sprintf("%.2f", price)
}

// FormatScore formats a 0-100 score.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

// FormatIV formats a decimal volatility as a percentage.
func FormatIV(iv float64) string {
	return utils.FormatRatio(iv)
}

// FormatBidAsk formats a quote.
func FormatBidAsk(bid, ask float64) string {
	return fmt.Sprintf("%s/%s", FormatPrice(bid), FormatPrice(ask))
}

// FormatRatio formats a risk/reward ratio.
func FormatRatio(rr float64) string {
	return fmt.Sprintf("1:%.2f", rr)
}

// FormatVolume formats volume in compact form.
func FormatVolume(volume int64) string {
	if volume < 10_000 {
		return utils.FormatQuantity(volume)
	}
	return utils.FormatCompact(float64(volume))
}

// FormatDate formats a date in the given location; nil means UTC.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}

// TruncateString truncates a string to maxLen runes, marking the cut.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
