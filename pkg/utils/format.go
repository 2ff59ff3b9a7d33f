// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"HKD": "HK$",
	"CNY": "¥",
}

// FormatCurrency formats an amount with the currency symbol and western
// thousands grouping. Unknown currencies are suffixed with their code.
func FormatCurrency(amount float64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	formatted := groupThousands(parts[0]) + "." + parts[1]

	var result string
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		result = sym + formatted
	} else if currency != "" {
		result = formatted + " " + strings.ToUpper(currency)
	} else {
		result = formatted
	}
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatRatio formats a decimal fraction (0.253) as a percentage (25.3%).
func FormatRatio(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}

// FormatQuantity formats a quantity with commas.
func FormatQuantity(qty int64) string {
	if qty < 0 {
		return "-" + groupThousands(fmt.Sprintf("%d", -qty))
	}
	return groupThousands(fmt.Sprintf("%d", qty))
}

// FormatCompact formats a number in compact form (K/M/B).
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e4:
		return fmt.Sprintf("%.1fK", amount/1e3)
	}
	return fmt.Sprintf("%.2f", amount)
}
