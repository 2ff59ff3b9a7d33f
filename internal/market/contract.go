package market

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// contractCodeRe matches product + YY + MM, optionally followed by an option
// suffix such as C480, -P-3000 or P4.5.
var contractCodeRe = regexp.MustCompile(`^([A-Z]{1,2})(\d{2})(\d{2})(?:-?[CP]-?\d+(?:\.\d+)?)?$`)

// commoditySuffixes mark a symbol as a futures product: the exchange codes
// used by mainland data vendors, plus a generic .CF.
var commoditySuffixes = []string{".SHF", ".DCE", ".ZCE", ".INE", ".GFE", ".CF"}

// trimCommoditySuffix strips a futures exchange suffix from an upper-cased
// symbol.
func trimCommoditySuffix(s string) (string, bool) {
	for _, suf := range commoditySuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			return strings.TrimSuffix(s, suf), true
		}
	}
	return s, false
}

// ParseDeliveryMonth extracts the delivery year and month from a commodity
// contract code such as AU2506, M2509-C-3000 or AU2506.SHF.
func ParseDeliveryMonth(code string) (year, month int, err error) {
	s, _ := trimCommoditySuffix(strings.ToUpper(strings.TrimSpace(code)))
	m := contractCodeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid contract code: %q", code)
	}
	yy, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	if mm < 1 || mm > 12 {
		return 0, 0, fmt.Errorf("invalid delivery month in %q: %02d", code, mm)
	}
	return 2000 + yy, mm, nil
}

// FormatContractCode is the inverse of ParseDeliveryMonth for
// year in [2000, 2099].
func FormatContractCode(product string, year, month int) (string, error) {
	product = strings.ToUpper(strings.TrimSpace(product))
	if len(product) < 1 || len(product) > 2 || !isLetters(product) {
		return "", fmt.Errorf("invalid product code: %q", product)
	}
	if year < 2000 || year > 2099 {
		return "", fmt.Errorf("year out of range: %d", year)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month out of range: %d", month)
	}
	return fmt.Sprintf("%s%02d%02d", product, year%100, month), nil
}

// IsContractCode reports whether s looks like a dated commodity contract.
func IsContractCode(s string) bool {
	_, _, err := ParseDeliveryMonth(s)
	return err == nil
}

// ProductCode strips the delivery month (and any option or exchange suffix)
// from a commodity contract code. Other symbols are returned normalized.
func ProductCode(symbol string) string {
	s := normalize(symbol)
	if base, ok := trimCommoditySuffix(s); ok {
		s = base
	}
	if m := contractCodeRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}
