package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountPattern    = regexp.MustCompile(`\d{1,3}(?:[\s\x{00A0}.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d+)?`)
	thousandsDot     = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	thousandsComma   = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	thousandsDecimal = regexp.MustCompile(`^(\d{1,3}(?:[.,]\d{3})+)[.,](\d{1,2})$`)
)

// ParseAmount reads the first money-like number in input. "14 100", "14 100,50",
// "1.000" and "1,5" are all understood.
func ParseAmount(input string) (float64, bool) {
	line := strings.ReplaceAll(input, "\u00A0", " ")
	token := amountPattern.FindString(line)
	if token == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(token), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if m := thousandsDecimal.FindStringSubmatch(compact); m != nil {
		whole := strings.NewReplacer(".", "", ",", "").Replace(m[1])
		return whole + "." + m[2]
	}
	if thousandsDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if thousandsComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}

// FormatAmount renders a whole-ruble amount without decimals and anything else with two.
func FormatAmount(amount float64) string {
	if amount == float64(int64(amount)) {
		return strconv.FormatInt(int64(amount), 10)
	}
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
