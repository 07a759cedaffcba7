package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reDigits   = regexp.MustCompile(`\d+`)
	reCurrency = regexp.MustCompile(`[$€£¥\s,]`)
	rePriceNum = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseQuantity pulls an integer count out of a cell, ignoring any
// surrounding text. Returns 0 when no digits are present; callers
// default absent quantities to 1.
func ParseQuantity(input string) int {
	m := reDigits.FindString(strings.ReplaceAll(input, ",", ""))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// ParsePrice strips currency symbols and thousands separators and
// returns the first decimal number found. Zero means "unknown price",
// which downstream treats as a valid sentinel rather than an error.
func ParsePrice(input string) float64 {
	s := reCurrency.ReplaceAllString(input, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Negative amounts (credits, returns) are clamped to the sentinel.
	neg := strings.HasPrefix(s, "-") || (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
	m := rePriceNum.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || neg {
		return 0
	}
	return v
}

// IsNumericCell reports whether a cell holds a bare number once
// currency formatting is removed.
func IsNumericCell(input string) bool {
	s := reCurrency.ReplaceAllString(input, "")
	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// HasDecimalOrCurrency reports price-like formatting in the raw cell.
func HasDecimalOrCurrency(input string) bool {
	return strings.ContainsAny(input, "$€£¥") || strings.Contains(input, ".")
}
