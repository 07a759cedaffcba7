package util

import (
	"regexp"
	"strings"
)

var (
	reQuotes     = regexp.MustCompile(`["'` + "`" + `«»]`)
	reNonAllowed = regexp.MustCompile(`[^A-Z0-9\-/\s.]`)
	reSpaces     = regexp.MustCompile(`\s+`)
	reTrailDigit = regexp.MustCompile(`\d+$`)
)

func NormalizeName(input string) string {
	s := strings.ToUpper(input)
	s = reQuotes.ReplaceAllString(s, " ")
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeSKU flattens case, whitespace and dashes so that "tn-730",
// "TN 730" and "TN730" compare equal.
func NormalizeSKU(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '/' || r == '.' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// VendorPrefixStrips returns every candidate reading of a leading "M-"
// vendor prefix (a pattern some wholesalers prepend to OEM part
// numbers): "M-" alone, then "M-" plus one, two and three letters. A
// part number that itself starts with letters is ambiguous, so all
// strip lengths are offered and the caller compares each against the
// catalog. Empty for unprefixed input.
func VendorPrefixStrips(sku string) []string {
	s := strings.ToUpper(strings.TrimSpace(sku))
	if !strings.HasPrefix(s, "M-") {
		return nil
	}
	rest := s[2:]
	out := []string{rest}
	for i := 1; i <= 3 && i <= len(rest); i++ {
		if c := rest[i-1]; c < 'A' || c > 'Z' {
			break
		}
		out = append(out, rest[i:])
	}
	return out
}

func Tokenize(input string) []string {
	norm := NormalizeName(input)
	parts := strings.Split(norm, " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// LooksLikeSKU reports whether a string is plausibly a part number:
// medium length, letters and digits mixed, few spaces.
func LooksLikeSKU(input string) bool {
	s := strings.TrimSpace(input)
	if len(s) < 3 || len(s) > 30 {
		return false
	}
	if strings.Count(s, " ") > 1 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			hasLetter = true
		}
		if r >= '0' && r <= '9' {
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// FamilySeries derives the grouping key for interchangeable variants:
// brand plus the model prefix with trailing digits generalized, so
// "TN730" and "TN760" land in the same family.
func FamilySeries(brand, model string) string {
	m := strings.ToUpper(strings.TrimSpace(model))
	m = reTrailDigit.ReplaceAllString(m, "")
	b := strings.ToUpper(strings.TrimSpace(brand))
	return strings.TrimSpace(b + " " + m)
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func IntPtr(v int) *int { return &v }
