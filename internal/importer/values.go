package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var errEmptyValue = errors.New("empty value")

// groupedDigits is an integer part with thousands separators, "1,234,567".
var groupedDigits = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`)

// candidateLayouts are tried, in order, for files without a known format.
// Day-first slash dates are left out: they cannot be told apart from US dates.
var candidateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"02.01.2006",
	"02-01-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
}

func parseDate(s string, layouts []string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, errEmptyValue
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matches %q", v)
}

// isDate reports whether s parses with any candidate layout.
func isDate(s string) (time.Time, bool) {
	t, err := parseDate(s, candidateLayouts)
	return t, err == nil
}

// layoutFor returns the candidate layout that parses the most values. Ties go
// to the earlier candidate.
func layoutFor(values []string) (string, bool) {
	best, bestCount := "", 0
	for _, layout := range candidateLayouts {
		n := 0
		for _, v := range values {
			if _, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = layout, n
		}
	}
	return best, bestCount > 0
}

// parseAmount parses a statement amount into an exact decimal. It accepts
// currency symbols, thousands separators, "(12.34)" and "12.34-" negatives.
func parseAmount(s string, decimalComma bool) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return decimal.Zero, errEmptyValue
	}

	neg := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = v[1 : len(v)-1]
	}
	v = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ' ', '\u00a0', '\'':
			return -1
		}
		return r
	}, v)
	if strings.HasSuffix(v, "-") && len(v) > 1 {
		neg = !neg
		v = strings.TrimSuffix(v, "-")
	}

	point, group := ".", ","
	if decimalComma {
		point, group = ",", "."
	}
	whole, frac, hasFrac := strings.Cut(v, point)
	if strings.Contains(whole, group) {
		if !groupedDigits.MatchString(strings.ReplaceAll(whole, group, ",")) {
			return decimal.Zero, fmt.Errorf("invalid amount %q: misplaced %q", s, group)
		}
		whole = strings.ReplaceAll(whole, group, "")
	}
	v = whole
	if hasFrac {
		v += "." + frac
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// isAmount reports whether s is a non-empty number.
func isAmount(s string, decimalComma bool) (decimal.Decimal, bool) {
	d, err := parseAmount(s, decimalComma)
	return d, err == nil
}

// decimalCommaColumn reports whether the values of an amount column use a
// decimal comma: every value parses that way and at least one does not
// parse with a decimal point.
func decimalCommaColumn(values []string) bool {
	needed := false
	for _, v := range values {
		if isBlank(v) {
			continue
		}
		if _, ok := isAmount(v, true); !ok {
			return false
		}
		if _, ok := isAmount(v, false); !ok {
			needed = true
		}
	}
	return needed
}
