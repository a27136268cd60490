// Package money parses and rounds the display amounts found on utility
// statements.
//
// Statement amounts arrive as text ("$1,234.56", "(12.50)", "45.00 CR").
// Parse never fails: anything it cannot read becomes nil so callers can
// treat it as zero and keep going.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse converts a display amount to a float. Returns nil when the value is
// empty or unparsable.
func Parse(raw string) *float64 {
	d, ok := ParseDecimal(raw)
	if !ok {
		return nil
	}
	f := d.Round(2).InexactFloat64()
	return &f
}

// ParseDecimal is Parse without the float conversion.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CR") {
		negative = true
		s = s[:len(s)-2]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// FromPtr returns the decimal value of a nullable amount, zero when nil.
func FromPtr(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

// Round rounds to cents, half away from zero.
func Round(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Normalize renders an amount in the canonical two-decimal form used for
// hashing ("1234.50"). Unparsable input is returned trimmed and lowercased.
func Normalize(raw string) string {
	d, ok := ParseDecimal(raw)
	if !ok {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return d.StringFixed(2)
}

// Format renders x as "$1,234.56" or "-$12.00".
func Format(x float64) string {
	d := decimal.NewFromFloat(x).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}
