// Package currency formats decimal amounts for display.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders v as a dollar amount with two decimals and thousands
// separators, e.g. "$1,234.50". Negative amounts keep the sign before the
// symbol: "-$3.00".
func Format(v decimal.Decimal) string {
	return FormatWith(v, "$")
}

// FormatWith is Format with a custom currency symbol.
func FormatWith(v decimal.Decimal, symbol string) string {
	s := v.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(symbol)

	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
		if len(intPart) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(intPart[i : i+3])
		if i+3 < len(intPart) {
			b.WriteByte(',')
		}
	}

	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}
