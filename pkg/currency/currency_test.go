package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"5.5", "$5.50"},
		{"999.999", "$1,000.00"},
		{"1234.5", "$1,234.50"},
		{"1000000", "$1,000,000.00"},
		{"123456789.01", "$123,456,789.01"},
		{"-3", "-$3.00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Format(decimal.RequireFromString(tc.in)), "input %s", tc.in)
	}
}

func TestFormatWith(t *testing.T) {
	assert.Equal(t, "€1,234.00", FormatWith(decimal.RequireFromString("1234"), "€"))
}
