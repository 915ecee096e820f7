package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want Currency
	}{
		{"INR", CurrencyINR},
		{" inr ", CurrencyINR},
		{"", Default},
	}
	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseCurrency("RUB")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestRoundToMinorUnit(t *testing.T) {
	assert.Equal(t, int32(2), CurrencyINR.Exponent())
	assert.Equal(t, "10.13", CurrencyINR.Round(decimal.RequireFromString("10.125")).String())
	assert.Equal(t, "-10.13", CurrencyINR.Round(decimal.RequireFromString("-10.125")).String())
	assert.Equal(t, "21000", CurrencyINR.Round(decimal.RequireFromString("21000")).String())
}
