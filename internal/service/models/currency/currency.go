package currency

import (
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code of a price.
type Currency string

const (
	CurrencyINR Currency = "INR"

	// Default is the currency of orders that do not name one.
	Default = CurrencyINR
)

// exponents holds the number of minor-unit digits per currency.
var exponents = map[Currency]int32{
	CurrencyINR: 2,
}

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// Exponent returns the number of minor-unit digits of c.
func (c Currency) Exponent() int32 {
	return exponents[c]
}

// Round rounds an amount half-away-from-zero to the minor unit of c.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.Exponent())
}

// ParseCurrency parses a currency code case-insensitively. An empty code is
// the Default currency.
func ParseCurrency(s string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if code == "" {
		return Default, nil
	}
	if _, ok := exponents[code]; !ok {
		return "", ErrInvalidCurrency
	}

	return code, nil
}
