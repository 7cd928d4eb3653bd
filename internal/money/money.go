// Package money holds the decimal money type used by every calculator.
//
// Amounts are shopspring decimals. Calculators keep at least
// InternalPrecision fractional digits; rounding to PresentationPrecision
// happens only when a value leaves the core for storage or display.
package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
)

const (
	InternalPrecision     int32 = 4
	PresentationPrecision int32 = 2
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency is an ISO 4217 alphabetic code.
type Currency string

// ParseCurrency normalizes and validates an ISO 4217 code.
func ParseCurrency(raw string) (Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !currencyRe.MatchString(code) {
		return "", calcerr.Validation("invalid currency code %q", raw)
	}
	return Currency(code), nil
}

func (c Currency) String() string { return string(c) }

// Valid reports whether c is a well-formed code.
func (c Currency) Valid() bool { return currencyRe.MatchString(string(c)) }

// minorUnits lists currencies whose minor unit is not two digits.
var minorUnits = map[Currency]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnits returns the number of fractional digits of the currency's minor unit.
func (c Currency) MinorUnits() int32 {
	if units, ok := minorUnits[c]; ok {
		return units
	}
	return 2
}

// Money is an amount in a single currency. The currency is always set.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// New builds Money after validating the currency code.
func New(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, calcerr.Validation("invalid currency code %q", currency)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// MustNew is New for constants and tests.
func MustNew(amount string, currency Currency) Money {
	m, err := New(decimal.RequireFromString(amount), currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in currency.
func Zero(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, calcerr.Validation("currency mismatch %s != %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Neg flips the sign of the amount.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// Round rounds half away from zero to places fractional digits.
func (m Money) Round(places int32) Money {
	return Money{Amount: m.Amount.Round(places), Currency: m.Currency}
}

// RoundMinor rounds to the currency's minor unit.
func (m Money) RoundMinor() Money {
	return m.Round(m.Currency.MinorUnits())
}

// Presentation rounds to PresentationPrecision for storage and display.
func (m Money) Presentation() Money {
	return m.Round(PresentationPrecision)
}

// StringFixed renders the amount with exactly places digits, no symbol.
func (m Money) StringFixed(places int32) string {
	return m.Amount.StringFixed(places)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(PresentationPrecision), m.Currency)
}

// NonNegative rejects negative amounts.
func NonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return calcerr.Validation("%s must not be negative, got %s", field, v.String())
	}
	return nil
}
