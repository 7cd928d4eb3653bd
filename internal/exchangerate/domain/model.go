// Package domain defines exchange rates and the provider contract.
package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/money"
)

// ExchangeRate converts one unit of From into Rate units of To.
// Values are never mutated after a fetch.
type ExchangeRate struct {
	From       money.Currency
	To         money.Currency
	Rate       decimal.Decimal
	ObservedAt time.Time
	Source     string
}

// Age returns how old the rate is at now.
func (r ExchangeRate) Age(now time.Time) time.Duration {
	return now.Sub(r.ObservedAt)
}

// Inverse returns the reciprocal rate.
func (r ExchangeRate) Inverse() ExchangeRate {
	return ExchangeRate{
		From:       r.To,
		To:         r.From,
		Rate:       decimal.NewFromInt(1).Div(r.Rate),
		ObservedAt: r.ObservedAt,
		Source:     r.Source,
	}
}

// Provider fetches a conversion rate from a remote quote source.
// Implementations issue exactly one request per call and never retry.
type Provider interface {
	Name() string
	GetRate(ctx context.Context, from, to money.Currency, amount decimal.Decimal) (ExchangeRate, error)
}

var (
	ErrInvalidPair   = fmt.Errorf("%w: invalid_currency_pair", calcerr.ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: invalid_quote_amount", calcerr.ErrValidation)
	ErrImplausible   = fmt.Errorf("%w: implausible_rate", calcerr.ErrParse)
)

var (
	minPlausible = decimal.New(1, -9)
	maxPlausible = decimal.New(1, 9)

	scientificRe = regexp.MustCompile(`\d\s*[eE]\s*[-+]?\s*\d`)
	negativeRe   = regexp.MustCompile(`(^|[^\d.])-\s*[\d.]`)
	nonNumericRe = regexp.MustCompile(`[^0-9.]`)
)

// ValidatePair checks the currencies and quote amount of a request.
// A zero amount means one unit.
func ValidatePair(from, to money.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	if !from.Valid() || !to.Valid() {
		return decimal.Zero, ErrInvalidPair
	}
	if amount.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// ParseRate strips every character that is not a digit or a dot and parses
// what remains. Negative and scientific notation are rejected before
// stripping because stripping would silently change their value.
func ParseRate(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, calcerr.Parse("empty rate")
	}
	if scientificRe.MatchString(trimmed) {
		return decimal.Zero, calcerr.Parse("rate %q uses scientific notation", raw)
	}
	if negativeRe.MatchString(trimmed) {
		return decimal.Zero, calcerr.Parse("rate %q is negative", raw)
	}

	cleaned := nonNumericRe.ReplaceAllString(trimmed, "")
	if cleaned == "" || strings.Count(cleaned, ".") > 1 {
		return decimal.Zero, calcerr.Parse("rate %q is not numeric", raw)
	}
	rate, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, calcerr.Parse("rate %q is not numeric: %v", raw, err)
	}
	if err := CheckPlausible(rate); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

// CheckPlausible accepts positive rates within [1e-9, 1e9].
func CheckPlausible(rate decimal.Decimal) error {
	if rate.LessThan(minPlausible) || rate.GreaterThan(maxPlausible) {
		return fmt.Errorf("%w: %s", ErrImplausible, rate.String())
	}
	return nil
}
