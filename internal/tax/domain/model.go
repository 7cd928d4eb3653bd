package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Tax levels. Level 1 is usually the country, level 2 the state or province.
const (
	Level1 = 1
	Level2 = 2
)

// Jurisdiction identifies where a rate applies. State is nil for
// country-wide rates.
type Jurisdiction struct {
	Country string
	State   *string
}

// Key returns "CC" or "CC/STATE", upper-cased, for policy lookups and reports.
func (j Jurisdiction) Key() string {
	country := strings.ToUpper(strings.TrimSpace(j.Country))
	if j.State == nil || strings.TrimSpace(*j.State) == "" {
		return country
	}
	return country + "/" + strings.ToUpper(strings.TrimSpace(*j.State))
}

// TaxRate is one configured rate applied to a line.
// Rate is a percentage (5 means 5%).
type TaxRate struct {
	Name         string
	Level        int
	Rate         decimal.Decimal
	Jurisdiction Jurisdiction
	// Cascade computes this level on the taxable amount plus the tax of
	// earlier levels. Ignored on level 1.
	Cascade bool
}

// Validate checks the rate against the configured number of levels.
func (r TaxRate) Validate(maxLevels int) error {
	if r.Level < 1 || (maxLevels > 0 && r.Level > maxLevels) {
		return ErrInvalidTaxLevel
	}
	if r.Rate.IsNegative() {
		return ErrInvalidTaxRate
	}
	if strings.TrimSpace(r.Jurisdiction.Country) == "" {
		return ErrInvalidJurisdiction
	}
	return nil
}

// LevelAmount is the tax computed for one level.
type LevelAmount struct {
	Level        int
	Name         string
	Rate         decimal.Decimal
	Jurisdiction Jurisdiction
	Base         decimal.Decimal
	Amount       decimal.Decimal
}

// TaxResult is the two-level projection of a cascade computation.
type TaxResult struct {
	Level1Amount decimal.Decimal
	Level2Amount decimal.Decimal
	Levels       []LevelAmount
}

// NewTaxResult projects computed levels onto the two-level result.
// Levels beyond Level2 are kept in Levels only.
func NewTaxResult(levels []LevelAmount) TaxResult {
	result := TaxResult{
		Level1Amount: decimal.Zero,
		Level2Amount: decimal.Zero,
		Levels:       levels,
	}
	for _, l := range levels {
		switch l.Level {
		case Level1:
			result.Level1Amount = l.Amount
		case Level2:
			result.Level2Amount = l.Amount
		}
	}
	return result
}

// Total returns the sum of every level.
func (r TaxResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Levels {
		total = total.Add(l.Amount)
	}
	return total
}

// Options are the explicit policy values for one computation.
type Options struct {
	// Precision is the number of fractional digits each level is rounded to
	// before the next level consumes it.
	Precision int32
	// MaxLevels bounds TaxRate.Level. Zero means unbounded.
	MaxLevels int
	// CascadeOverrides forces the cascade flag for a jurisdiction key
	// ("CA" or "CA/QC"). A state key wins over its country key.
	CascadeOverrides map[string]bool
}

// DefaultOptions matches the two-level, four-digit behaviour.
func DefaultOptions() Options {
	return Options{Precision: 4, MaxLevels: 2}
}

// WithDefaults fills unset values from DefaultOptions.
func (o Options) WithDefaults() Options {
	if o.Precision <= 0 {
		o.Precision = DefaultOptions().Precision
	}
	return o
}

// CascadeFor resolves the effective cascade flag for rate.
func (o Options) CascadeFor(rate TaxRate) bool {
	if len(o.CascadeOverrides) > 0 {
		if v, ok := o.CascadeOverrides[rate.Jurisdiction.Key()]; ok {
			return v
		}
		country := strings.ToUpper(strings.TrimSpace(rate.Jurisdiction.Country))
		if v, ok := o.CascadeOverrides[country]; ok {
			return v
		}
	}
	return rate.Cascade
}

// SortByLevel orders rates by ascending level without touching the input.
func SortByLevel(rates []TaxRate) []TaxRate {
	out := make([]TaxRate, len(rates))
	copy(out, rates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}
