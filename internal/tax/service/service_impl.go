package service

import (
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/invoicecalc/internal/tax/domain"
)

var hundred = decimal.NewFromInt(100)

type calculator struct{}

func NewCalculator() taxdomain.Calculator {
	return &calculator{}
}

// ComputeTax applies at most one level-1 and one level-2 rate.
func (c *calculator) ComputeTax(taxable decimal.Decimal, level1, level2 *taxdomain.TaxRate, opts taxdomain.Options) (taxdomain.TaxResult, error) {
	rates := make([]taxdomain.TaxRate, 0, 2)
	if level1 != nil {
		if level1.Level != taxdomain.Level1 {
			return taxdomain.TaxResult{}, taxdomain.ErrInvalidTaxLevel
		}
		rates = append(rates, *level1)
	}
	if level2 != nil {
		if level2.Level != taxdomain.Level2 {
			return taxdomain.TaxResult{}, taxdomain.ErrInvalidTaxLevel
		}
		rates = append(rates, *level2)
	}

	opts.MaxLevels = taxdomain.Level2
	levels, err := c.ComputeLevels(taxable, rates, opts)
	if err != nil {
		return taxdomain.TaxResult{}, err
	}

	return taxdomain.NewTaxResult(levels), nil
}

// ComputeLevels folds an ordered list of rates. Each level is rounded to
// opts.Precision before a later cascading level adds it to its base.
func (c *calculator) ComputeLevels(taxable decimal.Decimal, rates []taxdomain.TaxRate, opts taxdomain.Options) ([]taxdomain.LevelAmount, error) {
	if taxable.IsNegative() {
		return nil, taxdomain.ErrInvalidTaxableAmount
	}
	opts = opts.WithDefaults()

	ordered := taxdomain.SortByLevel(rates)
	seen := make(map[int]struct{}, len(ordered))
	for _, rate := range ordered {
		if err := rate.Validate(opts.MaxLevels); err != nil {
			return nil, err
		}
		if _, dup := seen[rate.Level]; dup {
			return nil, taxdomain.ErrDuplicateTaxLevel
		}
		seen[rate.Level] = struct{}{}
	}

	out := make([]taxdomain.LevelAmount, 0, len(ordered))
	accumulated := decimal.Zero
	for i, rate := range ordered {
		base := taxable
		if i > 0 && opts.CascadeFor(rate) {
			base = taxable.Add(accumulated)
		}
		amount := computeTaxExclusive(base, rate.Rate, opts.Precision)
		accumulated = accumulated.Add(amount)
		out = append(out, taxdomain.LevelAmount{
			Level:        rate.Level,
			Name:         rate.Name,
			Rate:         rate.Rate,
			Jurisdiction: rate.Jurisdiction,
			Base:         base,
			Amount:       amount,
		})
	}
	return out, nil
}

// ExtractInclusive returns the tax portion already included in gross for a
// single percentage rate.
func ExtractInclusive(gross, ratePercent decimal.Decimal, precision int32) (decimal.Decimal, error) {
	if gross.IsNegative() {
		return decimal.Zero, taxdomain.ErrInvalidTaxableAmount
	}
	if ratePercent.IsNegative() {
		return decimal.Zero, taxdomain.ErrInvalidTaxRate
	}
	if gross.IsZero() || ratePercent.IsZero() {
		return decimal.Zero, nil
	}
	divisor := hundred.Add(ratePercent)
	return gross.Mul(ratePercent).Div(divisor).Round(precision), nil
}

func computeTaxExclusive(base, ratePercent decimal.Decimal, precision int32) decimal.Decimal {
	if base.IsZero() || ratePercent.IsZero() {
		return decimal.Zero
	}
	return base.Mul(ratePercent).Div(hundred).Round(precision)
}
