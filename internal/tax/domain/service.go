package domain

import "github.com/shopspring/decimal"

// Calculator computes level-by-level tax for a taxable amount.
type Calculator interface {
	ComputeTax(taxable decimal.Decimal, level1, level2 *TaxRate, opts Options) (TaxResult, error)
	ComputeLevels(taxable decimal.Decimal, rates []TaxRate, opts Options) ([]LevelAmount, error)
}
