// Package domain defines line items and the priced lines computed from them.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	currencydomain "github.com/smallbiznis/invoicecalc/internal/currency/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	taxdomain "github.com/smallbiznis/invoicecalc/internal/tax/domain"
)

// DiscountKind selects how a discount is applied.
type DiscountKind string

const (
	DiscountFlat    DiscountKind = "flat"
	DiscountPercent DiscountKind = "percent"
)

// Discount reduces a line after proration. Flat discounts are expressed in
// the line's native currency; Percent is a percentage (10 means 10%).
type Discount struct {
	Code    string
	Kind    DiscountKind
	Amount  money.Money
	Percent decimal.Decimal
}

// DescriptionRef names the template used to label the line and the values
// substituted into it.
type DescriptionRef struct {
	Entity string
	Params map[string]string
	Nested bool
}

// LineItem is immutable once persisted. Mid-cycle changes are expressed as
// a credit line plus an addition line, never as a mutation.
type LineItem struct {
	ID          string
	Description DescriptionRef
	UnitPrice   money.Money
	Quantity    decimal.Decimal
	Period      prorationdomain.Period
	TaxRates    []taxdomain.TaxRate
	Proration   *prorationdomain.Window
	Discount    *Discount
}

// Validate checks the fields the pricer relies on.
func (li LineItem) Validate() error {
	if !li.UnitPrice.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if li.UnitPrice.Amount.IsNegative() {
		return ErrInvalidUnitPrice
	}
	if li.Quantity.IsNegative() {
		return ErrInvalidQuantity
	}
	if li.Discount != nil {
		if err := li.Discount.validate(li.UnitPrice.Currency); err != nil {
			return err
		}
	}
	return nil
}

func (d Discount) validate(lineCurrency money.Currency) error {
	switch d.Kind {
	case DiscountFlat:
		if d.Amount.Amount.IsNegative() {
			return ErrInvalidDiscount
		}
		if d.Amount.Currency != lineCurrency {
			return fmt.Errorf("%w: discount in %s on a %s line", ErrInvalidDiscount, d.Amount.Currency, lineCurrency)
		}
	case DiscountPercent:
		if d.Percent.IsNegative() || d.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidDiscount
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDiscount, d.Kind)
	}
	return nil
}

// PricedLine is a line item after proration, discount, conversion and tax.
// Extended and Discount are magnitudes in the line's native currency.
// Taxable, the tax amounts and Taxes are in the invoice currency and signed:
// credit lines carry negative values.
type PricedLine struct {
	ItemID      string
	Description DescriptionRef
	Kind        prorationdomain.Kind

	Extended  money.Money
	Prorated  *prorationdomain.Result
	Discount  money.Money
	Taxable   money.Money
	Level1Tax money.Money
	Level2Tax money.Money
	Taxes     []taxdomain.LevelAmount
}

// Currency is the invoice currency of the line.
func (l PricedLine) Currency() money.Currency { return l.Taxable.Currency }

// TotalTax is level-1 plus level-2 tax.
func (l PricedLine) TotalTax() money.Money {
	return money.Money{Amount: l.Level1Tax.Amount.Add(l.Level2Tax.Amount), Currency: l.Taxable.Currency}
}

// Total is the taxable amount plus tax.
func (l PricedLine) Total() money.Money {
	return money.Money{Amount: l.Taxable.Amount.Add(l.TotalTax().Amount), Currency: l.Taxable.Currency}
}

// IsCredit reports whether the line reduces the invoice.
func (l PricedLine) IsCredit() bool { return l.Kind == prorationdomain.KindCredit }

// Options bundles the policy values of every step.
type Options struct {
	Tax       taxdomain.Options
	Proration prorationdomain.Options
	Currency  currencydomain.Options
}

// DefaultOptions returns the default policy of every step.
func DefaultOptions() Options {
	return Options{
		Tax:       taxdomain.DefaultOptions(),
		Proration: prorationdomain.DefaultOptions(),
		Currency:  currencydomain.Options{}.WithDefaults(),
	}
}

// Step names a pricing stage in error reports.
type Step string

const (
	StepValidate Step = "validate"
	StepExtend   Step = "extend"
	StepProrate  Step = "prorate"
	StepDiscount Step = "discount"
	StepConvert  Step = "convert"
	StepTax      Step = "tax"
)

// StepError reports the stage that failed for a line.
type StepError struct {
	ItemID string
	Step   Step
	Err    error
}

func (e *StepError) Error() string {
	if strings.TrimSpace(e.ItemID) == "" {
		return fmt.Sprintf("price line: %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("price line %s: %s: %v", e.ItemID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

var (
	ErrInvalidCurrency  = fmt.Errorf("%w: invalid_line_currency", calcerr.ErrValidation)
	ErrInvalidUnitPrice = fmt.Errorf("%w: invalid_unit_price", calcerr.ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: invalid_quantity", calcerr.ErrValidation)
	ErrInvalidDiscount  = fmt.Errorf("%w: invalid_discount", calcerr.ErrValidation)
)
