package domain

import (
	"context"

	"github.com/smallbiznis/invoicecalc/internal/money"
)

// Pricer turns a line item into a priced line in the invoice currency.
// Steps run in a fixed order: extend, prorate, discount, convert, tax.
// A failing step is returned as a *StepError and never defaulted.
type Pricer interface {
	Price(ctx context.Context, item LineItem, invoiceCurrency money.Currency, opts Options) (PricedLine, error)
}
