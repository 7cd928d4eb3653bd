package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/money"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
)

// InvoiceTotals is derived from priced lines and never edited directly.
// Amounts keep internal precision; use Rounded for storage and display.
type InvoiceTotals struct {
	Currency   money.Currency
	Subtotal   money.Money
	Level1Tax  money.Money
	Level2Tax  money.Money
	Total      money.Money
	LineCount  int
	TaxSummary []TaxSummaryEntry
}

// TaxSummaryEntry is the tax collected for one level and jurisdiction.
type TaxSummaryEntry struct {
	Level        int
	Jurisdiction string
	Name         string
	Rate         decimal.Decimal
	Taxable      money.Money
	Amount       money.Money
}

// TotalTax is level-1 plus level-2 tax.
func (t InvoiceTotals) TotalTax() money.Money {
	return money.Money{Amount: t.Level1Tax.Amount.Add(t.Level2Tax.Amount), Currency: t.Currency}
}

// Rounded returns the totals at presentation precision. The rounded total
// is the sum of the rounded parts so the printed invoice adds up.
func (t InvoiceTotals) Rounded() InvoiceTotals {
	out := t
	out.Subtotal = t.Subtotal.Presentation()
	out.Level1Tax = t.Level1Tax.Presentation()
	out.Level2Tax = t.Level2Tax.Presentation()
	out.Total = money.Money{
		Amount:   out.Subtotal.Amount.Add(out.Level1Tax.Amount).Add(out.Level2Tax.Amount),
		Currency: t.Currency,
	}
	out.TaxSummary = make([]TaxSummaryEntry, len(t.TaxSummary))
	for i, e := range t.TaxSummary {
		e.Taxable = e.Taxable.Presentation()
		e.Amount = e.Amount.Presentation()
		out.TaxSummary[i] = e
	}
	return out
}

// SortTaxSummary orders entries by level, jurisdiction, name and rate.
func SortTaxSummary(entries []TaxSummaryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Jurisdiction != b.Jurisdiction {
			return a.Jurisdiction < b.Jurisdiction
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Rate.LessThan(b.Rate)
	})
}

// Aggregator sums priced lines into invoice totals. Sums do not depend on
// line order.
type Aggregator interface {
	Aggregate(currency money.Currency, lines []pricingdomain.PricedLine) (InvoiceTotals, error)
}

var (
	ErrInvalidInvoiceCurrency = fmt.Errorf("%w: invalid_invoice_currency", calcerr.ErrValidation)
	ErrCurrencyMismatch       = fmt.Errorf("%w: line_currency_mismatch", calcerr.ErrValidation)
)
