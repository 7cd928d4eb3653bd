package domain

import (
	"context"
	"time"

	invoicedomain "github.com/smallbiznis/invoicecalc/internal/invoice/domain"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
)

// Source yields the raw rows of invoices to compute.
type Source interface {
	ListInvoices(ctx context.Context, issuedBefore time.Time) ([]InvoiceHeader, error)
	LoadLines(ctx context.Context, invoice InvoiceHeader) ([]RawLine, []RawTaxAssignment, error)
}

// Sink stores the outcome of one invoice computation.
type Sink interface {
	SaveResult(ctx context.Context, result InvoiceResult) error
}

// DescribedLine is a priced line with its rendered labels. DiscountLabel
// is empty when the line has no discount.
type DescribedLine struct {
	Line          pricingdomain.PricedLine
	Description   string
	DiscountLabel string
}

// InvoiceResult is the outcome of computing one invoice in a run. Err is set
// when the invoice failed; Totals and Lines are then empty. TaxLabels
// follow the order of Totals.TaxSummary.
type InvoiceResult struct {
	RunID      string
	Invoice    InvoiceHeader
	Totals     invoicedomain.InvoiceTotals
	Lines      []DescribedLine
	TaxLabels  []string
	Err        error
	ComputedAt time.Time
}
