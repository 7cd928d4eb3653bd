package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoicecalc/internal/invoice/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	taxdomain "github.com/smallbiznis/invoicecalc/internal/tax/domain"
)

type aggregator struct{}

func NewAggregator() invoicedomain.Aggregator {
	return &aggregator{}
}

type summaryKey struct {
	level        int
	jurisdiction string
	name         string
	rate         string
}

// Aggregate sums subtotal and per-level tax across lines, grouping tax by
// level regardless of jurisdiction. Every line must already be in currency.
func (a *aggregator) Aggregate(currency money.Currency, lines []pricingdomain.PricedLine) (invoicedomain.InvoiceTotals, error) {
	if !currency.Valid() {
		return invoicedomain.InvoiceTotals{}, invoicedomain.ErrInvalidInvoiceCurrency
	}

	subtotal := decimal.Zero
	level1 := decimal.Zero
	level2 := decimal.Zero
	summary := map[summaryKey]*invoicedomain.TaxSummaryEntry{}

	for i, line := range lines {
		if line.Taxable.Currency != currency || line.Level1Tax.Currency != currency || line.Level2Tax.Currency != currency {
			return invoicedomain.InvoiceTotals{}, fmt.Errorf("%w: line %d (%s) is in %s, invoice is in %s",
				invoicedomain.ErrCurrencyMismatch, i, line.ItemID, line.Taxable.Currency, currency)
		}
		subtotal = subtotal.Add(line.Taxable.Amount)
		level1 = level1.Add(line.Level1Tax.Amount)
		level2 = level2.Add(line.Level2Tax.Amount)

		for _, l := range line.Taxes {
			addToSummary(summary, currency, l)
		}
	}

	entries := make([]invoicedomain.TaxSummaryEntry, 0, len(summary))
	for _, e := range summary {
		entries = append(entries, *e)
	}
	invoicedomain.SortTaxSummary(entries)

	return invoicedomain.InvoiceTotals{
		Currency:   currency,
		Subtotal:   money.Money{Amount: subtotal, Currency: currency},
		Level1Tax:  money.Money{Amount: level1, Currency: currency},
		Level2Tax:  money.Money{Amount: level2, Currency: currency},
		Total:      money.Money{Amount: subtotal.Add(level1).Add(level2), Currency: currency},
		LineCount:  len(lines),
		TaxSummary: entries,
	}, nil
}

func addToSummary(summary map[summaryKey]*invoicedomain.TaxSummaryEntry, currency money.Currency, l taxdomain.LevelAmount) {
	key := summaryKey{
		level:        l.Level,
		jurisdiction: l.Jurisdiction.Key(),
		name:         l.Name,
		rate:         l.Rate.String(),
	}
	entry, ok := summary[key]
	if !ok {
		entry = &invoicedomain.TaxSummaryEntry{
			Level:        l.Level,
			Jurisdiction: key.jurisdiction,
			Name:         l.Name,
			Rate:         l.Rate,
			Taxable:      money.Zero(currency),
			Amount:       money.Zero(currency),
		}
		summary[key] = entry
	}
	entry.Taxable.Amount = entry.Taxable.Amount.Add(l.Base)
	entry.Amount.Amount = entry.Amount.Amount.Add(l.Amount)
}
