package billingrun

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/invoicecalc/internal/config"
	invoicedomain "github.com/smallbiznis/invoicecalc/internal/invoice/domain"
	"github.com/smallbiznis/invoicecalc/internal/invoice/format"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	taxdomain "github.com/smallbiznis/invoicecalc/internal/tax/domain"
)

// pricingOptions maps the policy snapshot of a run onto the pricer options.
func pricingOptions(policy config.PricingConfig) pricingdomain.Options {
	opts := pricingdomain.DefaultOptions()
	opts.Tax = taxdomain.Options{
		Precision:        policy.TaxPrecision,
		MaxLevels:        policy.MaxTaxLevels,
		CascadeOverrides: policy.CascadeOverrides,
	}
	opts.Proration = prorationdomain.Options{Precision: policy.ProrationPrecision}
	if policy.StaleRateAfter > 0 {
		opts.Currency.StaleAfter = policy.StaleRateAfter
	}
	return opts
}

func formatOptions(policy config.PricingConfig) format.Options {
	return format.Options{
		Templates:    policy.Description.Templates,
		NestingGlyph: policy.Description.NestingGlyph,
		DateLayout:   policy.Description.DateLayout,
	}
}

// describeLine renders the label of a priced line and, when the line has a
// discount, the nested coupon label below it.
func describeLine(f *format.Formatter, item pricingdomain.LineItem, line pricingdomain.PricedLine) (string, string, error) {
	dctx := format.DescribeContext{
		Values: item.Description.Params,
		Nested: item.Description.Nested,
	}
	if line.Prorated != nil {
		dctx.Start = line.Prorated.Range.Start
		dctx.End = line.Prorated.Range.End
	}

	label, err := f.Describe(format.Kind(item.Description.Entity), dctx)
	if err != nil {
		return "", "", fmt.Errorf("describe line %s: %w", item.ID, err)
	}
	if item.Discount == nil {
		return label, "", nil
	}

	coupon := format.DescribeContext{
		Values:       map[string]string{"code": item.Discount.Code},
		Nested:       true,
		DiscountKind: string(item.Discount.Kind),
	}
	switch item.Discount.Kind {
	case pricingdomain.DiscountFlat:
		amount := item.Discount.Amount
		coupon.Amount = &amount
	case pricingdomain.DiscountPercent:
		percent := item.Discount.Percent
		coupon.Percent = &percent
	}
	discountLabel, err := f.Describe(format.KindCoupon, coupon)
	if err != nil {
		return "", "", fmt.Errorf("describe discount of line %s: %w", item.ID, err)
	}
	return label, discountLabel, nil
}

// taxLabels renders one label per tax summary entry, in summary order.
// An unnamed tax is labelled by its jurisdiction key.
func taxLabels(f *format.Formatter, summary []invoicedomain.TaxSummaryEntry) ([]string, error) {
	labels := make([]string, 0, len(summary))
	for _, e := range summary {
		rate := e.Rate
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = e.Jurisdiction
		}
		label, err := f.Describe(format.KindTax, format.DescribeContext{
			Values: map[string]string{"name": name},
			Rate:   &rate,
		})
		if err != nil {
			return nil, fmt.Errorf("describe tax %s: %w", name, err)
		}
		labels = append(labels, label)
	}
	return labels, nil
}
