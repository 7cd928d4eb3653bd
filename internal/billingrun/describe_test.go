package billingrun

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/config"
	invoicedomain "github.com/smallbiznis/invoicecalc/internal/invoice/domain"
	"github.com/smallbiznis/invoicecalc/internal/invoice/format"
	"github.com/smallbiznis/invoicecalc/internal/money"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingOptionsFollowPolicy(t *testing.T) {
	policy := config.DefaultPricingConfig()
	policy.TaxPrecision = 6
	policy.ProrationPrecision = 4
	policy.StaleRateAfter = 2 * time.Hour
	policy.CascadeOverrides = map[string]bool{"CA/QC": false}

	opts := pricingOptions(policy)
	assert.Equal(t, int32(6), opts.Tax.Precision)
	assert.Equal(t, 2, opts.Tax.MaxLevels)
	assert.Equal(t, map[string]bool{"CA/QC": false}, opts.Tax.CascadeOverrides)
	assert.Equal(t, int32(4), opts.Proration.Precision)
	assert.Equal(t, 2*time.Hour, opts.Currency.StaleAfter)

	policy.ProrationPrecision = 0
	assert.Equal(t, int32(0), pricingOptions(policy).Proration.Precision)
}

func TestDescribeProratedCreditWithFlatCoupon(t *testing.T) {
	item := pricingdomain.LineItem{
		ID: "line-1",
		Description: pricingdomain.DescriptionRef{
			Entity: string(format.KindProrationCredit),
			Params: map[string]string{"name": "Pro"},
		},
		Discount: &pricingdomain.Discount{
			Code:   "WELCOME",
			Kind:   pricingdomain.DiscountFlat,
			Amount: money.MustNew("5", "USD"),
		},
	}
	line := pricingdomain.PricedLine{
		Prorated: &prorationdomain.Result{
			Range: prorationdomain.DateRange{
				Start: time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	label, discount, err := describeLine(format.NewFormatter(), item, line)
	require.NoError(t, err)
	assert.Equal(t, "Prorated Credit of Pro (01/16/2024 - 01/31/2024)", label)
	assert.Equal(t, "└ Coupon WELCOME (5.00 USD)", discount)
}

func TestDescribeUsesConfiguredTemplates(t *testing.T) {
	policy := config.DefaultPricingConfig()
	policy.Description.DateLayout = "2006-01-02"
	policy.Description.Templates = map[string]string{"proration_addition": "{name} from {start} to {end}"}
	f := format.New(formatOptions(policy))

	item := pricingdomain.LineItem{
		ID: "line-2",
		Description: pricingdomain.DescriptionRef{
			Entity: string(format.KindProrationAddition),
			Params: map[string]string{"name": "Pro"},
		},
	}
	line := pricingdomain.PricedLine{
		Prorated: &prorationdomain.Result{
			Range: prorationdomain.DateRange{
				Start: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	label, _, err := describeLine(f, item, line)
	require.NoError(t, err)
	assert.Equal(t, "Pro from 2024-03-10 to 2024-03-31", label)
}

func TestDescribeFailsOnMissingValue(t *testing.T) {
	item := pricingdomain.LineItem{
		ID:          "line-3",
		Description: pricingdomain.DescriptionRef{Entity: string(format.KindService), Params: map[string]string{"package": "Pro"}},
	}
	_, _, err := describeLine(format.NewFormatter(), item, pricingdomain.PricedLine{})
	assert.ErrorIs(t, err, format.ErrMissingValue)
	assert.Contains(t, err.Error(), "line-3")
}

func TestTaxLabelsFallBackToJurisdiction(t *testing.T) {
	summary := []invoicedomain.TaxSummaryEntry{
		{Level: 1, Jurisdiction: "CA", Name: "GST", Rate: decimal.RequireFromString("5")},
		{Level: 2, Jurisdiction: "CA/QC", Name: " ", Rate: decimal.RequireFromString("10")},
	}

	labels, err := taxLabels(format.NewFormatter(), summary)
	require.NoError(t, err)
	assert.Equal(t, []string{"GST (5%)", "CA/QC (10%)"}, labels)
}
