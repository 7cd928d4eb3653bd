package domain

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/invoicecalc/internal/pricing/service"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	prorationservice "github.com/smallbiznis/invoicecalc/internal/proration/service"
	taxservice "github.com/smallbiznis/invoicecalc/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fixedPeriods struct {
	got prorationdomain.Period
}

func (f *fixedPeriods) PeriodFor(start time.Time, period prorationdomain.Period) (prorationdomain.DateRange, error) {
	f.got = period
	return prorationdomain.DateRange{Start: start, End: start.AddDate(0, period.Term, -1)}, nil
}

func ptrTime(t time.Time) *time.Time { return &t }

func baseRow() RawLine {
	return RawLine{
		ID:                snowflake.ID(42),
		Entity:            "service",
		DescriptionParams: datatypes.JSONMap{"package": "Hosting", "service": "example.com", "seats": 3},
		UnitPrice:         decimal.RequireFromString("30"),
		Currency:          "usd",
		Quantity:          decimal.RequireFromString("2"),
		Term:              1,
		Unit:              "months",
	}
}

func TestBuild_MapsRow(t *testing.T) {
	row := baseRow()
	row.DiscountKind = "Percent"
	row.DiscountCode = "TENOFF"
	row.DiscountValue = decimal.NewNullDecimal(decimal.RequireFromString("10"))
	state := "QC"
	taxes := []RawTaxAssignment{
		{LineID: 42, Name: "GST", Level: 1, Rate: decimal.RequireFromString("5"), Country: "CA"},
		{LineID: 42, Name: "QST", Level: 2, Rate: decimal.RequireFromString("9.975"), Country: "CA", State: &state, Cascade: true},
		{LineID: 7, Name: "OTHER", Level: 1, Rate: decimal.RequireFromString("20"), Country: "GB"},
	}

	item, err := NewBuilder(nil).Build(row, taxes)
	require.NoError(t, err)

	assert.Equal(t, "42", item.ID)
	assert.Equal(t, "USD", item.UnitPrice.Currency.String())
	assert.Equal(t, prorationdomain.Period{Term: 1, Unit: prorationdomain.UnitMonth}, item.Period)
	assert.Equal(t, "service", item.Description.Entity)
	assert.Equal(t, "3", item.Description.Params["seats"])
	require.Len(t, item.TaxRates, 2)
	assert.True(t, item.TaxRates[1].Cascade)
	require.NotNil(t, item.Discount)
	assert.Equal(t, pricingdomain.DiscountPercent, item.Discount.Kind)
	assert.Equal(t, "TENOFF", item.Discount.Code)
	assert.Nil(t, item.Proration)
}

func TestBuild_DefaultsTerm(t *testing.T) {
	row := baseRow()
	row.Term = 0

	item, err := NewBuilder(nil).Build(row, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Period.Term)
}

func TestBuild_ZeroQuantityPricesAtZero(t *testing.T) {
	row := baseRow()
	row.UnitPrice = decimal.RequireFromString("10.00")
	row.Quantity = decimal.Zero
	taxes := []RawTaxAssignment{
		{LineID: 42, Name: "GST", Level: 1, Rate: decimal.RequireFromString("5"), Country: "CA"},
	}

	item, err := NewBuilder(nil).Build(row, taxes)
	require.NoError(t, err)
	assert.True(t, item.Quantity.IsZero())

	pricer := pricingservice.NewService(pricingservice.ServiceParam{
		Tax:       taxservice.NewCalculator(),
		Proration: prorationservice.NewCalculator(),
	})
	line, err := pricer.Price(context.Background(), item, "USD", pricingdomain.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, line.Taxable.Amount.IsZero(), "taxable=%s", line.Taxable.Amount)
	assert.True(t, line.Level1Tax.Amount.IsZero())
}

func TestBuild_ProrationWindow(t *testing.T) {
	row := baseRow()
	row.Entity = ""
	row.ProrationStart = ptrTime(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC))
	row.ProrationEnd = ptrTime(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	row.Direction = "credit"

	periods := &fixedPeriods{}
	item, err := NewBuilder(periods).Build(row, nil)
	require.NoError(t, err)

	require.NotNil(t, item.Proration)
	assert.Equal(t, prorationdomain.KindCredit, item.Proration.Direction)
	assert.Equal(t, "proration_credit", item.Description.Entity)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), item.Proration.PeriodEnd)
	assert.Equal(t, prorationdomain.UnitMonth, periods.got.Unit)

	row.PeriodStart = ptrTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	row.PeriodEnd = ptrTime(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	item, err = NewBuilder(nil).Build(row, nil)
	require.NoError(t, err)
	assert.Equal(t, *row.PeriodStart, item.Proration.PeriodStart)
}

func TestBuild_RejectsBadRows(t *testing.T) {
	cases := map[string]func(*RawLine){
		"bad currency":        func(r *RawLine) { r.Currency = "dollars" },
		"bad unit":            func(r *RawLine) { r.Unit = "fortnight" },
		"half a window":       func(r *RawLine) { r.ProrationStart = ptrTime(time.Now()) },
		"bad direction":       func(r *RawLine) { r.ProrationStart = ptrTime(time.Now()); r.ProrationEnd = ptrTime(time.Now()); r.Direction = "refund" },
		"discount w/o value":  func(r *RawLine) { r.DiscountKind = "flat" },
		"unknown discount":    func(r *RawLine) { r.DiscountKind = "bogo"; r.DiscountValue = decimal.NewNullDecimal(decimal.NewFromInt(1)) },
		"negative unit price": func(r *RawLine) { r.UnitPrice = decimal.NewFromInt(-5) },
		"no entity":           func(r *RawLine) { r.Entity = " " },
		"half a period": func(r *RawLine) {
			r.ProrationStart = ptrTime(time.Now())
			r.ProrationEnd = ptrTime(time.Now())
			r.PeriodStart = ptrTime(time.Now())
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			row := baseRow()
			mutate(&row)
			_, err := NewBuilder(&fixedPeriods{}).Build(row, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, calcerr.ErrValidation)
		})
	}
}
