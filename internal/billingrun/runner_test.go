package billingrun

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/clock"
	"github.com/smallbiznis/invoicecalc/internal/config"
	invoiceservice "github.com/smallbiznis/invoicecalc/internal/invoice/service"
	lineitemdomain "github.com/smallbiznis/invoicecalc/internal/lineitem/domain"
	pricingservice "github.com/smallbiznis/invoicecalc/internal/pricing/service"
	prorationservice "github.com/smallbiznis/invoicecalc/internal/proration/service"
	taxservice "github.com/smallbiznis/invoicecalc/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListInvoices(ctx context.Context, issuedBefore time.Time) ([]lineitemdomain.InvoiceHeader, error) {
	args := m.Called(ctx, issuedBefore)
	headers, _ := args.Get(0).([]lineitemdomain.InvoiceHeader)
	return headers, args.Error(1)
}

func (m *mockSource) LoadLines(ctx context.Context, invoice lineitemdomain.InvoiceHeader) ([]lineitemdomain.RawLine, []lineitemdomain.RawTaxAssignment, error) {
	args := m.Called(ctx, invoice)
	rows, _ := args.Get(0).([]lineitemdomain.RawLine)
	taxes, _ := args.Get(1).([]lineitemdomain.RawTaxAssignment)
	return rows, taxes, args.Error(2)
}

// recordingSink keeps every saved result by invoice ref.
type recordingSink struct {
	mu      sync.Mutex
	results map[string]lineitemdomain.InvoiceResult
	failFor string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{results: map[string]lineitemdomain.InvoiceResult{}}
}

func (s *recordingSink) SaveResult(_ context.Context, result lineitemdomain.InvoiceResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.Invoice.Ref == s.failFor {
		return errors.New("database is read-only")
	}
	s.results[result.Invoice.Ref] = result
	return nil
}

func (s *recordingSink) get(ref string) (lineitemdomain.InvoiceResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[ref]
	return r, ok
}

var runNow = time.Date(2024, time.February, 1, 2, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestRunner(t *testing.T, source lineitemdomain.Source, sink lineitemdomain.Sink) *Runner {
	t.Helper()
	holder, err := config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())
	require.NoError(t, err)

	proration := prorationservice.NewCalculator()
	runner, err := New(Params{
		Log:     zap.NewNop(),
		Pricing: holder,
		Source:  source,
		Sink:    sink,
		Pricer: pricingservice.NewService(pricingservice.ServiceParam{
			Log:       zap.NewNop(),
			Tax:       taxservice.NewCalculator(),
			Proration: proration,
		}),
		Aggregator: invoiceservice.NewAggregator(),
		Proration:  proration,
		Clock:      clock.NewFakeClock(runNow),
		Config:     Config{Concurrency: 2},
	})
	require.NoError(t, err)
	return runner
}

func quebecInvoice() (lineitemdomain.InvoiceHeader, []lineitemdomain.RawLine, []lineitemdomain.RawTaxAssignment) {
	header := lineitemdomain.InvoiceHeader{ID: snowflake.ID(1), Ref: "INV-1", Currency: "CAD"}
	rows := []lineitemdomain.RawLine{
		{
			ID:                snowflake.ID(11),
			Entity:            "package",
			DescriptionParams: datatypes.JSONMap{"package": "Pro"},
			UnitPrice:         dec("100"),
			Currency:          "CAD",
			Quantity:          dec("1"),
			Unit:              "month",
		},
		{
			ID:                snowflake.ID(12),
			Entity:            "service",
			DescriptionParams: datatypes.JSONMap{"package": "Pro", "service": "Backup"},
			Nested:            true,
			UnitPrice:         dec("20"),
			Currency:          "CAD",
			Quantity:          dec("1"),
			Unit:              "month",
			DiscountCode:      "SAVE10",
			DiscountKind:      "percent",
			DiscountValue:     decimal.NewNullDecimal(dec("10")),
		},
	}
	qc := "QC"
	taxes := []lineitemdomain.RawTaxAssignment{
		{ID: snowflake.ID(101), LineID: snowflake.ID(11), Name: "GST", Level: 1, Rate: dec("5"), Country: "CA"},
		{ID: snowflake.ID(102), LineID: snowflake.ID(11), Name: "QST", Level: 2, Rate: dec("10"), Country: "CA", State: &qc},
		{ID: snowflake.ID(103), LineID: snowflake.ID(12), Name: "GST", Level: 1, Rate: dec("5"), Country: "CA"},
	}
	return header, rows, taxes
}

func TestRunComputesAndStoresInvoices(t *testing.T) {
	header, rows, taxes := quebecInvoice()
	broken := lineitemdomain.InvoiceHeader{ID: snowflake.ID(2), Ref: "INV-2", Currency: "EURO"}

	source := new(mockSource)
	source.On("ListInvoices", mock.Anything, runNow).Return([]lineitemdomain.InvoiceHeader{header, broken}, nil)
	source.On("LoadLines", mock.Anything, header).Return(rows, taxes, nil)
	sink := newRecordingSink()

	summary, err := newTestRunner(t, source, sink).Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Invoices)
	assert.Equal(t, 1, summary.Computed)
	assert.Equal(t, 1, summary.Failed)

	ok, found := sink.get("INV-1")
	require.True(t, found)
	require.NoError(t, ok.Err)
	assert.Equal(t, summary.RunID, ok.RunID)
	assert.Equal(t, runNow, ok.ComputedAt)

	totals := ok.Totals
	assert.Equal(t, "118", totals.Subtotal.Amount.String())
	assert.Equal(t, "5.9", totals.Level1Tax.Amount.String())
	assert.Equal(t, "10", totals.Level2Tax.Amount.String())
	assert.Equal(t, "133.9", totals.Total.Amount.String())

	require.Len(t, ok.Lines, 2)
	assert.Equal(t, "Pro", ok.Lines[0].Description)
	assert.Empty(t, ok.Lines[0].DiscountLabel)
	assert.Equal(t, "└ Pro - Backup", ok.Lines[1].Description)
	assert.Equal(t, "└ Coupon SAVE10 (10%)", ok.Lines[1].DiscountLabel)
	assert.Equal(t, []string{"GST (5%)", "QST (10%)"}, ok.TaxLabels)

	failed, found := sink.get("INV-2")
	require.True(t, found)
	assert.ErrorIs(t, failed.Err, calcerr.ErrValidation)
	assert.Empty(t, failed.Lines)
	source.AssertNotCalled(t, "LoadLines", mock.Anything, broken)
}

func TestRunIsolatesLineFailures(t *testing.T) {
	header, rows, taxes := quebecInvoice()
	rows[1].Unit = "fortnight"

	source := new(mockSource)
	source.On("ListInvoices", mock.Anything, runNow).Return([]lineitemdomain.InvoiceHeader{header}, nil)
	source.On("LoadLines", mock.Anything, header).Return(rows, taxes, nil)
	sink := newRecordingSink()

	summary, err := newTestRunner(t, source, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	result, found := sink.get("INV-1")
	require.True(t, found)
	assert.ErrorIs(t, result.Err, lineitemdomain.ErrInvalidRow)
	assert.True(t, result.Totals.Total.Amount.IsZero())
}

func TestRunReportsStoreFailures(t *testing.T) {
	header, rows, taxes := quebecInvoice()

	source := new(mockSource)
	source.On("ListInvoices", mock.Anything, runNow).Return([]lineitemdomain.InvoiceHeader{header}, nil)
	source.On("LoadLines", mock.Anything, header).Return(rows, taxes, nil)
	sink := newRecordingSink()
	sink.failFor = "INV-1"

	summary, err := newTestRunner(t, source, sink).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store INV-1")
	assert.Equal(t, 1, summary.Computed)
}

func TestRunFailsWhenInvoicesCannotBeListed(t *testing.T) {
	source := new(mockSource)
	source.On("ListInvoices", mock.Anything, runNow).Return(nil, errors.New("connection refused"))

	summary, err := newTestRunner(t, source, newRecordingSink()).Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, summary.Invoices)
	source.AssertNotCalled(t, "LoadLines", mock.Anything, mock.Anything)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
