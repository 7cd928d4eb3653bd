package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	invoicedomain "github.com/smallbiznis/invoicecalc/internal/invoice/domain"
	lineitemdomain "github.com/smallbiznis/invoicecalc/internal/lineitem/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupRepository(t *testing.T) (*gorm.DB, *Repository, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return db, New(Param{DB: db, Log: zap.NewNop(), GenID: node}), node
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestListInvoicesAndLoadLines(t *testing.T) {
	db, repo, node := setupRepository(t)
	ctx := context.Background()

	jan := lineitemdomain.InvoiceHeader{ID: node.Generate(), Ref: "INV-1", Currency: "USD", IssueDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now().UTC()}
	feb := lineitemdomain.InvoiceHeader{ID: node.Generate(), Ref: "INV-2", Currency: "CAD", IssueDate: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&jan).Error)
	require.NoError(t, db.Create(&feb).Error)

	second := lineitemdomain.RawLine{
		ID: node.Generate(), InvoiceID: jan.ID, Position: 2,
		Entity: "setup_fee", DescriptionParams: datatypes.JSONMap{"name": "Hosting"},
		UnitPrice: d("25"), Currency: "USD", Quantity: d("1"), Term: 1, Unit: "month", CreatedAt: time.Now().UTC(),
	}
	first := lineitemdomain.RawLine{
		ID: node.Generate(), InvoiceID: jan.ID, Position: 1,
		Entity: "package", DescriptionParams: datatypes.JSONMap{"package": "Hosting"},
		UnitPrice: d("30"), Currency: "USD", Quantity: d("2"), Term: 1, Unit: "month", CreatedAt: time.Now().UTC(),
		DiscountKind: "percent", DiscountValue: decimal.NewNullDecimal(d("10")),
	}
	other := lineitemdomain.RawLine{
		ID: node.Generate(), InvoiceID: feb.ID, Position: 1,
		Entity: "package", UnitPrice: d("1"), Currency: "CAD", Quantity: d("1"), Term: 1, Unit: "month", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&other).Error)

	qc := "QC"
	require.NoError(t, db.Create(&lineitemdomain.RawTaxAssignment{ID: node.Generate(), LineID: first.ID, Name: "QST", Level: 2, Rate: d("9.975"), Country: "CA", State: &qc, Cascade: true}).Error)
	require.NoError(t, db.Create(&lineitemdomain.RawTaxAssignment{ID: node.Generate(), LineID: first.ID, Name: "GST", Level: 1, Rate: d("5"), Country: "CA"}).Error)
	require.NoError(t, db.Create(&lineitemdomain.RawTaxAssignment{ID: node.Generate(), LineID: other.ID, Name: "GST", Level: 1, Rate: d("5"), Country: "CA"}).Error)

	invoices, err := repo.ListInvoices(ctx, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-1", invoices[0].Ref)

	lines, taxes, err := repo.LoadLines(ctx, invoices[0])
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, first.ID, lines[0].ID)
	assert.Equal(t, second.ID, lines[1].ID)
	assert.True(t, lines[0].UnitPrice.Equal(d("30")))
	assert.True(t, lines[0].DiscountValue.Valid)
	assert.Equal(t, "Hosting", lines[0].DescriptionParams["package"])

	require.Len(t, taxes, 2)
	assert.Equal(t, 1, taxes[0].Level)
	assert.Equal(t, 2, taxes[1].Level)
	assert.Equal(t, "QC", *taxes[1].State)
	assert.True(t, taxes[1].Rate.Equal(d("9.975")))

	empty, _, err := repo.LoadLines(ctx, lineitemdomain.InvoiceHeader{ID: node.Generate(), Ref: "missing"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func sampleTotals() (invoicedomain.InvoiceTotals, []lineitemdomain.DescribedLine) {
	line := pricingdomain.PricedLine{
		ItemID:      "1",
		Description: pricingdomain.DescriptionRef{Entity: "package", Params: map[string]string{"package": "Hosting"}},
		Kind:        prorationdomain.KindAddition,
		Taxable:     money.MustNew("54.00", "USD"),
		Level1Tax:   money.MustNew("2.70", "USD"),
		Level2Tax:   money.MustNew("5.6563", "USD"),
	}
	totals := invoicedomain.InvoiceTotals{
		Currency:  "USD",
		Subtotal:  money.MustNew("54.00", "USD"),
		Level1Tax: money.MustNew("2.70", "USD"),
		Level2Tax: money.MustNew("5.6563", "USD"),
		Total:     money.MustNew("62.3563", "USD"),
		LineCount: 1,
		TaxSummary: []invoicedomain.TaxSummaryEntry{
			{Level: 1, Jurisdiction: "CA", Name: "GST", Rate: d("5"), Taxable: money.MustNew("54", "USD"), Amount: money.MustNew("2.70", "USD")},
			{Level: 2, Jurisdiction: "CA/QC", Name: "QST", Rate: d("9.975"), Taxable: money.MustNew("56.70", "USD"), Amount: money.MustNew("5.6563", "USD")},
		},
	}
	return totals, []lineitemdomain.DescribedLine{{Line: line, Description: "Hosting"}}
}

func TestSaveResult_StoresRoundedTotals(t *testing.T) {
	db, repo, node := setupRepository(t)
	ctx := context.Background()
	header := lineitemdomain.InvoiceHeader{ID: node.Generate(), Ref: "INV-9", Currency: "USD"}

	totals, lines := sampleTotals()
	require.NoError(t, repo.SaveResult(ctx, lineitemdomain.InvoiceResult{
		RunID: "run-1", Invoice: header, Totals: totals, Lines: lines,
	}))

	var record invoicedomain.InvoiceTotalsRecord
	require.NoError(t, db.Where("invoice_ref = ?", "INV-9").First(&record).Error)
	assert.Equal(t, invoicedomain.TotalsStatusComputed, record.Status)
	assert.Equal(t, "54", record.Subtotal.String())
	assert.Equal(t, "5.66", record.Level2Tax.String())
	// the rounded total is the sum of the rounded parts
	assert.Equal(t, "62.36", record.Total.String())
	assert.Equal(t, 1, record.LineCount)

	var lineRecords []invoicedomain.InvoiceLineRecord
	require.NoError(t, db.Where("totals_id = ?", record.ID).Find(&lineRecords).Error)
	require.Len(t, lineRecords, 1)
	assert.Equal(t, "Hosting", lineRecords[0].Description)
	assert.Equal(t, "Hosting", lineRecords[0].Metadata["package"])

	var taxRecords []invoicedomain.InvoiceTaxLineRecord
	require.NoError(t, db.Where("totals_id = ?", record.ID).Order("level").Find(&taxRecords).Error)
	require.Len(t, taxRecords, 2)
	assert.Equal(t, "CA/QC", taxRecords[1].Jurisdiction)
	assert.Equal(t, "5.66", taxRecords[1].Amount.String())

	// saving the same invoice again in the same run replaces the earlier rows
	require.NoError(t, repo.SaveResult(ctx, lineitemdomain.InvoiceResult{
		RunID: "run-1", Invoice: header, Totals: totals, Lines: lines,
	}))
	var count int64
	require.NoError(t, db.Model(&invoicedomain.InvoiceTotalsRecord{}).Where("invoice_ref = ?", "INV-9").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&invoicedomain.InvoiceLineRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&invoicedomain.InvoiceTaxLineRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSaveResult_RecordsFailure(t *testing.T) {
	db, repo, node := setupRepository(t)
	ctx := context.Background()
	header := lineitemdomain.InvoiceHeader{ID: node.Generate(), Ref: "INV-10", Currency: "USD"}

	cause := fmt.Errorf("%w: EUR->USD: %w", calcerr.ErrConversionUnavailable, errors.New("timeout"))
	require.NoError(t, repo.SaveResult(ctx, lineitemdomain.InvoiceResult{RunID: "run-2", Invoice: header, Err: cause}))

	var record invoicedomain.InvoiceTotalsRecord
	require.NoError(t, db.Where("invoice_ref = ?", "INV-10").First(&record).Error)
	assert.Equal(t, invoicedomain.TotalsStatusFailed, record.Status)
	assert.Equal(t, "conversion_unavailable", record.FailureKind)
	assert.Equal(t, "exchange rate unavailable, please retry or enter manually", record.FailureReason)
	assert.Contains(t, record.Metadata["error"], "timeout")
	assert.True(t, record.Total.IsZero())
}
