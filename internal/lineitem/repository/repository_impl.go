package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	invoicedomain "github.com/smallbiznis/invoicecalc/internal/invoice/domain"
	lineitemdomain "github.com/smallbiznis/invoicecalc/internal/lineitem/domain"
	"github.com/smallbiznis/invoicecalc/pkg/db"
	"github.com/smallbiznis/invoicecalc/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Param struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

// Repository reads raw invoice rows and stores computed totals.
type Repository struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	headers  repository.Repository[lineitemdomain.InvoiceHeader]
	lines    repository.Repository[lineitemdomain.RawLine]
	taxes    repository.Repository[lineitemdomain.RawTaxAssignment]
	totals   repository.Repository[invoicedomain.InvoiceTotalsRecord]
	itemRows repository.Repository[invoicedomain.InvoiceLineRecord]
	taxRows  repository.Repository[invoicedomain.InvoiceTaxLineRecord]
}

func New(p Param) *Repository {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{
		db:    p.DB,
		log:   log.Named("lineitem.repository"),
		genID: p.GenID,

		headers:  repository.ProvideStore[lineitemdomain.InvoiceHeader](p.DB),
		lines:    repository.ProvideStore[lineitemdomain.RawLine](p.DB),
		taxes:    repository.ProvideStore[lineitemdomain.RawTaxAssignment](p.DB),
		totals:   repository.ProvideStore[invoicedomain.InvoiceTotalsRecord](p.DB),
		itemRows: repository.ProvideStore[invoicedomain.InvoiceLineRecord](p.DB),
		taxRows:  repository.ProvideStore[invoicedomain.InvoiceTaxLineRecord](p.DB),
	}
}

// Models lists every table the repository touches, for migrations and tests.
func Models() []any {
	return []any{
		&lineitemdomain.InvoiceHeader{},
		&lineitemdomain.RawLine{},
		&lineitemdomain.RawTaxAssignment{},
		&invoicedomain.InvoiceTotalsRecord{},
		&invoicedomain.InvoiceLineRecord{},
		&invoicedomain.InvoiceTaxLineRecord{},
	}
}

func (r *Repository) ListInvoices(ctx context.Context, issuedBefore time.Time) ([]lineitemdomain.InvoiceHeader, error) {
	rows, err := r.headers.Find(ctx, nil,
		repository.Where("issue_date < ?", issuedBefore.UTC()),
		repository.OrderBy("issue_date, id"),
	)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]lineitemdomain.InvoiceHeader, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *Repository) LoadLines(ctx context.Context, invoice lineitemdomain.InvoiceHeader) ([]lineitemdomain.RawLine, []lineitemdomain.RawTaxAssignment, error) {
	lineRows, err := r.lines.Find(ctx, &lineitemdomain.RawLine{InvoiceID: invoice.ID}, repository.OrderBy("position, id"))
	if err != nil {
		return nil, nil, fmt.Errorf("load lines of %s: %w", invoice.Ref, err)
	}
	if len(lineRows) == 0 {
		return nil, nil, nil
	}

	lines := make([]lineitemdomain.RawLine, 0, len(lineRows))
	ids := make([]snowflake.ID, 0, len(lineRows))
	for _, row := range lineRows {
		lines = append(lines, *row)
		ids = append(ids, row.ID)
	}

	taxRows, err := r.taxes.Find(ctx, nil,
		repository.Where("line_id IN ?", ids),
		repository.OrderBy("line_id, level, id"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load taxes of %s: %w", invoice.Ref, err)
	}
	taxes := make([]lineitemdomain.RawTaxAssignment, 0, len(taxRows))
	for _, row := range taxRows {
		taxes = append(taxes, *row)
	}
	return lines, taxes, nil
}

// SaveResult replaces any earlier result of the same invoice in the same run.
// Totals are stored at presentation precision.
func (r *Repository) SaveResult(ctx context.Context, result lineitemdomain.InvoiceResult) error {
	computedAt := result.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.clearPrevious(ctx, tx, result); err != nil {
			return err
		}

		record := invoicedomain.InvoiceTotalsRecord{
			ID:         r.genID.Generate(),
			InvoiceRef: result.Invoice.Ref,
			RunID:      result.RunID,
			Currency:   result.Invoice.Currency,
			CreatedAt:  computedAt,
		}

		if result.Err != nil {
			record.Status = invoicedomain.TotalsStatusFailed
			record.FailureKind = calcerr.Kind(result.Err)
			record.FailureReason = calcerr.UserMessage(result.Err)
			record.Metadata = datatypes.JSONMap{"error": result.Err.Error()}
			return r.totals.WithTrx(tx).Create(ctx, &record)
		}

		totals := result.Totals.Rounded()
		record.Status = invoicedomain.TotalsStatusComputed
		record.Currency = totals.Currency.String()
		record.Subtotal = totals.Subtotal.Amount
		record.Level1Tax = totals.Level1Tax.Amount
		record.Level2Tax = totals.Level2Tax.Amount
		record.Total = totals.Total.Amount
		record.LineCount = totals.LineCount
		if err := r.totals.WithTrx(tx).Create(ctx, &record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return fmt.Errorf("totals of %s in run %s saved concurrently: %w", result.Invoice.Ref, result.RunID, err)
			}
			return fmt.Errorf("save totals of %s: %w", result.Invoice.Ref, err)
		}

		lineRecords := make([]*invoicedomain.InvoiceLineRecord, 0, len(result.Lines))
		for i, dl := range result.Lines {
			line := dl.Line
			lineRecords = append(lineRecords, &invoicedomain.InvoiceLineRecord{
				ID:          r.genID.Generate(),
				TotalsID:    record.ID,
				ItemRef:     line.ItemID,
				Position:    i,
				Kind:        string(line.Kind),
				Description: dl.Description,
				Currency:    line.Currency().String(),
				Taxable:     line.Taxable.Presentation().Amount,
				Level1Tax:   line.Level1Tax.Presentation().Amount,
				Level2Tax:   line.Level2Tax.Presentation().Amount,
				Metadata:    lineMetadata(line.Description.Params, dl.DiscountLabel),
				CreatedAt:   computedAt,
			})
		}
		if err := r.itemRows.WithTrx(tx).BatchCreate(ctx, lineRecords); err != nil {
			return fmt.Errorf("save lines of %s: %w", result.Invoice.Ref, err)
		}

		taxRecords := make([]*invoicedomain.InvoiceTaxLineRecord, 0, len(totals.TaxSummary))
		for i, e := range totals.TaxSummary {
			var label string
			if i < len(result.TaxLabels) {
				label = result.TaxLabels[i]
			}
			taxRecords = append(taxRecords, &invoicedomain.InvoiceTaxLineRecord{
				ID:           r.genID.Generate(),
				TotalsID:     record.ID,
				Label:        label,
				Level:        e.Level,
				Jurisdiction: e.Jurisdiction,
				TaxName:      e.Name,
				TaxRate:      e.Rate,
				Taxable:      e.Taxable.Amount,
				Amount:       e.Amount.Amount,
				CreatedAt:    computedAt,
			})
		}
		if err := r.taxRows.WithTrx(tx).BatchCreate(ctx, taxRecords); err != nil {
			return fmt.Errorf("save tax lines of %s: %w", result.Invoice.Ref, err)
		}

		r.log.Debug("invoice totals saved",
			zap.String("invoice_ref", result.Invoice.Ref),
			zap.String("run_id", result.RunID),
			zap.Int("lines", len(lineRecords)),
		)
		return nil
	})
}

func (r *Repository) clearPrevious(ctx context.Context, tx *gorm.DB, result lineitemdomain.InvoiceResult) error {
	previous, err := r.totals.WithTrx(tx).FindOne(ctx, &invoicedomain.InvoiceTotalsRecord{
		InvoiceRef: result.Invoice.Ref,
		RunID:      result.RunID,
	})
	if err != nil {
		return fmt.Errorf("find previous totals of %s: %w", result.Invoice.Ref, err)
	}
	if previous == nil {
		return nil
	}
	if err := r.itemRows.WithTrx(tx).DeleteWhere(ctx, "totals_id = ?", previous.ID); err != nil {
		return err
	}
	if err := r.taxRows.WithTrx(tx).DeleteWhere(ctx, "totals_id = ?", previous.ID); err != nil {
		return err
	}
	return r.totals.WithTrx(tx).DeleteWhere(ctx, "id = ?", previous.ID)
}

func lineMetadata(params map[string]string, discountLabel string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	if discountLabel != "" {
		out["discount_label"] = discountLabel
	}
	return out
}

var (
	_ lineitemdomain.Source = (*Repository)(nil)
	_ lineitemdomain.Sink   = (*Repository)(nil)
)
