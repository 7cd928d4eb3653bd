// Package billingrun computes the totals of every invoice due in a run and
// stores the results.
package billingrun

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/clock"
	"github.com/smallbiznis/invoicecalc/internal/config"
	invoicedomain "github.com/smallbiznis/invoicecalc/internal/invoice/domain"
	"github.com/smallbiznis/invoicecalc/internal/invoice/format"
	lineitemdomain "github.com/smallbiznis/invoicecalc/internal/lineitem/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	obslogger "github.com/smallbiznis/invoicecalc/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicecalc/internal/observability/metrics"
	"github.com/smallbiznis/invoicecalc/internal/observability/tracing"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidConfig = errors.New("billingrun: missing dependency")

type Params struct {
	fx.In

	Log        *zap.Logger
	Pricing    *config.PricingConfigHolder
	Source     lineitemdomain.Source
	Sink       lineitemdomain.Sink
	Pricer     pricingdomain.Pricer
	Aggregator invoicedomain.Aggregator
	Proration  prorationdomain.Calculator
	Clock      clock.Clock
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Config     Config              `optional:"true"`
}

// Runner computes invoices. Each invoice is computed and stored on its own;
// a failing invoice is recorded as failed and does not stop the run.
type Runner struct {
	log        *zap.Logger
	cfg        Config
	pricing    *config.PricingConfigHolder
	source     lineitemdomain.Source
	sink       lineitemdomain.Sink
	pricer     pricingdomain.Pricer
	aggregator invoicedomain.Aggregator
	builder    *lineitemdomain.Builder
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
}

// Summary reports what a run did.
type Summary struct {
	RunID    string
	Invoices int
	Computed int
	Failed   int
	Duration time.Duration
}

func New(p Params) (*Runner, error) {
	if p.Log == nil || p.Pricing == nil || p.Source == nil || p.Sink == nil || p.Pricer == nil || p.Aggregator == nil || p.Proration == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Runner{
		log:        p.Log.Named("billingrun"),
		cfg:        p.Config.withDefaults(),
		pricing:    p.Pricing,
		source:     p.Source,
		sink:       p.Sink,
		pricer:     p.Pricer,
		aggregator: p.Aggregator,
		builder:    lineitemdomain.NewBuilder(p.Proration),
		clock:      p.Clock,
		metrics:    p.Metrics,
	}, nil
}

// run carries the values shared by every invoice of one run.
type run struct {
	id        string
	startedAt time.Time
	opts      pricingdomain.Options
	formatter *format.Formatter
}

// Run computes every invoice issued before now. The pricing policy is read
// once so that all invoices of a run use the same snapshot. The returned
// error reports invoices whose result could not be stored.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	policy := r.pricing.Get()
	current := run{
		id:        uuid.NewString(),
		startedAt: r.clock.Now(),
		opts:      pricingOptions(policy),
		formatter: format.New(formatOptions(policy)),
	}

	ctx = obslogger.ContextWithRun(ctx, current.id)
	ctx, span := tracing.Start(ctx, "billingrun.run", attribute.String("run_id", current.id))
	defer span.End()
	log := obslogger.WithContext(ctx, r.log)

	summary := Summary{RunID: current.id}
	defer func() {
		summary.Duration = r.clock.Now().Sub(current.startedAt)
		r.metrics.ObserveRunDuration(ctx, summary.Duration)
	}()

	headers, err := r.source.ListInvoices(ctx, current.startedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list invoices")
		return summary, fmt.Errorf("list invoices: %w", err)
	}
	summary.Invoices = len(headers)
	log.Info("billingrun.start", zap.Int("invoices", len(headers)), zap.Int("concurrency", r.cfg.Concurrency))

	var (
		mu        sync.Mutex
		storeErrs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for _, header := range headers {
		g.Go(func() error {
			result := r.computeInvoice(ctx, current, header)
			saveErr := r.save(ctx, result)

			mu.Lock()
			defer mu.Unlock()
			if result.Err != nil {
				summary.Failed++
			} else {
				summary.Computed++
			}
			if saveErr != nil {
				storeErrs = append(storeErrs, saveErr)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("billingrun.finish",
		zap.Int("invoices", summary.Invoices),
		zap.Int("computed", summary.Computed),
		zap.Int("failed", summary.Failed),
		zap.Int("store_errors", len(storeErrs)),
	)
	if len(storeErrs) > 0 {
		err := errors.Join(storeErrs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store results")
		return summary, err
	}
	return summary, nil
}

func (r *Runner) computeInvoice(ctx context.Context, current run, header lineitemdomain.InvoiceHeader) lineitemdomain.InvoiceResult {
	ctx = obslogger.ContextWithInvoice(ctx, header.Ref)
	ctx, span := tracing.Start(ctx, "billingrun.invoice", attribute.String("invoice_ref", header.Ref))
	defer span.End()

	result := lineitemdomain.InvoiceResult{
		RunID:   current.id,
		Invoice: header,
	}
	lines, totals, labels, err := r.price(ctx, current, header)
	result.ComputedAt = r.clock.Now()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, calcerr.Kind(err))
		obslogger.WithContext(ctx, r.log).Warn("billingrun.invoice.failed",
			zap.String("kind", calcerr.Kind(err)),
			zap.Error(err),
		)
		result.Err = err
		return result
	}

	result.Lines = lines
	result.Totals = totals
	result.TaxLabels = labels
	return result
}

func (r *Runner) price(ctx context.Context, current run, header lineitemdomain.InvoiceHeader) ([]lineitemdomain.DescribedLine, invoicedomain.InvoiceTotals, []string, error) {
	var totals invoicedomain.InvoiceTotals

	currency, err := money.ParseCurrency(header.Currency)
	if err != nil {
		return nil, totals, nil, fmt.Errorf("%w: %q", invoicedomain.ErrInvalidInvoiceCurrency, header.Currency)
	}

	rows, taxes, err := r.source.LoadLines(ctx, header)
	if err != nil {
		return nil, totals, nil, fmt.Errorf("load lines of %s: %w", header.Ref, err)
	}

	described := make([]lineitemdomain.DescribedLine, 0, len(rows))
	priced := make([]pricingdomain.PricedLine, 0, len(rows))
	for _, row := range rows {
		item, err := r.builder.Build(row, taxes)
		if err != nil {
			return nil, totals, nil, err
		}
		line, err := r.pricer.Price(ctx, item, currency, current.opts)
		if err != nil {
			return nil, totals, nil, err
		}
		label, discountLabel, err := describeLine(current.formatter, item, line)
		if err != nil {
			return nil, totals, nil, err
		}
		priced = append(priced, line)
		described = append(described, lineitemdomain.DescribedLine{
			Line:          line,
			Description:   label,
			DiscountLabel: discountLabel,
		})
	}

	totals, err = r.aggregator.Aggregate(currency, priced)
	if err != nil {
		return nil, totals, nil, err
	}
	labels, err := taxLabels(current.formatter, totals.TaxSummary)
	if err != nil {
		return nil, totals, nil, err
	}
	return described, totals, labels, nil
}

func (r *Runner) save(ctx context.Context, result lineitemdomain.InvoiceResult) error {
	outcome, reason := "success", ""
	if result.Err != nil {
		outcome, reason = "failure", calcerr.Kind(result.Err)
	}
	if err := r.sink.SaveResult(ctx, result); err != nil {
		r.metrics.RecordInvoiceComputed(ctx, "store_error", "storage")
		obslogger.WithContext(obslogger.ContextWithInvoice(ctx, result.Invoice.Ref), r.log).Error("billingrun.invoice.store_failed", zap.Error(err))
		return fmt.Errorf("store %s: %w", result.Invoice.Ref, err)
	}
	r.metrics.RecordInvoiceComputed(ctx, outcome, reason)
	return nil
}
