package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	// ExportInterval defaults to 15s. A run's counters are flushed on
	// shutdown as well, so short runs are not lost.
	ExportInterval time.Duration
}

// Metrics exposes application-level instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	rateFetches       metric.Int64Counter
	rateCacheLookups  metric.Int64Counter
	conversions       metric.Int64Counter
	invoicesComputed  metric.Int64Counter
	invoiceRunSeconds metric.Float64Histogram
}

// NewProvider registers the global meter provider. When disabled the
// provider is a noop and nothing is exported.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("observability.metrics")

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", serviceName(cfg)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if err := provider.ForceFlush(ctx); err != nil {
					log.Warn("flush metrics", zap.Error(err))
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics exporter started",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
		zap.Duration("interval", interval),
	)
	return provider, nil
}

func serviceName(cfg Config) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "invoicecalc"
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg))

	rateFetches, err := meter.Int64Counter("invoicecalc_rate_fetches_total",
		metric.WithDescription("Exchange rate requests by provider and outcome."))
	if err != nil {
		return nil, err
	}
	rateCacheLookups, err := meter.Int64Counter("invoicecalc_rate_cache_lookups_total",
		metric.WithDescription("Rate cache lookups by outcome."))
	if err != nil {
		return nil, err
	}
	conversions, err := meter.Int64Counter("invoicecalc_conversions_total",
		metric.WithDescription("Currency conversions by outcome and failure reason."))
	if err != nil {
		return nil, err
	}
	invoicesComputed, err := meter.Int64Counter("invoicecalc_invoices_computed_total",
		metric.WithDescription("Invoices processed by billing runs."))
	if err != nil {
		return nil, err
	}
	invoiceRunSeconds, err := meter.Float64Histogram("invoicecalc_invoice_run_seconds",
		metric.WithDescription("Duration of billing runs."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		rateFetches:       rateFetches,
		rateCacheLookups:  rateCacheLookups,
		conversions:       conversions,
		invoicesComputed:  invoicesComputed,
		invoiceRunSeconds: invoiceRunSeconds,
	}, nil
}

// RecordRateFetch counts outbound quote requests by provider and outcome.
func (m *Metrics) RecordRateFetch(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.rateFetches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateCacheLookup counts cache hits, misses and stale entries.
func (m *Metrics) RecordRateCacheLookup(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.rateCacheLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConversion counts currency conversions by outcome.
func (m *Metrics) RecordConversion(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.conversions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceComputed counts invoices processed by a billing run.
func (m *Metrics) RecordInvoiceComputed(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.invoicesComputed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ObserveRunDuration records how long a billing run took.
func (m *Metrics) ObserveRunDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.invoiceRunSeconds.Record(ctx, d.Seconds())
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"provider": {},
	"outcome":  {},
	"reason":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
