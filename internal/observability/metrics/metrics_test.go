package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("provider", "csv"),
		attribute.String("invoice_id", "456"),
		attribute.String("outcome", "ok"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("provider"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRateFetch(context.Background(), "json", "ok")
	m.RecordConversion(context.Background(), "failed", "network_error")
	m.ObserveRunDuration(context.Background(), time.Second)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "invoicecalc-test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordRateCacheLookup(context.Background(), "hit")
	m.RecordInvoiceComputed(context.Background(), "ok", "")
}

func TestInvoiceCountersAreRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordInvoiceComputed(ctx, "success", "")
	m.RecordInvoiceComputed(ctx, "success", "")
	m.RecordInvoiceComputed(ctx, "failure", "conversion_unavailable")
	m.ObserveRunDuration(ctx, 1500*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	byName := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			byName[md.Name] = md
		}
	}

	computed, ok := byName["invoicecalc_invoices_computed_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range computed.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, computed.DataPoints, 2)

	runs, ok := byName["invoicecalc_invoice_run_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, 1.5, runs.DataPoints[0].Sum)
}

func TestNewProviderDisabledIsNoop(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, nil)
	require.NoError(t, err)
	_, isNoop := provider.(noop.MeterProvider)
	assert.True(t, isNoop)
}
