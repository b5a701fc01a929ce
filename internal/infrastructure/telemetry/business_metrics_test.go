package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestNewBillingMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, bm)
}

func TestNewBillingMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBillingMetrics: meter cannot be nil", err.Error())
}

func TestBillingMetrics_NilReceiver(t *testing.T) {
	var bm *telemetry.BillingMetrics
	ctx := context.Background()

	// Should not panic
	bm.RecordInvoiceGenerated(ctx, "EUR")
	bm.RecordScheduleDeactivated(ctx)
	bm.RecordSyncFailure(ctx, "invoice", "create")
	bm.RecordStatusChange(ctx, "invoice", "sent", "paid")
	bm.RecordJobRun(ctx, "generate", 1.5, false)
}

func TestBillingMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordInvoiceGenerated(ctx, "EUR")
	bm.RecordInvoiceGenerated(ctx, "EUR")
	bm.RecordSyncFailure(ctx, "invoice", "finalize")
	bm.RecordStatusChange(ctx, "invoice", "sent", "paid")
	bm.RecordJobRun(ctx, "reconcile", 0.2, false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			continue
		}
		for _, dp := range sum.DataPoints {
			sums[m.Name] += dp.Value
		}
	}

	assert.Equal(t, int64(2), sums["billsync.invoices.generated"])
	assert.Equal(t, int64(1), sums["billsync.sync.failures"])
	assert.Equal(t, int64(1), sums["billsync.status.changes"])
	assert.NotContains(t, sums, "billsync.schedules.deactivated")
}
