package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newDisabledMeterProvider(t *testing.T) *telemetry.MeterProvider {
	t.Helper()
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "billsync-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return mp
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp := newDisabledMeterProvider(t)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test-meter"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// Requires a local OTLP collector
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Second,
		ServiceName:       "billsync-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, mp.IsEnabled())
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	meter := newDisabledMeterProvider(t).Meter("test")

	counter, err := telemetry.NewCounter(meter, "billsync.test.total", "Test counter", "{calls}")
	require.NoError(t, err)

	// Should not panic
	counter.Inc(ctx)
	counter.Add(ctx, 5, telemetry.AttrEntityType.String("invoice"))
}

func TestHistogram(t *testing.T) {
	ctx := context.Background()
	meter := newDisabledMeterProvider(t).Meter("test")

	tests := []struct {
		name       string
		boundaries []float64
	}{
		{"default boundaries", nil},
		{"http boundaries", telemetry.HTTPDurationBuckets},
		{"job boundaries", telemetry.JobDurationBuckets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
				Name:        "billsync.test.duration",
				Description: "Test histogram",
				Unit:        "s",
				Boundaries:  tt.boundaries,
			})
			require.NoError(t, err)

			h.Record(ctx, 0.25, telemetry.AttrJobName.String("generate"))
			h.RecordDuration(ctx, 2*time.Second)
		})
	}
}

func TestCommonAttributes(t *testing.T) {
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "entity_type", string(telemetry.AttrEntityType))
	assert.Equal(t, "sync_action", string(telemetry.AttrSyncAction))
	assert.Equal(t, "job", string(telemetry.AttrJobName))
}

func TestJobDurationBuckets_Sorted(t *testing.T) {
	for i := 1; i < len(telemetry.JobDurationBuckets); i++ {
		assert.Greater(t, telemetry.JobDurationBuckets[i], telemetry.JobDurationBuckets[i-1])
	}
}
