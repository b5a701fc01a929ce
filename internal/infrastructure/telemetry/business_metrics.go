// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics tracks recurring invoice generation and accounting platform sync.
// A nil *BillingMetrics is valid and records nothing.
type BillingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	invoicesGenerated *Counter
	schedulesEnded    *Counter
	syncFailures      *Counter
	statusChanges     *Counter
	jobDuration       *Histogram
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBillingMetrics creates a new BillingMetrics instance.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error
	bm.invoicesGenerated, err = NewCounter(
		cfg.Meter,
		"billsync.invoices.generated",
		"Invoices created from recurring schedules",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	bm.schedulesEnded, err = NewCounter(
		cfg.Meter,
		"billsync.schedules.deactivated",
		"Recurring schedules deactivated after their end date",
		"{schedules}",
	)
	if err != nil {
		return nil, err
	}

	bm.syncFailures, err = NewCounter(
		cfg.Meter,
		"billsync.sync.failures",
		"Failed calls to the accounting platform",
		"{calls}",
	)
	if err != nil {
		return nil, err
	}

	bm.statusChanges, err = NewCounter(
		cfg.Meter,
		"billsync.status.changes",
		"Local document status changes applied from the accounting platform",
		"{changes}",
	)
	if err != nil {
		return nil, err
	}

	bm.jobDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "billsync.job.duration",
		Description: "Duration of generation and reconciliation runs",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordInvoiceGenerated counts one invoice created from a schedule.
func (bm *BillingMetrics) RecordInvoiceGenerated(ctx context.Context, currency string) {
	if bm == nil {
		return
	}
	bm.invoicesGenerated.Inc(ctx, AttrCurrency.String(currency))
}

// RecordScheduleDeactivated counts one schedule that reached its end date.
func (bm *BillingMetrics) RecordScheduleDeactivated(ctx context.Context) {
	if bm == nil {
		return
	}
	bm.schedulesEnded.Inc(ctx)
}

// RecordSyncFailure counts a failed platform call for the given entity and action.
func (bm *BillingMetrics) RecordSyncFailure(ctx context.Context, entityType, action string) {
	if bm == nil {
		return
	}
	bm.syncFailures.Inc(ctx,
		AttrEntityType.String(entityType),
		AttrSyncAction.String(action),
	)
}

// RecordStatusChange counts a status transition pulled from the platform.
func (bm *BillingMetrics) RecordStatusChange(ctx context.Context, entityType, from, to string) {
	if bm == nil {
		return
	}
	bm.statusChanges.Inc(ctx,
		AttrEntityType.String(entityType),
		AttrStatusFrom.String(from),
		AttrStatusTo.String(to),
	)
}

// RecordJobRun records how long a background job run took, in seconds.
func (bm *BillingMetrics) RecordJobRun(ctx context.Context, job string, seconds float64, failed bool) {
	if bm == nil {
		return
	}
	bm.jobDuration.Record(ctx, seconds,
		AttrJobName.String(job),
		attribute.Bool("failed", failed),
	)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
