package invoicing

import (
	"context"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EntityResult is the reconciliation result of one invoice or quotation
type EntityResult struct {
	EntityType     invoicing.SyncEntityType
	EntityID       uuid.UUID
	Number         string
	ExternalID     string
	ExternalStatus string
	Outcome        invoicing.SyncOutcome
	StatusFrom     string
	StatusTo       string
	Error          string
}

// Changed reports whether the local status moved
func (r EntityResult) Changed() bool {
	return r.Outcome == invoicing.SyncOutcomeSuccess
}

// ReconciliationSummary is the immutable result of one reconciliation run
type ReconciliationSummary struct {
	results []EntityResult
}

// Results returns a copy of the per-entity results, invoices first
func (s ReconciliationSummary) Results() []EntityResult {
	return append([]EntityResult(nil), s.results...)
}

// InvoicesSynced counts invoices whose platform status was fetched and stored
func (s ReconciliationSummary) InvoicesSynced() int {
	return s.count(invoicing.SyncEntityInvoice, false)
}

// InvoicesChanged counts invoices whose local status changed
func (s ReconciliationSummary) InvoicesChanged() int {
	return s.count(invoicing.SyncEntityInvoice, true)
}

// QuotationsSynced counts quotations whose platform status was fetched and stored
func (s ReconciliationSummary) QuotationsSynced() int {
	return s.count(invoicing.SyncEntityQuotation, false)
}

// QuotationsChanged counts quotations whose local status changed
func (s ReconciliationSummary) QuotationsChanged() int {
	return s.count(invoicing.SyncEntityQuotation, true)
}

// FailedCount counts entities that could not be reconciled
func (s ReconciliationSummary) FailedCount() int {
	n := 0
	for _, r := range s.results {
		if r.Outcome == invoicing.SyncOutcomeFailed {
			n++
		}
	}
	return n
}

func (s ReconciliationSummary) count(entity invoicing.SyncEntityType, changedOnly bool) int {
	n := 0
	for _, r := range s.results {
		if r.EntityType != entity || r.Outcome == invoicing.SyncOutcomeFailed {
			continue
		}
		if changedOnly && !r.Changed() {
			continue
		}
		n++
	}
	return n
}

// StatusReconciler pulls voucher status from the accounting platform for every
// published, non-terminal invoice and quotation
type StatusReconciler struct {
	deps     Deps
	settings Settings
	logger   *zap.Logger
}

// NewStatusReconciler creates a new StatusReconciler
func NewStatusReconciler(deps Deps, settings Settings) *StatusReconciler {
	deps = deps.withDefaults()
	return &StatusReconciler{
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   deps.Logger.Named("status_reconciler"),
	}
}

// syncTarget adapts an invoice or a quotation to the reconciliation loop
type syncTarget struct {
	entity     invoicing.SyncEntityType
	id         uuid.UUID
	number     string
	externalID string
	status     func() string
	fetch      func(ctx context.Context, externalID string) (*accounting.Voucher, error)
	apply      func(externalStatus string) (bool, error)
	save       func(ctx context.Context) error
}

// Run reconciles invoices, then quotations. Entities are processed one at a
// time and a failure on one never stops the run. The returned error is set
// only when the pending entities could not be loaded or ctx ended.
func (r *StatusReconciler) Run(ctx context.Context) (ReconciliationSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "reconcile_status")
	defer span.End()

	started := r.deps.Clock.Now()
	if !r.settings.PlatformEnabled {
		r.logger.Info("Accounting platform disabled, skipping status reconciliation")
		return ReconciliationSummary{}, nil
	}

	targets, err := r.loadTargets(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Error("Failed to load entities pending sync", zap.Error(err))
		r.deps.Metrics.RecordJobRun(ctx, "reconcile", r.deps.Clock.Now().Sub(started).Seconds(), true)
		return ReconciliationSummary{}, err
	}

	r.logger.Info("Starting status reconciliation", zap.Int("pending", len(targets)))

	results := make([]EntityResult, 0, len(targets))
	var runErr error
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			runErr = err
			r.logger.Warn("Reconciliation run interrupted",
				zap.Int("remaining", len(targets)-i),
				zap.Error(err))
			break
		}
		results = append(results, r.reconcile(ctx, target))
	}

	summary := ReconciliationSummary{results: results}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProcessed, len(results),
		telemetry.SpanAttrFailed, summary.FailedCount(),
	)
	if runErr != nil {
		telemetry.RecordError(span, runErr)
	}
	r.deps.Metrics.RecordJobRun(ctx, "reconcile", r.deps.Clock.Now().Sub(started).Seconds(), runErr != nil)

	r.logger.Info("Status reconciliation completed",
		zap.Int("invoices_synced", summary.InvoicesSynced()),
		zap.Int("invoices_changed", summary.InvoicesChanged()),
		zap.Int("quotations_synced", summary.QuotationsSynced()),
		zap.Int("quotations_changed", summary.QuotationsChanged()),
		zap.Int("failed", summary.FailedCount()))

	return summary, runErr
}

func (r *StatusReconciler) loadTargets(ctx context.Context) ([]syncTarget, error) {
	invoices, err := r.deps.Invoices.FindPendingSync(ctx)
	if err != nil {
		return nil, err
	}
	quotations, err := r.deps.Quotations.FindPendingSync(ctx)
	if err != nil {
		return nil, err
	}

	targets := make([]syncTarget, 0, len(invoices)+len(quotations))
	for i := range invoices {
		targets = append(targets, r.invoiceTarget(&invoices[i]))
	}
	for i := range quotations {
		targets = append(targets, r.quotationTarget(&quotations[i]))
	}
	return targets, nil
}

func (r *StatusReconciler) invoiceTarget(inv *invoicing.Invoice) syncTarget {
	return syncTarget{
		entity:     invoicing.SyncEntityInvoice,
		id:         inv.ID,
		number:     inv.Number,
		externalID: *inv.ExternalID,
		status:     func() string { return string(inv.Status) },
		fetch:      r.deps.Client.GetInvoice,
		apply: func(externalStatus string) (bool, error) {
			return inv.ApplyExternalStatus(accounting.MapInvoiceStatus(externalStatus), externalStatus, r.deps.Clock.Now())
		},
		save: func(ctx context.Context) error { return r.deps.Invoices.Save(ctx, inv) },
	}
}

func (r *StatusReconciler) quotationTarget(q *invoicing.Quotation) syncTarget {
	return syncTarget{
		entity:     invoicing.SyncEntityQuotation,
		id:         q.ID,
		number:     q.Number,
		externalID: *q.ExternalID,
		status:     func() string { return string(q.Status) },
		fetch:      r.deps.Client.GetQuotation,
		apply: func(externalStatus string) (bool, error) {
			return q.ApplyExternalStatus(accounting.MapQuotationStatus(externalStatus), externalStatus, r.deps.Clock.Now())
		},
		save: func(ctx context.Context) error { return r.deps.Quotations.Save(ctx, q) },
	}
}

func (r *StatusReconciler) reconcile(ctx context.Context, t syncTarget) EntityResult {
	result := EntityResult{
		EntityType: t.entity,
		EntityID:   t.id,
		Number:     t.number,
		ExternalID: t.externalID,
		StatusFrom: t.status(),
	}
	fields := []zap.Field{
		zap.String("entity_type", string(t.entity)),
		zap.String("entity_id", t.id.String()),
		zap.String("external_id", t.externalID),
	}

	voucher, err := t.fetch(ctx, t.externalID)
	if err != nil {
		r.deps.Metrics.RecordSyncFailure(ctx, string(t.entity), string(invoicing.SyncActionStatusSync))
		r.logger.Warn("Fetching voucher status failed", append(fields, zap.Error(err))...)
		r.appendLog(ctx, invoicing.NewSyncLogEntry(t.entity, t.id, invoicing.SyncActionStatusSync, invoicing.SyncOutcomeFailed, r.deps.Clock.Now()).
			WithExternalID(&t.externalID).
			WithError(err).
			WithSnapshots(nil, apiErrorBody(err)))
		return r.fail(result, err)
	}
	result.ExternalStatus = voucher.VoucherStatus

	changed, err := t.apply(voucher.VoucherStatus)
	if err != nil {
		// The mapped status is not reachable; keep the local status
		r.logger.Warn("Platform status not applicable", append(fields,
			zap.String("external_status", voucher.VoucherStatus),
			zap.Error(err))...)
		r.appendLog(ctx, invoicing.NewSyncLogEntry(t.entity, t.id, invoicing.SyncActionStatusSync, invoicing.SyncOutcomeFailed, r.deps.Clock.Now()).
			WithExternalID(&t.externalID).
			WithTransition(result.StatusFrom, voucher.VoucherStatus).
			WithError(err).
			WithSnapshots(nil, voucher))
		return r.fail(result, err)
	}
	result.StatusTo = t.status()

	if err := t.save(ctx); err != nil {
		r.logger.Error("Saving reconciled status failed", append(fields, zap.Error(err))...)
		return r.fail(result, err)
	}

	now := r.deps.Clock.Now()
	if changed {
		result.Outcome = invoicing.SyncOutcomeSuccess
		r.deps.Metrics.RecordStatusChange(ctx, string(t.entity), result.StatusFrom, result.StatusTo)
		r.logger.Info("Status changed on platform", append(fields,
			zap.String("from", result.StatusFrom),
			zap.String("to", result.StatusTo))...)
		r.appendLog(ctx, invoicing.NewSyncLogEntry(t.entity, t.id, invoicing.SyncActionStatusSync, invoicing.SyncOutcomeSuccess, now).
			WithExternalID(&t.externalID).
			WithTransition(result.StatusFrom, result.StatusTo).
			WithSnapshots(nil, voucher))
		return result
	}

	result.Outcome = invoicing.SyncOutcomeNoop
	r.appendLog(ctx, invoicing.NewSyncLogEntry(t.entity, t.id, invoicing.SyncActionStatusSync, invoicing.SyncOutcomeNoop, now).
		WithExternalID(&t.externalID))
	return result
}

func (r *StatusReconciler) fail(result EntityResult, err error) EntityResult {
	result.Outcome = invoicing.SyncOutcomeFailed
	result.StatusTo = ""
	result.Error = err.Error()
	return result
}

func (r *StatusReconciler) appendLog(ctx context.Context, entry *invoicing.SyncLogEntry) {
	appendSyncLog(ctx, r.deps.SyncLog, r.logger, entry)
}
