package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VoucherPublisher pushes local draft invoices and quotations to the accounting platform
type VoucherPublisher struct {
	deps     Deps
	settings Settings
	logger   *zap.Logger
}

// NewVoucherPublisher creates a new VoucherPublisher
func NewVoucherPublisher(deps Deps, settings Settings) *VoucherPublisher {
	deps = deps.withDefaults()
	return &VoucherPublisher{
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   deps.Logger.Named("voucher_publisher"),
	}
}

// PublishInvoice creates the invoice on the platform, issuing it when finalize is set
func (p *VoucherPublisher) PublishInvoice(ctx context.Context, invoiceID uuid.UUID, finalize bool) (*invoicing.Invoice, error) {
	inv, err := p.deps.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := p.publishInvoice(ctx, inv, finalize); err != nil {
		return inv, err
	}
	return inv, nil
}

// PublishQuotation creates the quotation on the platform, issuing it when finalize is set
func (p *VoucherPublisher) PublishQuotation(ctx context.Context, quotationID uuid.UUID, finalize bool) (*invoicing.Quotation, error) {
	q, err := p.deps.Quotations.FindByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "publish_quotation",
		telemetry.WithAttribute(telemetry.SpanAttrQuotationID, q.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrFinalize, finalize),
	)
	defer span.End()

	if err := p.checkPublishable(q.IsPublished()); err != nil {
		return q, err
	}
	contactID, err := p.resolveContact(ctx, q.ProjectID)
	if err != nil {
		telemetry.RecordError(span, err)
		return q, err
	}

	payload := accounting.QuotationPayload(q, contactID)
	action := publishAction(finalize)
	ref, err := p.deps.Client.CreateQuotation(ctx, payload, finalize)
	if err != nil {
		telemetry.RecordError(span, err)
		p.recordPublishFailure(ctx, invoicing.SyncEntityQuotation, q.ID, action, payload, err)
		return q, err
	}

	now := p.deps.Clock.Now()
	status := invoicing.QuotationStatusDraft
	if finalize {
		status = invoicing.QuotationStatusSent
	}
	if err := q.MarkPublished(ref.ID, accounting.MapToVoucherQuotationStatus(status), finalize, now); err != nil {
		return q, err
	}

	p.appendLog(ctx, invoicing.NewSyncLogEntry(invoicing.SyncEntityQuotation, q.ID, action, invoicing.SyncOutcomeSuccess, now).
		WithExternalID(&ref.ID).
		WithSnapshots(payload, ref))

	if err := p.deps.Quotations.Save(ctx, q); err != nil {
		p.logger.Error("Quotation published but local update failed",
			zap.String("quotation_id", q.ID.String()),
			zap.String("external_id", ref.ID),
			zap.Error(err))
		return q, err
	}
	return q, nil
}

// publishInvoice is shared with the recurring generator
func (p *VoucherPublisher) publishInvoice(ctx context.Context, inv *invoicing.Invoice, finalize bool) error {
	if err := p.checkPublishable(inv.IsPublished()); err != nil {
		return err
	}
	contactID, err := p.resolveContact(ctx, inv.ProjectID)
	if err != nil {
		return err
	}
	return p.sendInvoice(ctx, inv, contactID, finalize)
}

// sendInvoice creates inv on the platform for an already resolved contact
func (p *VoucherPublisher) sendInvoice(ctx context.Context, inv *invoicing.Invoice, contactID string, finalize bool) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "publish_invoice",
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, inv.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceNumber, inv.Number),
		telemetry.WithAttribute(telemetry.SpanAttrFinalize, finalize),
	)
	defer span.End()

	payload := accounting.InvoicePayload(inv, contactID)
	action := publishAction(finalize)
	ref, err := p.deps.Client.CreateInvoice(ctx, payload, finalize)
	if err != nil {
		telemetry.RecordError(span, err)
		p.recordPublishFailure(ctx, invoicing.SyncEntityInvoice, inv.ID, action, payload, err)
		return err
	}

	now := p.deps.Clock.Now()
	status := invoicing.InvoiceStatusDraft
	if finalize {
		status = invoicing.InvoiceStatusSent
	}
	if err := inv.MarkPublished(ref.ID, accounting.MapToVoucherInvoiceStatus(status), finalize, now); err != nil {
		return err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrExternalID, ref.ID)

	// The log entry carries the external id even if the local update below fails
	p.appendLog(ctx, invoicing.NewSyncLogEntry(invoicing.SyncEntityInvoice, inv.ID, action, invoicing.SyncOutcomeSuccess, now).
		WithExternalID(&ref.ID).
		WithSnapshots(payload, ref))

	if err := p.deps.Invoices.Save(ctx, inv); err != nil {
		p.logger.Error("Invoice published but local update failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("external_id", ref.ID),
			zap.Error(err))
		return err
	}
	return nil
}

func (p *VoucherPublisher) checkPublishable(published bool) error {
	if !p.settings.PlatformEnabled {
		return invoicing.ErrPlatformDisabled
	}
	if published {
		return invoicing.ErrAlreadyPublished
	}
	return nil
}

// resolveContact returns the platform contact of the project's organization,
// falling back to its client
func (p *VoucherPublisher) resolveContact(ctx context.Context, projectID uuid.UUID) (string, error) {
	parties, err := p.deps.Directory.FindByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", fmt.Errorf("%w: project %s has no parties", invoicing.ErrContactNotMapped, projectID)
		}
		return "", err
	}

	for _, party := range parties.Candidates() {
		mapping, err := p.deps.Mappings.FindByParty(ctx, party.Type, party.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return "", err
		}
		return mapping.ExternalContactID, nil
	}
	return "", fmt.Errorf("%w: project %s", invoicing.ErrContactNotMapped, projectID)
}

func (p *VoucherPublisher) recordPublishFailure(ctx context.Context, entity invoicing.SyncEntityType, id uuid.UUID, action invoicing.SyncAction, payload accounting.VoucherPayload, err error) {
	p.deps.Metrics.RecordSyncFailure(ctx, string(entity), string(action))
	p.logger.Warn("Publishing to accounting platform failed",
		zap.String("entity_type", string(entity)),
		zap.String("entity_id", id.String()),
		zap.Error(err))

	p.appendLog(ctx, invoicing.NewSyncLogEntry(entity, id, action, invoicing.SyncOutcomeFailed, p.deps.Clock.Now()).
		WithError(err).
		WithSnapshots(payload, apiErrorBody(err)))
}

// appendLog writes a sync log entry; failures only reach the operational log
func (p *VoucherPublisher) appendLog(ctx context.Context, entry *invoicing.SyncLogEntry) {
	appendSyncLog(ctx, p.deps.SyncLog, p.logger, entry)
}

func appendSyncLog(ctx context.Context, repo invoicing.SyncLogRepository, logger *zap.Logger, entry *invoicing.SyncLogEntry) {
	if err := repo.Append(ctx, entry); err != nil {
		logger.Error("Failed to append sync log entry",
			zap.String("entity_type", string(entry.EntityType)),
			zap.String("entity_id", entry.EntityID.String()),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func publishAction(finalize bool) invoicing.SyncAction {
	if finalize {
		return invoicing.SyncActionFinalize
	}
	return invoicing.SyncActionCreate
}

// apiErrorBody returns the raw platform response of a failed call, if any
func apiErrorBody(err error) []byte {
	var apiErr *accounting.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		return []byte(apiErr.Body)
	}
	return nil
}
