package invoicing

import (
	"context"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTemplatePageSize = 25
	maxTemplatePageSize     = 250
)

// Document is a voucher PDF fetched from the accounting platform
type Document struct {
	Filename string
	Content  []byte
}

// AccountingService exposes read-only platform data for local vouchers
type AccountingService struct {
	deps     Deps
	settings Settings
	logger   *zap.Logger
}

// NewAccountingService creates a new AccountingService
func NewAccountingService(deps Deps, settings Settings) *AccountingService {
	deps = deps.withDefaults()
	return &AccountingService{
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   deps.Logger.Named("accounting_service"),
	}
}

// InvoiceDocument fetches the PDF of a published invoice
func (s *AccountingService) InvoiceDocument(ctx context.Context, invoiceID uuid.UUID) (*Document, error) {
	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}
	inv, err := s.deps.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsPublished() {
		return nil, invoicing.ErrNotPublished
	}
	return s.fetchDocument(ctx, invoicing.SyncEntityInvoice, inv.ID, *inv.ExternalID, inv.Number, s.deps.Client.GetInvoiceDocument)
}

// QuotationDocument fetches the PDF of a published quotation
func (s *AccountingService) QuotationDocument(ctx context.Context, quotationID uuid.UUID) (*Document, error) {
	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}
	q, err := s.deps.Quotations.FindByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if !q.IsPublished() {
		return nil, invoicing.ErrNotPublished
	}
	return s.fetchDocument(ctx, invoicing.SyncEntityQuotation, q.ID, *q.ExternalID, q.Number, s.deps.Client.GetQuotationDocument)
}

func (s *AccountingService) fetchDocument(
	ctx context.Context,
	entity invoicing.SyncEntityType,
	id uuid.UUID,
	externalID, number string,
	fetch func(context.Context, string) ([]byte, error),
) (*Document, error) {
	content, err := fetch(ctx, externalID)
	now := s.deps.Clock.Now()
	if err != nil {
		s.deps.Metrics.RecordSyncFailure(ctx, string(entity), string(invoicing.SyncActionDocumentFetch))
		s.logger.Warn("Fetching voucher document failed",
			zap.String("entity_type", string(entity)),
			zap.String("entity_id", id.String()),
			zap.Error(err))
		appendSyncLog(ctx, s.deps.SyncLog, s.logger,
			invoicing.NewSyncLogEntry(entity, id, invoicing.SyncActionDocumentFetch, invoicing.SyncOutcomeFailed, now).
				WithExternalID(&externalID).
				WithError(err).
				WithSnapshots(nil, apiErrorBody(err)))
		return nil, err
	}

	appendSyncLog(ctx, s.deps.SyncLog, s.logger,
		invoicing.NewSyncLogEntry(entity, id, invoicing.SyncActionDocumentFetch, invoicing.SyncOutcomeSuccess, now).
			WithExternalID(&externalID))

	return &Document{Filename: number + ".pdf", Content: content}, nil
}

// ListRecurringTemplates mirrors the platform's recurring templates
func (s *AccountingService) ListRecurringTemplates(ctx context.Context, page, size int) (*accounting.RecurringTemplatePage, error) {
	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = defaultTemplatePageSize
	case size > maxTemplatePageSize:
		size = maxTemplatePageSize
	}
	return s.deps.Client.ListRecurringTemplates(ctx, page, size)
}

// GetRecurringTemplate fetches one recurring template
func (s *AccountingService) GetRecurringTemplate(ctx context.Context, id string) (*accounting.RecurringTemplate, error) {
	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}
	return s.deps.Client.GetRecurringTemplate(ctx, id)
}

// TestConnection checks the platform with the configured api key
func (s *AccountingService) TestConnection(ctx context.Context) (*accounting.Profile, error) {
	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}
	return s.deps.Client.TestConnection(ctx)
}

// SyncHistory returns the sync log of one entity, oldest first
func (s *AccountingService) SyncHistory(ctx context.Context, entity invoicing.SyncEntityType, id uuid.UUID) ([]invoicing.SyncLogEntry, error) {
	return s.deps.SyncLog.FindByEntity(ctx, entity, id)
}
