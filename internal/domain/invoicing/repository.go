package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleRepository persists recurring billing schedules
type ScheduleRepository interface {
	// FindDue returns active schedules with next_invoice_date <= asOf, oldest first
	FindDue(ctx context.Context, asOf time.Time) ([]RecurringSchedule, error)

	// FindByID returns a schedule or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*RecurringSchedule, error)

	// Save creates or updates a schedule
	Save(ctx context.Context, schedule *RecurringSchedule) error
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindPendingSync returns non-terminal invoices that have an external id
	FindPendingSync(ctx context.Context) ([]Invoice, error)

	// Save updates an existing invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveGenerated atomically inserts invoice and record and updates the advanced schedule
	SaveGenerated(ctx context.Context, invoice *Invoice, schedule *RecurringSchedule, record GenerationRecord) error
}

// QuotationRepository persists quotations
type QuotationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Quotation, error)

	// FindPendingSync returns non-terminal quotations that have an external id
	FindPendingSync(ctx context.Context) ([]Quotation, error)

	// Save creates or updates a quotation
	Save(ctx context.Context, quotation *Quotation) error
}

// ContactMappingRepository persists party to platform contact mappings
type ContactMappingRepository interface {
	// FindByParty returns the mapping or shared.ErrNotFound
	FindByParty(ctx context.Context, partyType PartyType, partyID uuid.UUID) (*ContactMapping, error)

	// Save inserts or updates the mapping of a party
	Save(ctx context.Context, mapping *ContactMapping) error
}

// SyncLogRepository is the append-only sync log
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLogEntry) error
	FindByEntity(ctx context.Context, entityType SyncEntityType, entityID uuid.UUID) ([]SyncLogEntry, error)
}

// GenerationHistoryRepository reads schedule to invoice history
type GenerationHistoryRepository interface {
	FindBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]GenerationRecord, error)
}

// DocumentSequence allocates per-prefix, per-year document numbers
type DocumentSequence interface {
	// Next atomically increments and returns the counter for prefix and year, starting at 1
	Next(ctx context.Context, prefix string, year int) (int64, error)
}

// ProjectDirectory resolves the billable parties of a project
type ProjectDirectory interface {
	// FindByProject returns the parties of a project or shared.ErrNotFound
	FindByProject(ctx context.Context, projectID uuid.UUID) (*ProjectParties, error)
}
