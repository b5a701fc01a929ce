package invoicing

import (
	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by the invoicing services.
// Metrics may be nil. Clock and Logger default to the system clock and a no-op logger.
type Deps struct {
	Client        AccountingClient
	Schedules     invoicing.ScheduleRepository
	Invoices      invoicing.InvoiceRepository
	Quotations    invoicing.QuotationRepository
	Mappings      invoicing.ContactMappingRepository
	Directory     invoicing.ProjectDirectory
	SyncLog       invoicing.SyncLogRepository
	History       invoicing.GenerationHistoryRepository
	Sequence      invoicing.DocumentSequence
	Notifications invoicing.NotificationQueue

	Clock   clock.Clock
	Metrics *telemetry.BillingMetrics
	Logger  *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}
