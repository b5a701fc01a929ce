package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FormatDocumentNumber renders PREFIX-YYYY-NNNN
func FormatDocumentNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// GenerationRecord links a recurring schedule to an invoice it produced
type GenerationRecord struct {
	ID            uuid.UUID
	ScheduleID    uuid.UUID
	InvoiceID     uuid.UUID
	InvoiceNumber string
	// BillingDate is the schedule's next_invoice_date the invoice was generated for
	BillingDate time.Time
	GeneratedAt time.Time
}

// NewGenerationRecord creates a history record for invoice generated from schedule
func NewGenerationRecord(schedule *RecurringSchedule, invoice *Invoice, now time.Time) GenerationRecord {
	return GenerationRecord{
		ID:            uuid.New(),
		ScheduleID:    schedule.ID,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		BillingDate:   schedule.NextInvoiceDate,
		GeneratedAt:   now,
	}
}
