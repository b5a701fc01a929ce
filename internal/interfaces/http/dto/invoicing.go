package dto

import (
	"encoding/json"
	"time"

	appinvoicing "github.com/erp/billsync/internal/application/invoicing"
	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Job trigger responses
// ---------------------------------------------------------------------------

// ScheduleResultResponse is the outcome of one schedule in a generation run
type ScheduleResultResponse struct {
	ScheduleID          uuid.UUID  `json:"schedule_id"`
	Title               string     `json:"title"`
	Outcome             string     `json:"outcome"`
	InvoiceID           *uuid.UUID `json:"invoice_id,omitempty"`
	InvoiceNumber       string     `json:"invoice_number,omitempty"`
	ExternalID          string     `json:"external_id,omitempty"`
	NotificationsQueued int        `json:"notifications_queued"`
	Reason              string     `json:"reason,omitempty"`
}

// GenerationResponse is the body returned by the recurring invoice trigger
type GenerationResponse struct {
	Message      string                   `json:"message"`
	Processed    int                      `json:"processed"`
	SuccessCount int                      `json:"success_count"`
	FailCount    int                      `json:"fail_count"`
	Results      []ScheduleResultResponse `json:"results"`
}

// NewGenerationResponse converts a generation summary
func NewGenerationResponse(summary appinvoicing.GenerationSummary) GenerationResponse {
	outcomes := summary.Outcomes()
	results := make([]ScheduleResultResponse, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, ScheduleResultResponse{
			ScheduleID:          o.ScheduleID,
			Title:               o.Title,
			Outcome:             string(o.Kind),
			InvoiceID:           o.InvoiceID,
			InvoiceNumber:       o.InvoiceNumber,
			ExternalID:          o.ExternalID,
			NotificationsQueued: o.NotificationsQueued,
			Reason:              o.Reason,
		})
	}
	return GenerationResponse{
		Message:      "Recurring invoice generation completed",
		Processed:    summary.Processed(),
		SuccessCount: summary.SuccessCount(),
		FailCount:    summary.FailCount(),
		Results:      results,
	}
}

// EntityResultResponse is the outcome of one voucher in a reconciliation run
type EntityResultResponse struct {
	EntityType     string    `json:"entity_type"`
	EntityID       uuid.UUID `json:"entity_id"`
	Number         string    `json:"number"`
	ExternalID     string    `json:"external_id"`
	ExternalStatus string    `json:"external_status,omitempty"`
	Outcome        string    `json:"outcome"`
	StatusFrom     string    `json:"status_from,omitempty"`
	StatusTo       string    `json:"status_to,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// ReconciliationResponse is the body returned by the status sync trigger
type ReconciliationResponse struct {
	Message           string                 `json:"message"`
	InvoicesSynced    int                    `json:"invoices_synced"`
	InvoicesChanged   int                    `json:"invoices_changed"`
	QuotationsSynced  int                    `json:"quotations_synced"`
	QuotationsChanged int                    `json:"quotations_changed"`
	Results           []EntityResultResponse `json:"results"`
}

// NewReconciliationResponse converts a reconciliation summary
func NewReconciliationResponse(summary appinvoicing.ReconciliationSummary) ReconciliationResponse {
	entities := summary.Results()
	results := make([]EntityResultResponse, 0, len(entities))
	for _, r := range entities {
		results = append(results, EntityResultResponse{
			EntityType:     string(r.EntityType),
			EntityID:       r.EntityID,
			Number:         r.Number,
			ExternalID:     r.ExternalID,
			ExternalStatus: r.ExternalStatus,
			Outcome:        string(r.Outcome),
			StatusFrom:     r.StatusFrom,
			StatusTo:       r.StatusTo,
			Error:          r.Error,
		})
	}
	return ReconciliationResponse{
		Message:           "Status synchronization completed",
		InvoicesSynced:    summary.InvoicesSynced(),
		InvoicesChanged:   summary.InvoicesChanged(),
		QuotationsSynced:  summary.QuotationsSynced(),
		QuotationsChanged: summary.QuotationsChanged(),
		Results:           results,
	}
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// SyncLogEntryResponse is one sync log entry
type SyncLogEntryResponse struct {
	ID               uuid.UUID       `json:"id"`
	EntityType       string          `json:"entity_type"`
	EntityID         uuid.UUID       `json:"entity_id"`
	ExternalID       *string         `json:"external_id,omitempty"`
	Action           string          `json:"action"`
	Outcome          string          `json:"outcome"`
	StatusFrom       *string         `json:"status_from,omitempty"`
	StatusTo         *string         `json:"status_to,omitempty"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	RequestSnapshot  json.RawMessage `json:"request_snapshot,omitempty"`
	ResponseSnapshot json.RawMessage `json:"response_snapshot,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewSyncLogEntryResponses converts sync log entries
func NewSyncLogEntryResponses(entries []invoicing.SyncLogEntry) []SyncLogEntryResponse {
	out := make([]SyncLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, SyncLogEntryResponse{
			ID:               e.ID,
			EntityType:       string(e.EntityType),
			EntityID:         e.EntityID,
			ExternalID:       e.ExternalID,
			Action:           string(e.Action),
			Outcome:          string(e.Outcome),
			StatusFrom:       e.StatusFrom,
			StatusTo:         e.StatusTo,
			ErrorMessage:     e.ErrorMessage,
			RequestSnapshot:  e.RequestSnapshot,
			ResponseSnapshot: e.ResponseSnapshot,
			CreatedAt:        e.CreatedAt,
		})
	}
	return out
}

// GenerationRecordResponse is one invoice produced by a schedule
type GenerationRecordResponse struct {
	ID            uuid.UUID `json:"id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	BillingDate   string    `json:"billing_date"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewGenerationRecordResponses converts generation history records
func NewGenerationRecordResponses(records []invoicing.GenerationRecord) []GenerationRecordResponse {
	out := make([]GenerationRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, GenerationRecordResponse{
			ID:            r.ID,
			InvoiceID:     r.InvoiceID,
			InvoiceNumber: r.InvoiceNumber,
			BillingDate:   r.BillingDate.Format(time.DateOnly),
			GeneratedAt:   r.GeneratedAt,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Publishing and contacts
// ---------------------------------------------------------------------------

// PublishRequest asks for a voucher to be created on the accounting platform
type PublishRequest struct {
	Finalize bool `json:"finalize"`
}

// EnsureContactRequest asks for the project's billable party to be linked
type EnsureContactRequest struct {
	Force bool `json:"force"`
}

// VoucherResponse is the local view of an invoice or quotation after publishing
type VoucherResponse struct {
	ID             uuid.UUID       `json:"id"`
	Number         string          `json:"number"`
	Title          string          `json:"title"`
	Status         string          `json:"status"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	ExternalID     *string         `json:"external_id,omitempty"`
	ExternalStatus *string         `json:"external_status,omitempty"`
	SyncedAt       *time.Time      `json:"synced_at,omitempty"`
}

// NewInvoiceResponse converts an invoice
func NewInvoiceResponse(inv *invoicing.Invoice) VoucherResponse {
	return VoucherResponse{
		ID:             inv.ID,
		Number:         inv.Number,
		Title:          inv.Title,
		Status:         string(inv.Status),
		NetAmount:      inv.NetAmount,
		TaxAmount:      inv.TaxAmount,
		TotalAmount:    inv.TotalAmount,
		Currency:       inv.Currency,
		ExternalID:     inv.ExternalID,
		ExternalStatus: inv.ExternalStatus,
		SyncedAt:       inv.SyncedAt,
	}
}

// NewQuotationResponse converts a quotation
func NewQuotationResponse(q *invoicing.Quotation) VoucherResponse {
	return VoucherResponse{
		ID:             q.ID,
		Number:         q.Number,
		Title:          q.Title,
		Status:         string(q.Status),
		NetAmount:      q.NetAmount,
		TaxAmount:      q.TaxAmount,
		TotalAmount:    q.TotalAmount,
		Currency:       q.Currency,
		ExternalID:     q.ExternalID,
		ExternalStatus: q.ExternalStatus,
		SyncedAt:       q.SyncedAt,
	}
}

// ContactMappingResponse is a party's link to a platform contact
type ContactMappingResponse struct {
	ID                uuid.UUID `json:"id"`
	PartyType         string    `json:"party_type"`
	PartyID           uuid.UUID `json:"party_id"`
	ExternalContactID string    `json:"external_contact_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewContactMappingResponse converts a contact mapping
func NewContactMappingResponse(m *invoicing.ContactMapping) ContactMappingResponse {
	return ContactMappingResponse{
		ID:                m.ID,
		PartyType:         string(m.PartyType),
		PartyID:           m.PartyID,
		ExternalContactID: m.ExternalContactID,
		UpdatedAt:         m.UpdatedAt,
	}
}
