package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var invoicingModelLogger = zap.L().Named("invoicing.models")

// encodeLineItems serializes line items for a jsonb column
func encodeLineItems(items []invoicing.LineItem) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeLineItems parses a jsonb line item column; malformed data is logged and dropped
func decodeLineItems(raw string, owner uuid.UUID) []invoicing.LineItem {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []invoicing.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		invoicingModelLogger.Warn("failed to parse line_items JSON",
			zap.String("owner_id", owner.String()),
			zap.Error(err))
		return nil
	}
	return items
}

func aggregateRoot(m AggregateModel) shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: m.ToDomain(),
		Version:    m.Version,
	}
}

// ---------------------------------------------------------------------------
// RecurringSchedule
// ---------------------------------------------------------------------------

// RecurringScheduleModel is the persistence model for recurring billing schedules
type RecurringScheduleModel struct {
	AggregateModel
	Title             string           `gorm:"type:varchar(200);not null"`
	Description       string           `gorm:"type:text"`
	NetAmount         decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	TaxRate           *decimal.Decimal `gorm:"type:numeric(5,2)"`
	LineItemsJSON     string           `gorm:"column:line_items;type:jsonb;not null;default:'[]'"`
	Currency          string           `gorm:"type:varchar(3);not null;default:'EUR'"`
	ProjectID         *uuid.UUID       `gorm:"type:uuid;index"`
	IntervalType      string           `gorm:"type:varchar(20);not null"`
	IntervalValue     int              `gorm:"not null;default:1"`
	NextInvoiceDate   time.Time        `gorm:"type:date;not null;index:idx_recurring_schedules_due,priority:2"`
	EndDate           *time.Time       `gorm:"type:date"`
	IsActive          bool             `gorm:"not null;index:idx_recurring_schedules_due,priority:1"`
	AutoSend          bool             `gorm:"not null;default:false"`
	SendNotification  bool             `gorm:"not null;default:false"`
	InvoicesGenerated int              `gorm:"not null;default:0"`
	LastGeneratedAt   *time.Time
	CreatedBy         *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (RecurringScheduleModel) TableName() string {
	return "recurring_schedules"
}

// ToDomain converts the persistence model to a domain RecurringSchedule
func (m *RecurringScheduleModel) ToDomain() *invoicing.RecurringSchedule {
	return &invoicing.RecurringSchedule{
		BaseAggregateRoot: aggregateRoot(m.AggregateModel),
		Title:             m.Title,
		Description:       m.Description,
		NetAmount:         m.NetAmount,
		TaxRate:           m.TaxRate,
		LineItems:         decodeLineItems(m.LineItemsJSON, m.ID),
		Currency:          m.Currency,
		ProjectID:         m.ProjectID,
		IntervalType:      invoicing.IntervalType(m.IntervalType),
		IntervalValue:     m.IntervalValue,
		NextInvoiceDate:   m.NextInvoiceDate,
		EndDate:           m.EndDate,
		IsActive:          m.IsActive,
		AutoSend:          m.AutoSend,
		SendNotification:  m.SendNotification,
		InvoicesGenerated: m.InvoicesGenerated,
		LastGeneratedAt:   m.LastGeneratedAt,
		CreatedBy:         m.CreatedBy,
	}
}

// FromDomain populates the persistence model from a domain RecurringSchedule
func (m *RecurringScheduleModel) FromDomain(s *invoicing.RecurringSchedule) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Title = s.Title
	m.Description = s.Description
	m.NetAmount = s.NetAmount
	m.TaxRate = s.TaxRate
	m.LineItemsJSON = encodeLineItems(s.LineItems)
	m.Currency = s.Currency
	m.ProjectID = s.ProjectID
	m.IntervalType = string(s.IntervalType)
	m.IntervalValue = s.IntervalValue
	m.NextInvoiceDate = s.NextInvoiceDate
	m.EndDate = s.EndDate
	m.IsActive = s.IsActive
	m.AutoSend = s.AutoSend
	m.SendNotification = s.SendNotification
	m.InvoicesGenerated = s.InvoicesGenerated
	m.LastGeneratedAt = s.LastGeneratedAt
	m.CreatedBy = s.CreatedBy
}

// RecurringScheduleModelFromDomain creates a new persistence model from a domain schedule
func RecurringScheduleModelFromDomain(s *invoicing.RecurringSchedule) *RecurringScheduleModel {
	m := &RecurringScheduleModel{}
	m.FromDomain(s)
	return m
}

// ---------------------------------------------------------------------------
// Invoice
// ---------------------------------------------------------------------------

// InvoiceModel is the persistence model for invoices
type InvoiceModel struct {
	AggregateModel
	Number         string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title          string          `gorm:"type:varchar(200)"`
	Description    string          `gorm:"type:text"`
	LineItemsJSON  string          `gorm:"column:line_items;type:jsonb;not null;default:'[]'"`
	NetAmount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	Status         string          `gorm:"type:varchar(20);not null;index"`
	ProjectID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ScheduleID     *uuid.UUID      `gorm:"type:uuid;index"`
	IssueDate      time.Time       `gorm:"type:date;not null;index"`
	DueDate        time.Time       `gorm:"type:date;not null"`
	ExternalID     *string         `gorm:"type:varchar(100);index"`
	ExternalStatus *string         `gorm:"type:varchar(50)"`
	SyncedAt       *time.Time
	PaidAt         *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	return &invoicing.Invoice{
		BaseAggregateRoot: aggregateRoot(m.AggregateModel),
		Number:            m.Number,
		Title:             m.Title,
		Description:       m.Description,
		LineItems:         decodeLineItems(m.LineItemsJSON, m.ID),
		NetAmount:         m.NetAmount,
		TaxAmount:         m.TaxAmount,
		TotalAmount:       m.TotalAmount,
		Currency:          m.Currency,
		Status:            invoicing.InvoiceStatus(m.Status),
		ProjectID:         m.ProjectID,
		ScheduleID:        m.ScheduleID,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		ExternalID:        m.ExternalID,
		ExternalStatus:    m.ExternalStatus,
		SyncedAt:          m.SyncedAt,
		PaidAt:            m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(i *invoicing.Invoice) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.Number = i.Number
	m.Title = i.Title
	m.Description = i.Description
	m.LineItemsJSON = encodeLineItems(i.LineItems)
	m.NetAmount = i.NetAmount
	m.TaxAmount = i.TaxAmount
	m.TotalAmount = i.TotalAmount
	m.Currency = i.Currency
	m.Status = string(i.Status)
	m.ProjectID = i.ProjectID
	m.ScheduleID = i.ScheduleID
	m.IssueDate = i.IssueDate
	m.DueDate = i.DueDate
	m.ExternalID = i.ExternalID
	m.ExternalStatus = i.ExternalStatus
	m.SyncedAt = i.SyncedAt
	m.PaidAt = i.PaidAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain invoice
func InvoiceModelFromDomain(i *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(i)
	return m
}

// ---------------------------------------------------------------------------
// Quotation
// ---------------------------------------------------------------------------

// QuotationModel is the persistence model for quotations
type QuotationModel struct {
	AggregateModel
	Number         string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title          string          `gorm:"type:varchar(200)"`
	Description    string          `gorm:"type:text"`
	LineItemsJSON  string          `gorm:"column:line_items;type:jsonb;not null;default:'[]'"`
	NetAmount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	Status         string          `gorm:"type:varchar(20);not null;index"`
	ProjectID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	IssueDate      time.Time       `gorm:"type:date;not null"`
	ValidUntil     *time.Time      `gorm:"type:date"`
	ExternalID     *string         `gorm:"type:varchar(100);index"`
	ExternalStatus *string         `gorm:"type:varchar(50)"`
	SyncedAt       *time.Time
	AcceptedAt     *time.Time
	RejectedAt     *time.Time
}

// TableName returns the table name for GORM
func (QuotationModel) TableName() string {
	return "quotations"
}

// ToDomain converts the persistence model to a domain Quotation
func (m *QuotationModel) ToDomain() *invoicing.Quotation {
	return &invoicing.Quotation{
		BaseAggregateRoot: aggregateRoot(m.AggregateModel),
		Number:            m.Number,
		Title:             m.Title,
		Description:       m.Description,
		LineItems:         decodeLineItems(m.LineItemsJSON, m.ID),
		NetAmount:         m.NetAmount,
		TaxAmount:         m.TaxAmount,
		TotalAmount:       m.TotalAmount,
		Currency:          m.Currency,
		Status:            invoicing.QuotationStatus(m.Status),
		ProjectID:         m.ProjectID,
		IssueDate:         m.IssueDate,
		ValidUntil:        m.ValidUntil,
		ExternalID:        m.ExternalID,
		ExternalStatus:    m.ExternalStatus,
		SyncedAt:          m.SyncedAt,
		AcceptedAt:        m.AcceptedAt,
		RejectedAt:        m.RejectedAt,
	}
}

// FromDomain populates the persistence model from a domain Quotation
func (m *QuotationModel) FromDomain(q *invoicing.Quotation) {
	m.FromDomainAggregateRoot(q.BaseAggregateRoot)
	m.Number = q.Number
	m.Title = q.Title
	m.Description = q.Description
	m.LineItemsJSON = encodeLineItems(q.LineItems)
	m.NetAmount = q.NetAmount
	m.TaxAmount = q.TaxAmount
	m.TotalAmount = q.TotalAmount
	m.Currency = q.Currency
	m.Status = string(q.Status)
	m.ProjectID = q.ProjectID
	m.IssueDate = q.IssueDate
	m.ValidUntil = q.ValidUntil
	m.ExternalID = q.ExternalID
	m.ExternalStatus = q.ExternalStatus
	m.SyncedAt = q.SyncedAt
	m.AcceptedAt = q.AcceptedAt
	m.RejectedAt = q.RejectedAt
}

// QuotationModelFromDomain creates a new persistence model from a domain quotation
func QuotationModelFromDomain(q *invoicing.Quotation) *QuotationModel {
	m := &QuotationModel{}
	m.FromDomain(q)
	return m
}

// ---------------------------------------------------------------------------
// ContactMapping
// ---------------------------------------------------------------------------

// ContactMappingModel links a local party to a platform contact
type ContactMappingModel struct {
	BaseModel
	PartyType         string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_contact_mappings_party,priority:1"`
	PartyID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_contact_mappings_party,priority:2"`
	ExternalContactID string    `gorm:"type:varchar(100);not null;index"`
}

// TableName returns the table name for GORM
func (ContactMappingModel) TableName() string {
	return "contact_mappings"
}

// ToDomain converts the persistence model to a domain ContactMapping
func (m *ContactMappingModel) ToDomain() *invoicing.ContactMapping {
	return &invoicing.ContactMapping{
		BaseEntity:        m.BaseModel.ToDomain(),
		PartyType:         invoicing.PartyType(m.PartyType),
		PartyID:           m.PartyID,
		ExternalContactID: m.ExternalContactID,
	}
}

// FromDomain populates the persistence model from a domain ContactMapping
func (m *ContactMappingModel) FromDomain(c *invoicing.ContactMapping) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.PartyType = string(c.PartyType)
	m.PartyID = c.PartyID
	m.ExternalContactID = c.ExternalContactID
}

// ---------------------------------------------------------------------------
// SyncLog
// ---------------------------------------------------------------------------

// SyncLogModel is one append-only sync log row
type SyncLogModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntityType       string    `gorm:"type:varchar(20);not null;index:idx_sync_log_entity,priority:1"`
	EntityID         uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_log_entity,priority:2"`
	ExternalID       *string   `gorm:"type:varchar(100)"`
	Action           string    `gorm:"type:varchar(30);not null"`
	Outcome          string    `gorm:"type:varchar(20);not null;index"`
	StatusFrom       *string   `gorm:"type:varchar(20)"`
	StatusTo         *string   `gorm:"type:varchar(20)"`
	ErrorMessage     *string   `gorm:"type:text"`
	RequestSnapshot  *string   `gorm:"type:jsonb"`
	ResponseSnapshot *string   `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_log"
}

// ToDomain converts the persistence model to a domain SyncLogEntry
func (m *SyncLogModel) ToDomain() *invoicing.SyncLogEntry {
	entry := &invoicing.SyncLogEntry{
		ID:           m.ID,
		EntityType:   invoicing.SyncEntityType(m.EntityType),
		EntityID:     m.EntityID,
		ExternalID:   m.ExternalID,
		Action:       invoicing.SyncAction(m.Action),
		Outcome:      invoicing.SyncOutcome(m.Outcome),
		StatusFrom:   m.StatusFrom,
		StatusTo:     m.StatusTo,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
	}
	if m.RequestSnapshot != nil {
		entry.RequestSnapshot = json.RawMessage(*m.RequestSnapshot)
	}
	if m.ResponseSnapshot != nil {
		entry.ResponseSnapshot = json.RawMessage(*m.ResponseSnapshot)
	}
	return entry
}

// SyncLogModelFromDomain creates a persistence model from a domain SyncLogEntry
func SyncLogModelFromDomain(e *invoicing.SyncLogEntry) *SyncLogModel {
	return &SyncLogModel{
		ID:               e.ID,
		EntityType:       string(e.EntityType),
		EntityID:         e.EntityID,
		ExternalID:       e.ExternalID,
		Action:           string(e.Action),
		Outcome:          string(e.Outcome),
		StatusFrom:       e.StatusFrom,
		StatusTo:         e.StatusTo,
		ErrorMessage:     e.ErrorMessage,
		RequestSnapshot:  rawJSON(e.RequestSnapshot),
		ResponseSnapshot: rawJSON(e.ResponseSnapshot),
		CreatedAt:        e.CreatedAt,
	}
}

func rawJSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

// ---------------------------------------------------------------------------
// Generation history
// ---------------------------------------------------------------------------

// GenerationHistoryModel links a schedule to an invoice it produced
type GenerationHistoryModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ScheduleID    uuid.UUID `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	InvoiceNumber string    `gorm:"type:varchar(50);not null"`
	BillingDate   time.Time `gorm:"type:date;not null"`
	GeneratedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (GenerationHistoryModel) TableName() string {
	return "invoice_generation_history"
}

// ToDomain converts the persistence model to a domain GenerationRecord
func (m *GenerationHistoryModel) ToDomain() invoicing.GenerationRecord {
	return invoicing.GenerationRecord{
		ID:            m.ID,
		ScheduleID:    m.ScheduleID,
		InvoiceID:     m.InvoiceID,
		InvoiceNumber: m.InvoiceNumber,
		BillingDate:   m.BillingDate,
		GeneratedAt:   m.GeneratedAt,
	}
}

// GenerationHistoryModelFromDomain creates a persistence model from a domain GenerationRecord
func GenerationHistoryModelFromDomain(r invoicing.GenerationRecord) *GenerationHistoryModel {
	return &GenerationHistoryModel{
		ID:            r.ID,
		ScheduleID:    r.ScheduleID,
		InvoiceID:     r.InvoiceID,
		InvoiceNumber: r.InvoiceNumber,
		BillingDate:   r.BillingDate,
		GeneratedAt:   r.GeneratedAt,
	}
}

// ---------------------------------------------------------------------------
// Document sequences and project parties
// ---------------------------------------------------------------------------

// DocumentSequenceModel is the per-prefix, per-year counter behind document numbers
type DocumentSequenceModel struct {
	Prefix    string    `gorm:"type:varchar(20);primaryKey"`
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// ProjectPartyModel holds the billable parties and notification recipients of a project.
// Party columns are denormalized from the project/client subsystem.
type ProjectPartyModel struct {
	ProjectID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClientID          *uuid.UUID `gorm:"type:uuid"`
	ClientFirstName   string     `gorm:"type:varchar(100)"`
	ClientLastName    string     `gorm:"type:varchar(100)"`
	ClientEmail       string     `gorm:"type:varchar(200)"`
	OrganizationID    *uuid.UUID `gorm:"type:uuid"`
	OrganizationName  string     `gorm:"type:varchar(200)"`
	OrganizationEmail string     `gorm:"type:varchar(200)"`
	Street            string     `gorm:"type:varchar(200)"`
	Zip               string     `gorm:"type:varchar(20)"`
	City              string     `gorm:"type:varchar(100)"`
	CountryCode       string     `gorm:"type:varchar(2)"`
	// Recipients is a comma separated list of notification email addresses
	Recipients string    `gorm:"type:text"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProjectPartyModel) TableName() string {
	return "project_parties"
}

// ToDomain converts the persistence model to domain ProjectParties
func (m *ProjectPartyModel) ToDomain() *invoicing.ProjectParties {
	pp := &invoicing.ProjectParties{ProjectID: m.ProjectID}
	if m.OrganizationID != nil {
		pp.Organization = &invoicing.Party{
			Type:             invoicing.PartyTypeOrganization,
			ID:               *m.OrganizationID,
			OrganizationName: m.OrganizationName,
			Email:            m.OrganizationEmail,
			Street:           m.Street,
			Zip:              m.Zip,
			City:             m.City,
			CountryCode:      m.CountryCode,
		}
	}
	if m.ClientID != nil {
		pp.Client = &invoicing.Party{
			Type:        invoicing.PartyTypePerson,
			ID:          *m.ClientID,
			FirstName:   m.ClientFirstName,
			LastName:    m.ClientLastName,
			Email:       m.ClientEmail,
			Street:      m.Street,
			Zip:         m.Zip,
			City:        m.City,
			CountryCode: m.CountryCode,
		}
	}
	for _, r := range strings.Split(m.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			pp.Recipients = append(pp.Recipients, r)
		}
	}
	return pp
}
