package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/billsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentTermDays is the fixed due-date policy for generated invoices
const PaymentTermDays = 30

// ---------------------------------------------------------------------------
// InvoiceStatus
// ---------------------------------------------------------------------------

// InvoiceStatus is the local lifecycle state of an invoice
type InvoiceStatus string

const (
	// InvoiceStatusDraft is an invoice not yet issued
	InvoiceStatusDraft InvoiceStatus = "draft"
	// InvoiceStatusSent is an issued invoice awaiting payment
	InvoiceStatusSent InvoiceStatus = "sent"
	// InvoiceStatusPaid is a settled invoice
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusOverdue is an issued invoice past its due date
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	// InvoiceStatusCancelled is a voided invoice
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

// IsValid returns true if the status is known
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further transition is possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// CanTransitionTo reports whether target is directly reachable from s
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, next := range invoiceTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// NonTerminalInvoiceStatuses lists the statuses reconciliation polls
func NonTerminalInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue}
}

// ---------------------------------------------------------------------------
// Invoice
// ---------------------------------------------------------------------------

// Invoice is a local invoice record, optionally mirrored on the accounting platform
type Invoice struct {
	shared.BaseAggregateRoot
	Number      string
	Title       string
	Description string
	LineItems   []LineItem
	NetAmount   decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Currency    string
	Status      InvoiceStatus
	ProjectID   uuid.UUID
	ScheduleID  *uuid.UUID
	IssueDate   time.Time
	DueDate     time.Time

	ExternalID     *string
	ExternalStatus *string
	SyncedAt       *time.Time
	PaidAt         *time.Time
}

// NewInvoiceInput carries the data for a new draft invoice
type NewInvoiceInput struct {
	Number      string
	Title       string
	Description string
	LineItems   []LineItem
	Currency    string
	ProjectID   uuid.UUID
	ScheduleID  *uuid.UUID
	IssueDate   time.Time
	CreatedAt   time.Time
}

// NewInvoice creates a draft invoice with computed totals, due PaymentTermDays after issue
func NewInvoice(in NewInvoiceInput) (*Invoice, error) {
	if strings.TrimSpace(in.Number) == "" {
		return nil, fmt.Errorf("%w: invoice number is required", ErrValidation)
	}
	if in.ProjectID == uuid.Nil {
		return nil, ErrMissingProject
	}
	if err := validateLineItems(in.LineItems); err != nil {
		return nil, err
	}

	totals := CalculateTotals(in.LineItems)
	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(in.CreatedAt),
		Number:            in.Number,
		Title:             in.Title,
		Description:       in.Description,
		LineItems:         cloneLineItems(in.LineItems),
		NetAmount:         totals.Net,
		TaxAmount:         totals.Tax,
		TotalAmount:       totals.Total,
		Currency:          in.Currency,
		Status:            InvoiceStatusDraft,
		ProjectID:         in.ProjectID,
		ScheduleID:        in.ScheduleID,
		IssueDate:         in.IssueDate,
		DueDate:           in.IssueDate.AddDate(0, 0, PaymentTermDays),
	}
	return inv, nil
}

// IsPublished reports whether the invoice exists on the accounting platform
func (i *Invoice) IsPublished() bool {
	return i.ExternalID != nil && *i.ExternalID != ""
}

// TransitionTo moves the invoice to target if the state machine allows it
func (i *Invoice) TransitionTo(target InvoiceStatus, now time.Time) error {
	if !i.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: invoice %s -> %s", ErrInvalidTransition, i.Status, target)
	}
	i.Status = target
	if target == InvoiceStatusPaid {
		i.PaidAt = &now
	}
	i.UpdatedAt = now
	return nil
}

// MarkPublished records the platform identity after a successful create call.
// A finalized voucher moves the invoice to sent.
func (i *Invoice) MarkPublished(externalID, externalStatus string, finalized bool, now time.Time) error {
	if i.IsPublished() {
		return ErrAlreadyPublished
	}
	if finalized {
		if err := i.TransitionTo(InvoiceStatusSent, now); err != nil {
			return err
		}
	}
	i.ExternalID = &externalID
	i.ExternalStatus = &externalStatus
	i.SyncedAt = &now
	i.UpdatedAt = now
	return nil
}

// ApplyExternalStatus reconciles the local status with the platform's.
// A draft reported as paid or overdue passes through sent. It returns whether
// the local status changed.
func (i *Invoice) ApplyExternalStatus(target InvoiceStatus, externalStatus string, now time.Time) (bool, error) {
	i.ExternalStatus = &externalStatus
	i.SyncedAt = &now
	i.UpdatedAt = now

	if target == i.Status {
		return false, nil
	}
	if i.Status == InvoiceStatusDraft && (target == InvoiceStatusPaid || target == InvoiceStatusOverdue) {
		if err := i.TransitionTo(InvoiceStatusSent, now); err != nil {
			return false, err
		}
	}
	if err := i.TransitionTo(target, now); err != nil {
		return false, err
	}
	return true, nil
}
