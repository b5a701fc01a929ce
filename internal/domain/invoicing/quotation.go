package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/billsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuotationStatus is the local lifecycle state of a quotation
type QuotationStatus string

const (
	// QuotationStatusDraft is a quotation not yet issued
	QuotationStatusDraft QuotationStatus = "draft"
	// QuotationStatusSent is an issued quotation awaiting the client's answer
	QuotationStatusSent QuotationStatus = "sent"
	// QuotationStatusAccepted is a quotation the client accepted
	QuotationStatusAccepted QuotationStatus = "accepted"
	// QuotationStatusRejected is a quotation the client declined
	QuotationStatusRejected QuotationStatus = "rejected"
	// QuotationStatusCancelled is a voided quotation
	QuotationStatusCancelled QuotationStatus = "cancelled"
)

var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft: {QuotationStatusSent, QuotationStatusCancelled},
	QuotationStatusSent:  {QuotationStatusAccepted, QuotationStatusRejected, QuotationStatusCancelled},
}

// IsValid returns true if the status is known
func (s QuotationStatus) IsValid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusAccepted,
		QuotationStatusRejected, QuotationStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further transition is possible
func (s QuotationStatus) IsTerminal() bool {
	switch s {
	case QuotationStatusAccepted, QuotationStatusRejected, QuotationStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether target is directly reachable from s
func (s QuotationStatus) CanTransitionTo(target QuotationStatus) bool {
	for _, next := range quotationTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// String returns the string representation of QuotationStatus
func (s QuotationStatus) String() string {
	return string(s)
}

// NonTerminalQuotationStatuses lists the statuses reconciliation polls
func NonTerminalQuotationStatuses() []QuotationStatus {
	return []QuotationStatus{QuotationStatusDraft, QuotationStatusSent}
}

// Quotation is a local offer document, optionally mirrored on the accounting platform
type Quotation struct {
	shared.BaseAggregateRoot
	Number      string
	Title       string
	Description string
	LineItems   []LineItem
	NetAmount   decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Currency    string
	Status      QuotationStatus
	ProjectID   uuid.UUID
	IssueDate   time.Time
	ValidUntil  *time.Time

	ExternalID     *string
	ExternalStatus *string
	SyncedAt       *time.Time
	AcceptedAt     *time.Time
	RejectedAt     *time.Time
}

// NewQuotation creates a draft quotation with computed totals
func NewQuotation(number, title string, projectID uuid.UUID, items []LineItem, currency string, issueDate, now time.Time) (*Quotation, error) {
	if strings.TrimSpace(number) == "" {
		return nil, fmt.Errorf("%w: quotation number is required", ErrValidation)
	}
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}
	if err := validateLineItems(items); err != nil {
		return nil, err
	}
	totals := CalculateTotals(items)
	return &Quotation{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(now),
		Number:            number,
		Title:             title,
		LineItems:         cloneLineItems(items),
		NetAmount:         totals.Net,
		TaxAmount:         totals.Tax,
		TotalAmount:       totals.Total,
		Currency:          currency,
		Status:            QuotationStatusDraft,
		ProjectID:         projectID,
		IssueDate:         issueDate,
	}, nil
}

// IsPublished reports whether the quotation exists on the accounting platform
func (q *Quotation) IsPublished() bool {
	return q.ExternalID != nil && *q.ExternalID != ""
}

// TransitionTo moves the quotation to target, stamping accepted/rejected times
func (q *Quotation) TransitionTo(target QuotationStatus, now time.Time) error {
	if !q.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: quotation %s -> %s", ErrInvalidTransition, q.Status, target)
	}
	q.Status = target
	switch target {
	case QuotationStatusAccepted:
		q.AcceptedAt = &now
	case QuotationStatusRejected:
		q.RejectedAt = &now
	}
	q.UpdatedAt = now
	return nil
}

// MarkPublished records the platform identity after a successful create call
func (q *Quotation) MarkPublished(externalID, externalStatus string, finalized bool, now time.Time) error {
	if q.IsPublished() {
		return ErrAlreadyPublished
	}
	if finalized {
		if err := q.TransitionTo(QuotationStatusSent, now); err != nil {
			return err
		}
	}
	q.ExternalID = &externalID
	q.ExternalStatus = &externalStatus
	q.SyncedAt = &now
	q.UpdatedAt = now
	return nil
}

// ApplyExternalStatus reconciles the local status with the platform's.
// A draft reported as accepted or rejected passes through sent.
func (q *Quotation) ApplyExternalStatus(target QuotationStatus, externalStatus string, now time.Time) (bool, error) {
	q.ExternalStatus = &externalStatus
	q.SyncedAt = &now
	q.UpdatedAt = now

	if target == q.Status {
		return false, nil
	}
	if q.Status == QuotationStatusDraft && (target == QuotationStatusAccepted || target == QuotationStatusRejected) {
		if err := q.TransitionTo(QuotationStatusSent, now); err != nil {
			return false, err
		}
	}
	if err := q.TransitionTo(target, now); err != nil {
		return false, err
	}
	return true, nil
}
