package invoicing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncEntityType names the kind of local record an external operation concerned
type SyncEntityType string

const (
	SyncEntityInvoice   SyncEntityType = "invoice"
	SyncEntityQuotation SyncEntityType = "quotation"
	SyncEntityContact   SyncEntityType = "contact"
)

// SyncAction names the external operation attempted
type SyncAction string

const (
	SyncActionCreate        SyncAction = "create"
	SyncActionFinalize      SyncAction = "finalize"
	SyncActionStatusSync    SyncAction = "status_sync"
	SyncActionDocumentFetch SyncAction = "document_fetch"
)

// SyncOutcome is the result of an external operation
type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeFailed  SyncOutcome = "failed"
	// SyncOutcomeNoop marks a status check that found nothing to change
	SyncOutcomeNoop SyncOutcome = "noop"
)

// SyncLogEntry is an append-only record of one external operation.
// Entries are never updated or deleted.
type SyncLogEntry struct {
	ID               uuid.UUID
	EntityType       SyncEntityType
	EntityID         uuid.UUID
	ExternalID       *string
	Action           SyncAction
	Outcome          SyncOutcome
	StatusFrom       *string
	StatusTo         *string
	ErrorMessage     *string
	RequestSnapshot  json.RawMessage
	ResponseSnapshot json.RawMessage
	CreatedAt        time.Time
}

// NewSyncLogEntry starts an entry for entityType/entityID
func NewSyncLogEntry(entityType SyncEntityType, entityID uuid.UUID, action SyncAction, outcome SyncOutcome, now time.Time) *SyncLogEntry {
	return &SyncLogEntry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    outcome,
		CreatedAt:  now,
	}
}

// WithExternalID sets the platform id when known
func (e *SyncLogEntry) WithExternalID(externalID *string) *SyncLogEntry {
	if externalID != nil && *externalID != "" {
		id := *externalID
		e.ExternalID = &id
	}
	return e
}

// WithTransition records a before/after status pair
func (e *SyncLogEntry) WithTransition(from, to string) *SyncLogEntry {
	e.StatusFrom = &from
	e.StatusTo = &to
	return e
}

// WithError records err's message
func (e *SyncLogEntry) WithError(err error) *SyncLogEntry {
	if err != nil {
		msg := err.Error()
		e.ErrorMessage = &msg
	}
	return e
}

// WithSnapshots stores JSON snapshots of the request and response payloads.
// Values that fail to marshal are dropped.
func (e *SyncLogEntry) WithSnapshots(request, response any) *SyncLogEntry {
	e.RequestSnapshot = snapshot(request)
	e.ResponseSnapshot = snapshot(response)
	return e
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.([]byte); ok {
		if json.Valid(raw) {
			return json.RawMessage(raw)
		}
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
