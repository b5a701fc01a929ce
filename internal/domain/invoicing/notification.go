package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationKindInvoiceGenerated is sent when a recurring schedule produced an invoice
const NotificationKindInvoiceGenerated = "invoice_generated"

// Notification is one message to one recipient. Delivery is handled downstream.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	Kind          string    `json:"kind"`
	Recipient     string    `json:"recipient"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	ProjectID     uuid.UUID `json:"project_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// NotificationQueue accepts messages for asynchronous delivery
type NotificationQueue interface {
	Enqueue(ctx context.Context, notification Notification) error
}
