// Package invoicing orchestrates recurring invoice generation and the
// synchronisation of invoices, quotations and contacts with the accounting platform.
package invoicing

import (
	"context"

	"github.com/erp/billsync/internal/infrastructure/accounting"
)

// AccountingClient is the subset of the accounting platform client used by the services
type AccountingClient interface {
	CreateContact(ctx context.Context, payload accounting.ContactPayload) (*accounting.ResourceReference, error)
	SearchContacts(ctx context.Context, filter accounting.ContactFilter) (*accounting.ContactPage, error)
	GetContact(ctx context.Context, id string) (*accounting.Contact, error)

	CreateInvoice(ctx context.Context, payload accounting.VoucherPayload, finalize bool) (*accounting.ResourceReference, error)
	GetInvoice(ctx context.Context, id string) (*accounting.Voucher, error)
	GetInvoiceDocument(ctx context.Context, id string) ([]byte, error)

	CreateQuotation(ctx context.Context, payload accounting.VoucherPayload, finalize bool) (*accounting.ResourceReference, error)
	GetQuotation(ctx context.Context, id string) (*accounting.Voucher, error)
	GetQuotationDocument(ctx context.Context, id string) ([]byte, error)

	ListRecurringTemplates(ctx context.Context, page, size int) (*accounting.RecurringTemplatePage, error)
	GetRecurringTemplate(ctx context.Context, id string) (*accounting.RecurringTemplate, error)
	TestConnection(ctx context.Context) (*accounting.Profile, error)
}

var _ AccountingClient = (*accounting.Client)(nil)
