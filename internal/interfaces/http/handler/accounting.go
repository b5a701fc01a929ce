package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	appinvoicing "github.com/erp/billsync/internal/application/invoicing"
	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/erp/billsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 25
	maxPageSize     = 250
)

// AccountingQueries are the read-only platform operations
type AccountingQueries interface {
	InvoiceDocument(ctx context.Context, invoiceID uuid.UUID) (*appinvoicing.Document, error)
	QuotationDocument(ctx context.Context, quotationID uuid.UUID) (*appinvoicing.Document, error)
	ListRecurringTemplates(ctx context.Context, page, size int) (*accounting.RecurringTemplatePage, error)
	GetRecurringTemplate(ctx context.Context, id string) (*accounting.RecurringTemplate, error)
	TestConnection(ctx context.Context) (*accounting.Profile, error)
	SyncHistory(ctx context.Context, entity invoicing.SyncEntityType, id uuid.UUID) ([]invoicing.SyncLogEntry, error)
}

// VoucherPublisher pushes local drafts to the platform
type VoucherPublisher interface {
	PublishInvoice(ctx context.Context, invoiceID uuid.UUID, finalize bool) (*invoicing.Invoice, error)
	PublishQuotation(ctx context.Context, quotationID uuid.UUID, finalize bool) (*invoicing.Quotation, error)
}

// ContactSync links local parties to platform contacts
type ContactSync interface {
	EnsureProjectContact(ctx context.Context, projectID uuid.UUID, force bool) (*invoicing.ContactMapping, error)
	SearchContacts(ctx context.Context, filter accounting.ContactFilter) (*accounting.ContactPage, error)
	GetContact(ctx context.Context, id string) (*accounting.Contact, error)
}

// AccountingHandler handles the accounting platform endpoints
type AccountingHandler struct {
	BaseHandler
	queries   AccountingQueries
	publisher VoucherPublisher
	contacts  ContactSync
}

// NewAccountingHandler creates a new AccountingHandler
func NewAccountingHandler(queries AccountingQueries, publisher VoucherPublisher, contacts ContactSync) *AccountingHandler {
	return &AccountingHandler{
		queries:   queries,
		publisher: publisher,
		contacts:  contacts,
	}
}

// TestConnection checks the platform with the configured API key.
// GET /api/v1/accounting/connection
func (h *AccountingHandler) TestConnection(c *gin.Context) {
	profile, err := h.queries.TestConnection(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, profile)
}

// ListRecurringTemplates mirrors the platform's recurring templates.
// GET /api/v1/accounting/recurring-templates?page=0&size=25
func (h *AccountingHandler) ListRecurringTemplates(c *gin.Context) {
	page, size, ok := h.pagination(c)
	if !ok {
		return
	}

	result, err := h.queries.ListRecurringTemplates(c.Request.Context(), page, size)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Content, int64(result.TotalElements), result.Number, size, result.TotalPages)
}

// GetRecurringTemplate returns one recurring template.
// GET /api/v1/accounting/recurring-templates/:id
func (h *AccountingHandler) GetRecurringTemplate(c *gin.Context) {
	tmpl, err := h.queries.GetRecurringTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tmpl)
}

// GetInvoiceDocument streams the platform PDF of an invoice.
// GET /api/v1/accounting/invoices/:id/document
func (h *AccountingHandler) GetInvoiceDocument(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.queries.InvoiceDocument(c.Request.Context(), id)
	h.writeDocument(c, doc, err)
}

// GetQuotationDocument streams the platform PDF of a quotation.
// GET /api/v1/accounting/quotations/:id/document
func (h *AccountingHandler) GetQuotationDocument(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.queries.QuotationDocument(c.Request.Context(), id)
	h.writeDocument(c, doc, err)
}

func (h *AccountingHandler) writeDocument(c *gin.Context, doc *appinvoicing.Document, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}

// PublishInvoice pushes a local draft invoice to the platform.
// POST /api/v1/accounting/invoices/:id/publish
func (h *AccountingHandler) PublishInvoice(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindPublishRequest(c)
	if !ok {
		return
	}

	inv, err := h.publisher.PublishInvoice(c.Request.Context(), id, req.Finalize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewInvoiceResponse(inv))
}

// PublishQuotation pushes a local draft quotation to the platform.
// POST /api/v1/accounting/quotations/:id/publish
func (h *AccountingHandler) PublishQuotation(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindPublishRequest(c)
	if !ok {
		return
	}

	q, err := h.publisher.PublishQuotation(c.Request.Context(), id, req.Finalize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewQuotationResponse(q))
}

// An empty body publishes without finalizing
func (h *AccountingHandler) bindPublishRequest(c *gin.Context) (dto.PublishRequest, bool) {
	var req dto.PublishRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return req, false
	}
	return req, true
}

// GetInvoiceSyncLog returns the sync log of an invoice.
// GET /api/v1/accounting/invoices/:id/sync-log
func (h *AccountingHandler) GetInvoiceSyncLog(c *gin.Context) {
	h.syncLog(c, invoicing.SyncEntityInvoice)
}

// GetQuotationSyncLog returns the sync log of a quotation.
// GET /api/v1/accounting/quotations/:id/sync-log
func (h *AccountingHandler) GetQuotationSyncLog(c *gin.Context) {
	h.syncLog(c, invoicing.SyncEntityQuotation)
}

func (h *AccountingHandler) syncLog(c *gin.Context, entity invoicing.SyncEntityType) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.queries.SyncHistory(c.Request.Context(), entity, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSyncLogEntryResponses(entries))
}

// EnsureProjectContact links the billable party of a project to a platform contact.
// POST /api/v1/accounting/projects/:id/contact
func (h *AccountingHandler) EnsureProjectContact(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.EnsureContactRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	mapping, err := h.contacts.EnsureProjectContact(c.Request.Context(), id, req.Force)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewContactMappingResponse(mapping))
}

// SearchContacts searches platform contacts by name or email.
// GET /api/v1/accounting/contacts?name=&email=&page=0&size=25
func (h *AccountingHandler) SearchContacts(c *gin.Context) {
	page, size, ok := h.pagination(c)
	if !ok {
		return
	}

	result, err := h.contacts.SearchContacts(c.Request.Context(), accounting.ContactFilter{
		Name:  c.Query("name"),
		Email: c.Query("email"),
		Page:  page,
		Size:  size,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Content, int64(result.TotalElements), result.Number, size, result.TotalPages)
}

// GetContact returns one platform contact.
// GET /api/v1/accounting/contacts/:id
func (h *AccountingHandler) GetContact(c *gin.Context) {
	contact, err := h.contacts.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// pagination reads zero-based page and size query parameters
func (h *AccountingHandler) pagination(c *gin.Context) (page, size int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		h.BadRequest(c, "page must be a non-negative integer")
		return 0, 0, false
	}
	size, err = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 || size > maxPageSize {
		h.BadRequest(c, fmt.Sprintf("size must be between 1 and %d", maxPageSize))
		return 0, 0, false
	}
	return page, size, true
}
