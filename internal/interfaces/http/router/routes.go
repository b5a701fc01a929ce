package router

import (
	"github.com/erp/billsync/internal/interfaces/http/handler"
)

// Handlers are the endpoint groups served under /api/v1
type Handlers struct {
	Jobs       *handler.JobHandler
	Schedules  *handler.ScheduleHandler
	Accounting *handler.AccountingHandler
	System     *handler.SystemHandler
}

// Groups returns the billing route groups
func (h Handlers) Groups() []*DomainGroup {
	jobs := NewDomainGroup("jobs", "/jobs").
		POST("/recurring-invoices", h.Jobs.GenerateRecurringInvoices).
		POST("/status-sync", h.Jobs.SyncStatuses).
		GET("/runs", h.Jobs.ListRuns)

	schedules := NewDomainGroup("schedules", "/schedules").
		GET("/:id/history", h.Schedules.GetHistory)

	acct := NewDomainGroup("accounting", "/accounting").
		GET("/connection", h.Accounting.TestConnection).
		GET("/recurring-templates", h.Accounting.ListRecurringTemplates).
		GET("/recurring-templates/:id", h.Accounting.GetRecurringTemplate).
		GET("/contacts", h.Accounting.SearchContacts).
		GET("/contacts/:id", h.Accounting.GetContact).
		POST("/projects/:id/contact", h.Accounting.EnsureProjectContact)

	acct.Group("invoices", "/invoices").
		GET("/:id/document", h.Accounting.GetInvoiceDocument).
		GET("/:id/sync-log", h.Accounting.GetInvoiceSyncLog).
		POST("/:id/publish", h.Accounting.PublishInvoice)

	acct.Group("quotations", "/quotations").
		GET("/:id/document", h.Accounting.GetQuotationDocument).
		GET("/:id/sync-log", h.Accounting.GetQuotationSyncLog).
		POST("/:id/publish", h.Accounting.PublishQuotation)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	return []*DomainGroup{jobs, schedules, acct, system}
}

// RegisterAll adds every billing route group to r
func (h Handlers) RegisterAll(r *Router) *Router {
	for _, g := range h.Groups() {
		r.Register(g)
	}
	return r
}
