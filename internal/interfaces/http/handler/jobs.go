package handler

import (
	"context"
	"net/http"

	appinvoicing "github.com/erp/billsync/internal/application/invoicing"
	"github.com/erp/billsync/internal/infrastructure/scheduler"
	"github.com/erp/billsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// RecurringInvoiceJob generates the invoices that are due
type RecurringInvoiceJob interface {
	Run(ctx context.Context) (appinvoicing.GenerationSummary, error)
}

// StatusSyncJob pulls voucher status changes from the accounting platform
type StatusSyncJob interface {
	Run(ctx context.Context) (appinvoicing.ReconciliationSummary, error)
}

// JobHandler exposes the two batch jobs to external time-based triggers.
// Runs go through the same scheduler.Runner as the in-process trigger, so
// a manual run never overlaps a scheduled one.
type JobHandler struct {
	BaseHandler
	generator  RecurringInvoiceJob
	reconciler StatusSyncJob
	runner     *scheduler.Runner
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(generator RecurringInvoiceJob, reconciler StatusSyncJob, runner *scheduler.Runner) *JobHandler {
	return &JobHandler{
		generator:  generator,
		reconciler: reconciler,
		runner:     runner,
	}
}

// GenerateRecurringInvoices runs the recurring invoice generator.
// POST /api/v1/jobs/recurring-invoices
func (h *JobHandler) GenerateRecurringInvoices(c *gin.Context) {
	var summary appinvoicing.GenerationSummary
	_, err := h.runner.Run(c.Request.Context(), scheduler.JobGenerate, scheduler.TriggerManual, func(ctx context.Context) error {
		var runErr error
		summary, runErr = h.generator.Run(ctx)
		return runErr
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewGenerationResponse(summary))
}

// SyncStatuses runs the status reconciliation job.
// POST /api/v1/jobs/status-sync
func (h *JobHandler) SyncStatuses(c *gin.Context) {
	var summary appinvoicing.ReconciliationSummary
	_, err := h.runner.Run(c.Request.Context(), scheduler.JobReconcile, scheduler.TriggerManual, func(ctx context.Context) error {
		var runErr error
		summary, runErr = h.reconciler.Run(ctx)
		return runErr
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReconciliationResponse(summary))
}

// ListRuns returns the current or last run of each job.
// GET /api/v1/jobs/runs
func (h *JobHandler) ListRuns(c *gin.Context) {
	h.Success(c, h.runner.Runs())
}
