package handler

import (
	"context"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerationHistory lists the invoices a schedule produced
type GenerationHistory interface {
	History(ctx context.Context, scheduleID uuid.UUID) ([]invoicing.GenerationRecord, error)
}

// ScheduleHandler handles recurring schedule endpoints
type ScheduleHandler struct {
	BaseHandler
	history GenerationHistory
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(history GenerationHistory) *ScheduleHandler {
	return &ScheduleHandler{history: history}
}

// GetHistory returns the generation history of one schedule.
// GET /api/v1/schedules/:id/history
func (h *ScheduleHandler) GetHistory(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	records, err := h.history.History(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewGenerationRecordResponses(records))
}
