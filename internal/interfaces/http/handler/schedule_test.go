package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	records map[uuid.UUID][]invoicing.GenerationRecord
}

func (f fakeHistory) History(_ context.Context, scheduleID uuid.UUID) ([]invoicing.GenerationRecord, error) {
	records, ok := f.records[scheduleID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return records, nil
}

func TestScheduleHandler_GetHistory(t *testing.T) {
	scheduleID := uuid.New()
	history := fakeHistory{records: map[uuid.UUID][]invoicing.GenerationRecord{
		scheduleID: {{
			ID:            uuid.New(),
			ScheduleID:    scheduleID,
			InvoiceID:     uuid.New(),
			InvoiceNumber: "INV-2024-0003",
			BillingDate:   time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
			GeneratedAt:   time.Date(2024, time.March, 31, 6, 0, 0, 0, time.UTC),
		}},
	}}

	r := gin.New()
	r.GET("/api/v1/schedules/:id/history", NewScheduleHandler(history).GetHistory)

	t.Run("lists generated invoices", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/api/v1/schedules/"+scheduleID.String()+"/history", "")

		require.Equal(t, http.StatusOK, w.Code)
		records := decodeResponse(t, w).Data.([]any)
		require.Len(t, records, 1)
		record := records[0].(map[string]any)
		assert.Equal(t, "INV-2024-0003", record["invoice_number"])
		assert.Equal(t, "2024-03-31", record["billing_date"])
	})

	t.Run("unknown schedule", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/api/v1/schedules/"+uuid.NewString()+"/history", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/api/v1/schedules/42/history", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
