package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	appinvoicing "github.com/erp/billsync/internal/application/invoicing"
	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/erp/billsync/internal/infrastructure/notification"
	"github.com/erp/billsync/internal/infrastructure/persistence"
	"github.com/erp/billsync/internal/infrastructure/runguard"
	"github.com/erp/billsync/internal/infrastructure/scheduler"
	"github.com/erp/billsync/internal/interfaces/http/dto"
	"github.com/erp/billsync/internal/interfaces/http/handler"
	"github.com/erp/billsync/internal/interfaces/http/middleware"
	"github.com/erp/billsync/internal/interfaces/http/router"
	"github.com/erp/billsync/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const triggerSecret = "integration-trigger-secret"

type billingStack struct {
	engine  *gin.Engine
	queue   *notification.RedisQueue
	clock   *clock.Fake
	testDB  *TestDB
	runner  *scheduler.Runner
	history *persistence.GormGenerationHistoryRepository
}

func newBillingStack(t *testing.T) *billingStack {
	t.Helper()

	testDB := NewTestDB(t)
	redisClient := testutil.NewRedisClient(t)
	fakeClock := clock.NewFake(time.Date(2024, time.January, 31, 7, 0, 0, 0, time.UTC))
	queue := notification.NewRedisQueue(redisClient, "billsync:test:notifications")
	history := persistence.NewGormGenerationHistoryRepository(testDB.DB)

	deps := appinvoicing.Deps{
		Schedules:     persistence.NewGormScheduleRepository(testDB.DB),
		Invoices:      persistence.NewGormInvoiceRepository(testDB.DB),
		Quotations:    persistence.NewGormQuotationRepository(testDB.DB),
		Mappings:      persistence.NewGormContactMappingRepository(testDB.DB),
		Directory:     persistence.NewGormProjectDirectory(testDB.DB),
		SyncLog:       persistence.NewGormSyncLogRepository(testDB.DB),
		History:       history,
		Sequence:      persistence.NewGormDocumentSequence(testDB.DB),
		Notifications: queue,
		Clock:         fakeClock,
		Logger:        zap.NewNop(),
	}
	settings := appinvoicing.Settings{Location: time.UTC}

	generator := appinvoicing.NewRecurringInvoiceGenerator(deps, settings)
	reconciler := appinvoicing.NewStatusReconciler(deps, settings)
	accounting := appinvoicing.NewAccountingService(deps, settings)
	runner := scheduler.NewRunner(time.Minute, fakeClock, zap.NewNop())

	engine := gin.New()
	engine.Use(middleware.RequestID())
	router.Handlers{
		Jobs:       handler.NewJobHandler(generator, reconciler, runner),
		Schedules:  handler.NewScheduleHandler(generator),
		Accounting: handler.NewAccountingHandler(accounting, appinvoicing.NewVoucherPublisher(deps, settings), appinvoicing.NewContactSyncService(deps, settings)),
		System:     handler.NewSystemHandler("billsync", "test", nil),
	}.RegisterAll(router.NewRouter(engine, router.WithMiddleware(middleware.SharedSecret(triggerSecret)))).Setup()

	return &billingStack{
		engine:  engine,
		queue:   queue,
		clock:   fakeClock,
		testDB:  testDB,
		runner:  runner,
		history: history,
	}
}

func (s *billingStack) post(t *testing.T, path string) *testutil.TestContext {
	t.Helper()
	return testutil.TriggerJob(t, s.engine, path, triggerSecret)
}

// TestRecurringGeneration_Integration drives the generation endpoint against
// PostgreSQL and a Redis notification queue with the platform disabled
func TestRecurringGeneration_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newBillingStack(t)
	ctx := context.Background()
	schedules := persistence.NewGormScheduleRepository(stack.testDB.DB)

	projectID := stack.testDB.CreateProjectParties("ACME GmbH", "a@example.test,b@example.test")
	schedule := newSchedule(projectID, day(2024, time.January, 31))
	schedule.SendNotification = true
	require.NoError(t, schedules.Save(ctx, schedule))

	t.Run("rejects calls without the trigger secret", func(t *testing.T) {
		tc := testutil.Serve(t, stack.engine, http.MethodPost, "/api/v1/jobs/recurring-invoices", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, tc.ResponseCode())
		testutil.AssertErrorResponse(t, tc, "ERR_UNAUTHORIZED")
	})

	t.Run("generates the due invoice and queues notifications", func(t *testing.T) {
		tc := stack.post(t, "/api/v1/jobs/recurring-invoices")

		resp := testutil.DecodeJSON[dto.GenerationResponse](t, tc)
		assert.Equal(t, "Recurring invoice generation completed", resp.Message)
		assert.Equal(t, 1, resp.Processed)
		assert.Equal(t, 1, resp.SuccessCount)
		assert.Equal(t, 0, resp.FailCount)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "INV-2024-0001", resp.Results[0].InvoiceNumber)
		assert.Equal(t, 2, resp.Results[0].NotificationsQueued)

		testutil.RequireEventually(t, func() bool {
			n, err := stack.queue.Len(ctx)
			return err == nil && n == 2
		}, 5*time.Second, 50*time.Millisecond)

		advanced, err := schedules.FindByID(ctx, schedule.ID)
		require.NoError(t, err)
		assert.True(t, advanced.NextInvoiceDate.Equal(day(2024, time.February, 29)))
	})

	t.Run("a second run the same day generates nothing", func(t *testing.T) {
		tc := stack.post(t, "/api/v1/jobs/recurring-invoices")

		resp := testutil.JSONResponse(t, tc)
		assert.EqualValues(t, 0, resp["processed"])

		records, err := stack.history.FindBySchedule(ctx, schedule.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("history endpoint lists the generated invoice", func(t *testing.T) {
		tc := testutil.Serve(t, stack.engine, http.MethodGet, "/api/v1/schedules/"+schedule.ID.String()+"/history", nil, testutil.Bearer(triggerSecret))
		require.Equal(t, http.StatusOK, tc.ResponseCode())

		entries := testutil.DecodeData[[]struct {
			InvoiceNumber string `json:"invoice_number"`
			BillingDate   string `json:"billing_date"`
		}](t, tc)
		require.Len(t, entries, 1)
		assert.Equal(t, "INV-2024-0001", entries[0].InvoiceNumber)
		assert.Equal(t, "2024-01-31", entries[0].BillingDate)
	})

	t.Run("status sync without the platform is a no-op", func(t *testing.T) {
		tc := stack.post(t, "/api/v1/jobs/status-sync")

		resp := testutil.JSONResponse(t, tc)
		assert.Equal(t, "Status synchronization completed", resp["message"])
		assert.EqualValues(t, 0, resp["invoices_synced"])
	})

	t.Run("accounting endpoints report the disabled platform", func(t *testing.T) {
		tc := testutil.Serve(t, stack.engine, http.MethodGet, "/api/v1/accounting/connection", nil, testutil.Bearer(triggerSecret))
		testutil.AssertErrorResponse(t, tc, "ERR_PLATFORM_DISABLED")
	})

	t.Run("the next billing date generates the following invoice", func(t *testing.T) {
		stack.clock.Set(time.Date(2024, time.February, 29, 7, 0, 0, 0, time.UTC))

		tc := stack.post(t, "/api/v1/jobs/recurring-invoices")

		resp := testutil.DecodeJSON[dto.GenerationResponse](t, tc)
		assert.Equal(t, 1, resp.SuccessCount)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "INV-2024-0002", resp.Results[0].InvoiceNumber)

		records, err := stack.history.FindBySchedule(ctx, schedule.ID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.True(t, records[1].BillingDate.Equal(day(2024, time.February, 29)))
	})

	t.Run("runs endpoint reports the last run of each job", func(t *testing.T) {
		tc := testutil.Serve(t, stack.engine, http.MethodGet, "/api/v1/jobs/runs", nil, testutil.Bearer(triggerSecret))
		require.Equal(t, http.StatusOK, tc.ResponseCode())

		runs := testutil.DecodeData[[]scheduler.Run](t, tc)
		jobs := make([]string, 0, len(runs))
		for _, r := range runs {
			jobs = append(jobs, r.Job)
			assert.Equal(t, scheduler.TriggerManual, r.Trigger)
		}
		assert.ElementsMatch(t, []string{scheduler.JobGenerate, scheduler.JobReconcile}, jobs)
		assert.Len(t, stack.runner.Runs(), 2)
	})
}

// TestRedisRunGuard_Integration checks that two guards on one Redis share claims
func TestRedisRunGuard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testutil.NewRedisClient(t)
	ctx := context.Background()

	factory := runguard.NewFactory(client, runguard.WithInMemoryFallback(false))
	first, err := factory.Create(ctx)
	require.NoError(t, err)
	second := runguard.NewRedisGuard(client, "")

	ok, err := first.Claim(ctx, "generate:2024-01-31", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Claim(ctx, "generate:2024-01-31", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not claim the same slot")

	claimed, err := second.Claimed(ctx, "generate:2024-01-31")
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, first.Release(ctx, "generate:2024-01-31"))
	ok, err = second.Claim(ctx, "generate:2024-01-31", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestGeneratedInvoiceIsDraft_Integration checks the stored status of a
// generated invoice when nothing is pushed or notified
func TestGeneratedInvoiceIsDraft_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newBillingStack(t)
	ctx := context.Background()
	schedules := persistence.NewGormScheduleRepository(stack.testDB.DB)

	projectID := stack.testDB.CreateProjectParties("ACME GmbH", "")
	schedule := newSchedule(projectID, day(2024, time.January, 31))
	require.NoError(t, schedules.Save(ctx, schedule))

	tc := stack.post(t, "/api/v1/jobs/recurring-invoices")
	require.Equal(t, http.StatusOK, tc.ResponseCode())

	var status string
	require.NoError(t, stack.testDB.DB.Raw("SELECT status FROM invoices WHERE schedule_id = ?", schedule.ID).Scan(&status).Error)
	assert.Equal(t, string(invoicing.InvoiceStatusDraft), status)

	n, err := stack.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
