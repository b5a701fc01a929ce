package router

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/erp/billsync/internal/interfaces/http/handler"
	"github.com/erp/billsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("test", "/test").
		GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterWithMiddleware_GuardsAPIGroupOnly(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	NewRouter(engine, WithMiddleware(middleware.SharedSecret("trigger-secret-123"))).
		Register(NewDomainGroup("jobs", "/jobs").
			POST("/status-sync", func(c *gin.Context) { c.Status(http.StatusOK) })).
		Setup()

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"job without secret", http.MethodPost, "/api/v1/jobs/status-sync", "", http.StatusUnauthorized},
		{"job with wrong secret", http.MethodPost, "/api/v1/jobs/status-sync", "Bearer nope", http.StatusUnauthorized},
		{"job with secret", http.MethodPost, "/api/v1/jobs/status-sync", "Bearer trigger-secret-123", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDomainGroup(t *testing.T) {
	engine := gin.New()
	var order []string

	dg := NewDomainGroup("accounting", "/accounting").
		Use(func(c *gin.Context) { order = append(order, "group"); c.Next() }).
		GET("/connection", func(c *gin.Context) { order = append(order, "handler"); c.Status(http.StatusOK) })
	dg.Group("invoices", "/invoices").
		POST("/:id/publish", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	assert.Equal(t, "accounting", dg.Name())
	assert.Equal(t, "/accounting", dg.Prefix())

	dg.RegisterRoutes(engine.Group("/api/v1"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/accounting/connection", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"group", "handler"}, order)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/accounting/invoices/abc/publish", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Body.String())
}

func TestHandlers_RegisterAll(t *testing.T) {
	engine := gin.New()
	h := Handlers{
		Jobs:       handler.NewJobHandler(nil, nil, nil),
		Schedules:  handler.NewScheduleHandler(nil),
		Accounting: handler.NewAccountingHandler(nil, nil, nil),
		System:     handler.NewSystemHandler("billsync", "test", nil),
	}
	h.RegisterAll(NewRouter(engine)).Setup()

	var got []string
	for _, route := range engine.Routes() {
		got = append(got, route.Method+" "+route.Path)
	}
	sort.Strings(got)

	want := []string{
		"GET /api/v1/accounting/connection",
		"GET /api/v1/accounting/contacts",
		"GET /api/v1/accounting/contacts/:id",
		"GET /api/v1/accounting/invoices/:id/document",
		"GET /api/v1/accounting/invoices/:id/sync-log",
		"GET /api/v1/accounting/quotations/:id/document",
		"GET /api/v1/accounting/quotations/:id/sync-log",
		"GET /api/v1/accounting/recurring-templates",
		"GET /api/v1/accounting/recurring-templates/:id",
		"GET /api/v1/jobs/runs",
		"GET /api/v1/schedules/:id/history",
		"GET /api/v1/system/info",
		"POST /api/v1/accounting/invoices/:id/publish",
		"POST /api/v1/accounting/projects/:id/contact",
		"POST /api/v1/accounting/quotations/:id/publish",
		"POST /api/v1/jobs/recurring-invoices",
		"POST /api/v1/jobs/status-sync",
	}
	assert.Equal(t, want, got)
}
