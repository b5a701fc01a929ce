package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/billsync/internal/infrastructure/persistence"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDatabase struct {
	pingErr  error
	statsErr error
}

func (d stubDatabase) Ping() error { return d.pingErr }

func (d stubDatabase) Stats() (persistence.ConnectionStats, error) {
	return persistence.ConnectionStats{MaxOpenConnections: 10, OpenConnections: 3, InUse: 1, Idle: 2}, d.statsErr
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("billsync", "1.2.3", stubDatabase{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil)

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "billsync", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])

	pool := data["database"].(map[string]any)
	assert.EqualValues(t, 10, pool["max_open_connections"])
	assert.EqualValues(t, 1, pool["in_use"])
}

func TestSystemHandler_GetSystemInfo_StatsUnavailable(t *testing.T) {
	h := NewSystemHandler("billsync", "1.2.3", stubDatabase{statsErr: errors.New("closed")})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil)

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.NotContains(t, data, "database")
}

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   map[string]string
	}{
		{"database reachable", nil, http.StatusOK, map[string]string{"status": "healthy", "database": "ok"}},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("billsync", "dev", stubDatabase{pingErr: tt.pingErr})

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

			h.Health(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody["status"], body["status"])
			assert.Equal(t, tt.wantBody["database"], body["database"])
			assert.NotEmpty(t, body["time"])
		})
	}
}
