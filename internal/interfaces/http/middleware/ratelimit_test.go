package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/billsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRateLimiter(perMinute, burst int, now *time.Time) *RateLimiter {
	rl := NewRateLimiter(perMinute, burst)
	rl.now = func() time.Time { return *now }
	return rl
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	t.Run("allows burst then blocks", func(t *testing.T) {
		rl := newTestRateLimiter(60, 3, &now)

		for i := range 3 {
			assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
		}
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.Equal(t, 0, rl.Remaining("10.0.0.1"))
	})

	t.Run("clients are independent", func(t *testing.T) {
		rl := newTestRateLimiter(60, 1, &now)

		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"))
	})

	t.Run("refills over time", func(t *testing.T) {
		current := now
		rl := newTestRateLimiter(60, 1, &current)

		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))

		current = current.Add(time.Second)
		assert.True(t, rl.Allow("a"))
	})

	t.Run("unknown client has full burst", func(t *testing.T) {
		rl := newTestRateLimiter(60, 5, &now)
		assert.Equal(t, 5, rl.Remaining("nobody"))
	})

	t.Run("idle clients are evicted", func(t *testing.T) {
		current := now
		rl := newTestRateLimiter(60, 1, &current)

		rl.Allow("a")
		current = current.Add(11 * time.Minute)
		rl.Allow("b")

		rl.mu.Lock()
		defer rl.mu.Unlock()
		assert.NotContains(t, rl.clients, "a")
		assert.Contains(t, rl.clients, "b")
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	router := gin.New()
	router.Use(RateLimit(newTestRateLimiter(60, 2, &now)))
	router.POST("/jobs", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		last = w
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Contains(t, last.Body.String(), dto.ErrCodeRateLimited)
}

func TestRateLimitMiddleware_Headers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	router := gin.New()
	router.Use(RateLimit(newTestRateLimiter(60, 5, &now)))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
}
