package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/erp/billsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// SharedSecret rejects requests whose "Authorization: Bearer <secret>"
// header does not match secret. An empty secret rejects every request.
func SharedSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, bearerPrefix)
		if !found || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"missing or invalid trigger secret",
				c.GetString(requestIDKey),
			))
			return
		}
		c.Next()
	}
}
