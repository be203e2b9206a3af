package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with a ULID unless the caller already
// supplied one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = common.NewULID()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}
