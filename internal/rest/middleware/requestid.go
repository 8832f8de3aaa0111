package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/resumecook/billing/internal/types"
)

// RequestIDMiddleware attaches a request ID to the request context, reusing
// the caller's X-Request-ID header when present.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(types.HeaderRequestID)
		if requestID == "" {
			requestID = types.GenerateUUIDWithPrefix(types.UUIDPrefixRequest)
		}

		ctx := context.WithValue(c.Request.Context(), types.CtxRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(types.HeaderRequestID, requestID)

		c.Next()
	}
}
