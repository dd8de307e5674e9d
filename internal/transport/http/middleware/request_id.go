package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
)

const (
	requestIDHeader    = "X-Request-ID"
	requestIDKey       = "request_id"
	maxRequestIDLength = 128
)

// RequestID propagates the caller's X-Request-ID or mints one. Oversized values are replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = uuid.NewString()
		}

		c.Set(requestIDKey, reqID)
		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID))

		c.Next()
	}
}

// GetRequestID returns the correlation id assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
