package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"

	claimsKey         = "claims"
	rolesKey          = "roles"
	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID     string
	PrincipalID int64
	IP          string
	UserAgent   string
}

// EnrichContext adds trace ID and request context to each request
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.TraceIDKey{}, traceID))

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}

// SetClaims attaches verified claims to the request.
func SetClaims(c *gin.Context, claims domain.Claims) {
	c.Set(claimsKey, claims)
	GetRequestContext(c).PrincipalID = claims.ID
}

// ClaimsFrom returns the claims attached by Session.
func ClaimsFrom(c *gin.Context) (domain.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return domain.Claims{}, false
	}
	claims, ok := v.(domain.Claims)
	return claims, ok
}

// RolesFrom returns the roles resolved by Authorize, if it ran.
func RolesFrom(c *gin.Context) ([]domain.Role, bool) {
	v, ok := c.Get(rolesKey)
	if !ok {
		return nil, false
	}
	roles, ok := v.([]domain.Role)
	return roles, ok
}
