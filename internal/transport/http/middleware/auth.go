package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	appLogger "github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

// AccessTokenCookie is the cookie carrying the access token in cookie mode.
const AccessTokenCookie = "accessToken"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// Authenticator verifies an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.Claims, error)
}

// RoleAuthorizer checks a principal against a role set.
type RoleAuthorizer interface {
	Authorize(ctx context.Context, claims domain.Claims, required ...domain.Role) ([]domain.Role, error)
}

// Session authenticates the request. The accessToken cookie wins over an Authorization
// bearer header. On failure nothing is attached and the request is aborted with 401.
func Session(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token := extractAccessToken(c)
		if token == "" {
			rejectSession(c, log, usecase.ErrMissingToken, "No token provided")
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				rejectSession(c, log, err, "Token expired")
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				rejectSession(c, log, err, "Invalid token")
			default:
				appLogger.WithContext(c.Request.Context(), log).Error("authenticate request", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "Internal Server Error"))
			}
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}

func extractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}

	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func rejectSession(c *gin.Context, log *zap.Logger, err error, message string) {
	appLogger.WithContext(c.Request.Context(), log).Warn("unauthenticated request",
		zap.String("reason", err.Error()),
		zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		zap.String("user_agent", c.Request.UserAgent()),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, message))
}

// Authorize admits the principal when it holds any of roles. It must run after Session.
// Staff roles come from the store on every request.
func Authorize(authz RoleAuthorizer, log *zap.Logger, roles ...domain.Role) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "Unauthorized"))
			return
		}

		resolved, err := authz.Authorize(c.Request.Context(), claims, roles...)
		if err != nil {
			if errors.Is(err, usecase.ErrForbidden) {
				appLogger.WithContext(c.Request.Context(), log).Warn("access denied",
					zap.Int64("principal_id", claims.ID),
					zap.Strings("required", domain.RoleNames(roles)),
					zap.Strings("held", domain.RoleNames(resolved)),
				)
				c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "Access denied"))
				return
			}
			appLogger.WithContext(c.Request.Context(), log).Error("resolve roles", zap.Int64("principal_id", claims.ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "Internal Server Error"))
			return
		}

		c.Set(rolesKey, resolved)
		c.Next()
	}
}
