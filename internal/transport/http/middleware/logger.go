package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
)

// Logger writes one access log line per request. Client IPs are masked; 5xx responses and
// handler errors log at Error, 4xx at Warn.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		}
		if id := GetRequestContext(c).PrincipalID; id != 0 {
			fields = append(fields, zap.Int64("principal_id", id))
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		reqLog := appLogger.WithContext(c.Request.Context(), log)
		switch {
		case len(c.Errors) > 0 || status >= 500:
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}
			reqLog.Error("request failed", fields...)
		case status >= 400:
			reqLog.Warn("request rejected", fields...)
		default:
			reqLog.Info("request completed", fields...)
		}
	}
}
