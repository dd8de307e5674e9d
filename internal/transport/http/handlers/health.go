package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
)

const readinessTimeout = 3 * time.Second

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt   time.Time
	environment string
	version     string
	checks      map[string]ReadinessCheck
	order       []string
	logger      *zap.Logger
	now         func() time.Time
}

// HealthOption configures optional HealthHandler dependencies.
type HealthOption func(*HealthHandler)

// WithReadinessCheck registers a dependency probe reported under name by /ready.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if check == nil {
			return
		}
		if _, exists := h.checks[name]; !exists {
			h.order = append(h.order, name)
		}
		h.checks[name] = check
	}
}

// WithHealthLogger sets the logger used for failed probes.
func WithHealthLogger(log *zap.Logger) HealthOption {
	return func(h *HealthHandler) {
		if log != nil {
			h.logger = log
		}
	}
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(environment, version string, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		startedAt:   time.Now().UTC(),
		environment: environment,
		version:     version,
		checks:      make(map[string]ReadinessCheck),
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes binds /health, /ready and /live.
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Status)
	r.GET("/ready", h.Ready)
	r.GET("/live", h.Live)
}

// Status godoc
// @Summary Service health check
// @Description Returns uptime, environment and version of the service.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Status(c *gin.Context) {
	now := h.now()
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Timestamp:   now,
		Uptime:      now.Sub(h.startedAt).Seconds(),
		Environment: h.environment,
		Version:     h.version,
	})
}

// Ready godoc
// @Summary Readiness check
// @Description Probes the database, the cache and the message broker.
// @Tags Health
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} ReadyResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(h.order))}
	for _, name := range h.order {
		if err := h.checks[name](ctx); err != nil {
			logger.WithContext(ctx, h.logger).Warn("readiness probe failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = "unhealthy"
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}
	resp.Timestamp = h.now()
	c.JSON(status, resp)
}

// Live godoc
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
