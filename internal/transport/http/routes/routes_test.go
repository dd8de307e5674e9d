package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/middleware"
	httproutes "github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/routes"
)

type checker struct{ err error }

func (c checker) HealthCheck(context.Context) error { return c.err }

func (c checker) Ping(context.Context) error { return c.err }

func newTestRouter(t *testing.T, env string, broker error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: reg})
	if err != nil {
		t.Fatalf("NewHTTPMetrics: %v", err)
	}

	return httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{App: config.AppSettings{Env: env, Version: "test"}},
		Logger:   zaptest.NewLogger(t),
		Metrics:  metrics,
		Gatherer: reg,
		Database: checker{},
		Cache:    checker{},
		Broker:   checker{err: broker},
	})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, "test", nil)

	w := get(r, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get(middleware.TraceIDHeader) == "" {
		t.Fatal("expected trace id header on every response")
	}
}

func TestReadyReflectsBroker(t *testing.T) {
	r := newTestRouter(t, "test", errors.New("rabbitmq: not connected"))

	if w := get(r, "/ready"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMetricsEndpointExposesHTTPCollectors(t *testing.T) {
	r := newTestRouter(t, "test", nil)
	get(r, "/live")

	w := get(r, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pgw_http_requests_total") {
		t.Fatalf("expected request counter in exposition:\n%s", w.Body.String())
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	r := newTestRouter(t, "test", nil)

	for _, path := range []string{"/api/merchant/me", "/api/transaction/merchant/transactions", "/api/merchant/users"} {
		if w := get(r, path); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestSwaggerOnlyOutsideProduction(t *testing.T) {
	if w := get(newTestRouter(t, "development", nil), "/swagger/index.html"); w.Code != http.StatusOK {
		t.Fatalf("expected swagger UI in development, got %d", w.Code)
	}
	if w := get(newTestRouter(t, "production", nil), "/swagger/index.html"); w.Code != http.StatusNotFound {
		t.Fatalf("expected swagger to be hidden in production, got %d", w.Code)
	}
}
