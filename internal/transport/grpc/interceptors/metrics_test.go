package interceptors

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const healthService = "grpc.health.v1.Health"

func TestGRPCMetricsUnaryInterceptorRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/" + healthService + "/Check"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	labels := prometheus.Labels{"service": healthService, "method": "Check", "kind": "unary", "code": codes.OK.String()}

	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}

	if inflight := testutil.ToFloat64(metrics.inFlight.WithLabelValues(healthService)); inflight != 0 {
		t.Fatalf("expected in-flight gauge 0, got %f", inflight)
	}

	if samples := testutil.CollectAndCount(metrics.duration); samples == 0 {
		t.Fatalf("expected histogram to record observations")
	}
}

func TestGRPCMetricsUnaryInterceptorPropagatesErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/" + healthService + "/Check"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	labels := prometheus.Labels{"service": healthService, "method": "Check", "kind": "unary", "code": codes.NotFound.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1 for failed call, got %f", got)
	}
}

func TestGRPCMetricsStreamInterceptorRecordsOnCompletion(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.StreamServerInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/" + healthService + "/Watch", IsServerStream: true}

	handler := func(srv interface{}, stream grpc.ServerStream) error {
		if got := testutil.ToFloat64(metrics.inFlight.WithLabelValues(healthService)); got != 1 {
			t.Errorf("expected one in-flight stream, got %f", got)
		}
		return status.Error(codes.Canceled, "client went away")
	}

	if err := interceptor(nil, &mockServerStream{ctx: context.Background()}, info, handler); status.Code(err) != codes.Canceled {
		t.Fatalf("expected canceled, got %v", err)
	}

	labels := prometheus.Labels{"service": healthService, "method": "Watch", "kind": "stream", "code": codes.Canceled.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected stream counter 1, got %f", got)
	}
}

func TestNewGRPCMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	if first.requests != second.requests {
		t.Fatal("expected the existing counter to be reused")
	}
}

func TestSplitFullMethod(t *testing.T) {
	cases := map[string][2]string{
		"/grpc.health.v1.Health/Check": {"grpc.health.v1.Health", "Check"},
		"":                             {"unknown", "unknown"},
		"/broken":                      {"broken", "unknown"},
	}
	for in, want := range cases {
		service, method := splitFullMethod(in)
		if service != want[0] || method != want[1] {
			t.Fatalf("splitFullMethod(%q) = %q, %q", in, service, method)
		}
	}
}
