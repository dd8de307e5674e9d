package interceptors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// GRPCMetricsOptions controls construction of gRPC metrics collectors.
type GRPCMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// GRPCMetrics wraps Prometheus collectors for gRPC instrumentation.
type GRPCMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewGRPCMetrics constructs collectors and registers them with the supplied registerer.
func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "pgw"
	}

	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "grpc"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests, err := registerCollector(reg, "requests", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "gRPC calls by service, method, kind and status code.",
	}, []string{"service", "method", "kind", "code"}))
	if err != nil {
		return nil, err
	}

	duration, err := registerCollector(reg, "duration", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "gRPC call latency in seconds by service, method, kind and status code.",
		Buckets:   buckets,
	}, []string{"service", "method", "kind", "code"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := registerCollector(reg, "in-flight", prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "gRPC calls currently being served, by service.",
	}, []string{"service"}))
	if err != nil {
		return nil, err
	}

	return &GRPCMetrics{requests: requests, duration: duration, inFlight: inFlight}, nil
}

// UnaryServerInterceptor returns a gRPC unary interceptor that records metrics.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	if m == nil {
		return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		done := m.begin(info.FullMethod, "unary")
		resp, err := handler(ctx, req)
		done(err)
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor that records metrics once the
// stream ends.
func (m *GRPCMetrics) StreamServerInterceptor() grpc.StreamServerInterceptor {
	if m == nil {
		return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			return handler(srv, ss)
		}
	}

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		done := m.begin(info.FullMethod, "stream")
		err := handler(srv, ss)
		done(err)
		return err
	}
}

func (m *GRPCMetrics) begin(fullMethod, kind string) func(error) {
	service, method := splitFullMethod(fullMethod)
	start := time.Now()

	inflight := m.inFlight.WithLabelValues(service)
	inflight.Inc()

	return func(err error) {
		inflight.Dec()
		labels := prometheus.Labels{
			"service": service,
			"method":  method,
			"kind":    kind,
			"code":    status.Code(err).String(),
		}
		m.requests.With(labels).Inc()
		m.duration.With(labels).Observe(time.Since(start).Seconds())
	}
}

func registerCollector[T prometheus.Collector](reg prometheus.Registerer, name string, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register gRPC %s collector: %w", name, err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing gRPC %s collector has wrong type %T", name, already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func splitFullMethod(full string) (string, string) {
	if full == "" {
		return "unknown", "unknown"
	}
	full = strings.TrimPrefix(full, "/")
	service, method, ok := strings.Cut(full, "/")
	if !ok || strings.Contains(method, "/") {
		return full, "unknown"
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
