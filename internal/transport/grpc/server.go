package transportgrpc

import (
	"context"
	"net"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/Marcin-Purol/Payment-Gateway/internal/transport/grpc/interceptors"
)

// ServiceName is the health service name reported for the gateway as a whole.
const ServiceName = "paymentgateway.v1.Gateway"

const defaultProbeInterval = 10 * time.Second

// Probe checks one backing dependency.
type Probe func(ctx context.Context) error

// ServerDependencies encapsulates what the gRPC operations surface needs.
type ServerDependencies struct {
	Logger         *zap.Logger
	Metrics        *grpcinterceptors.GRPCMetrics
	TracerProvider trace.TracerProvider
	// Probes are polled every ProbeInterval. The overall service is SERVING only while
	// every probe passes; each probe is also reported under its own name.
	Probes        map[string]Probe
	ProbeInterval time.Duration
}

// Server hosts the gRPC health and reflection services.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	probes   map[string]Probe
	names    []string
	interval time.Duration
	logger   *zap.Logger
}

// NewServer wires the health and reflection services behind metrics and tracing interceptors.
func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	tracing := grpcinterceptors.NewTracingInterceptor(grpcinterceptors.TracingOptions{TracerProvider: deps.TracerProvider})
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(tracing.Unary(), deps.Metrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(tracing.Stream(), deps.Metrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	// Register reflection service for tools like Postman, grpcurl, etc.
	reflection.Register(server)

	names := make([]string, 0, len(deps.Probes))
	for name := range deps.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &Server{
		grpc:     server,
		health:   healthServer,
		probes:   deps.Probes,
		names:    names,
		interval: interval,
		logger:   logger,
	}
	s.setAll(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve accepts connections on lis and mirrors probe results into the health service
// until ctx ends or the server stops.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.watch(probeCtx)

	return s.grpc.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe runs every probe once and publishes the result.
func (s *Server) Probe(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range s.names {
		probeCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.probes[name](probeCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			s.logger.Warn("gRPC health probe failed", zap.String("dependency", name), zap.Error(err))
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(ServiceName, overall)
}

func (s *Server) setAll(status healthpb.HealthCheckResponse_ServingStatus) {
	for _, name := range s.names {
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
