package transportgrpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	grpcinterceptors "github.com/Marcin-Purol/Payment-Gateway/internal/transport/grpc/interceptors"
)

func startServer(t *testing.T, deps ServerDependencies) (*Server, healthpb.HealthClient) {
	t.Helper()

	srv := NewServer(deps)
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		srv.GracefulStop()
		<-done
	})
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("health check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestServer_HealthMirrorsProbes(t *testing.T) {
	var brokerDown atomic.Bool
	brokerDown.Store(true)

	srv, client := startServer(t, ServerDependencies{
		Logger:        zaptest.NewLogger(t),
		ProbeInterval: time.Hour,
		Probes: map[string]Probe{
			"database": func(context.Context) error { return nil },
			"rabbitmq": func(context.Context) error {
				if brokerDown.Load() {
					return errors.New("rabbitmq: not connected")
				}
				return nil
			},
		},
	})

	srv.Probe(context.Background())
	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected overall NOT_SERVING while the broker is down, got %s", got)
	}
	if got := check(t, client, "database"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected database SERVING, got %s", got)
	}

	brokerDown.Store(false)
	srv.Probe(context.Background())
	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected gateway SERVING once the broker recovers, got %s", got)
	}
}

func TestServer_RecordsCallMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewGRPCMetrics: %v", err)
	}

	srv, client := startServer(t, ServerDependencies{Metrics: metrics, ProbeInterval: time.Hour})
	srv.Probe(context.Background())
	check(t, client, "")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "pgw_grpc_requests_total" {
			return
		}
	}
	t.Fatal("expected pgw_grpc_requests_total to be exported")
}
