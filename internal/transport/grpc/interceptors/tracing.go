package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// TracingOptions customises the tracing interceptor behaviour.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	// TraceHealthChecks records spans for grpc.health.v1 probes, which are skipped otherwise.
	TraceHealthChecks bool
	Additional        []otelgrpc.Option
}

// TracingInterceptor composes OpenTelemetry server interceptors for gRPC traffic.
type TracingInterceptor struct {
	unary  grpc.UnaryServerInterceptor
	stream grpc.StreamServerInterceptor
}

// NewTracingInterceptor builds unary and stream interceptors with the supplied options.
func NewTracingInterceptor(opts TracingOptions) *TracingInterceptor {
	options := make([]otelgrpc.Option, 0, len(opts.Additional)+3)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	if !opts.TraceHealthChecks {
		options = append(options, otelgrpc.WithInterceptorFilter(func(info *otelgrpc.InterceptorInfo) bool {
			return !isHealthMethod(interceptedMethod(info))
		}))
	}
	options = append(options, opts.Additional...)

	return &TracingInterceptor{
		unary:  otelgrpc.UnaryServerInterceptor(options...),
		stream: otelgrpc.StreamServerInterceptor(options...),
	}
}

// Unary returns the unary server interceptor.
func (ti *TracingInterceptor) Unary() grpc.UnaryServerInterceptor {
	if ti == nil || ti.unary == nil {
		return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}
	}
	return ti.unary
}

// Stream returns the stream server interceptor.
func (ti *TracingInterceptor) Stream() grpc.StreamServerInterceptor {
	if ti == nil || ti.stream == nil {
		return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			return handler(srv, ss)
		}
	}
	return ti.stream
}

func interceptedMethod(info *otelgrpc.InterceptorInfo) string {
	switch {
	case info == nil:
		return ""
	case info.UnaryServerInfo != nil:
		return info.UnaryServerInfo.FullMethod
	case info.StreamServerInfo != nil:
		return info.StreamServerInfo.FullMethod
	default:
		return info.Method
	}
}

func isHealthMethod(method string) bool {
	return strings.HasPrefix(method, healthServicePrefix)
}
