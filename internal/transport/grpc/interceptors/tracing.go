package interceptors

import (
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/stats"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// TracingOptions customises server side tracing.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

// ServerStatsHandler traces every RPC except health checks, which would
// otherwise dominate the trace volume.
func ServerStatsHandler(opts TracingOptions) stats.Handler {
	options := []otelgrpc.Option{otelgrpc.WithFilter(traceable)}
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	return otelgrpc.NewServerHandler(options...)
}

func traceable(info *stats.RPCTagInfo) bool {
	return info != nil && !strings.HasPrefix(info.FullMethodName, healthServicePrefix)
}
