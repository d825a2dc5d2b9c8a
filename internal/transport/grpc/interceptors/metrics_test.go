package interceptors

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCMetricsUnaryInterceptorRecordsMetrics(t *testing.T) {
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()
	handler := func(context.Context, any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	labels := prometheus.Labels{"service": "grpc.health.v1.Health", "method": "Check", "code": codes.OK.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}
	if inflight := testutil.ToFloat64(metrics.inFlight.WithLabelValues("grpc.health.v1.Health")); inflight != 0 {
		t.Fatalf("expected in-flight gauge 0, got %f", inflight)
	}
	if samples := testutil.CollectAndCount(metrics.duration); samples == 0 {
		t.Fatal("expected histogram to record observations")
	}
}

func TestGRPCMetricsUnaryInterceptorPropagatesErrors(t *testing.T) {
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()
	handler := func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	labels := prometheus.Labels{"service": "grpc.health.v1.Health", "method": "Check", "code": codes.NotFound.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1 for failed call, got %f", got)
	}
}

func TestGRPCMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first NewGRPCMetrics: %v", err)
	}
	second, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second NewGRPCMetrics: %v", err)
	}
	if first.requests != second.requests {
		t.Fatal("expected the registered counter to be reused")
	}
}

func TestSplitFullMethod(t *testing.T) {
	cases := map[string][2]string{
		"/pkg.Service/Method": {"pkg.Service", "Method"},
		"":                    {"unknown", "unknown"},
		"/pkg.Service/":       {"pkg.Service", "unknown"},
		"/bare":               {"bare", "unknown"},
	}
	for in, want := range cases {
		service, method := splitFullMethod(in)
		if service != want[0] || method != want[1] {
			t.Fatalf("%q: expected %v, got %s/%s", in, want, service, method)
		}
	}
}
