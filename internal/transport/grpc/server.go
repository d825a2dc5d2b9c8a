package transportgrpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/user-directory/internal/transport/grpc/interceptors"
)

const (
	defaultCheckInterval = 10 * time.Second
	checkTimeout         = 2 * time.Second
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// ServerDependencies encapsulates what the gRPC operations surface needs.
type ServerDependencies struct {
	Logger        *zap.Logger
	Metrics       *grpcinterceptors.GRPCMetrics
	Tracing       *grpcinterceptors.TracingOptions
	Checks        map[string]CheckFunc
	CheckInterval time.Duration
}

// Server is the gRPC operations endpoint: standard health checking backed by
// periodic dependency health checks, plus reflection.
type Server struct {
	*grpc.Server

	health   *health.Server
	checks   map[string]CheckFunc
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	serving bool
}

// NewServer starts NOT_SERVING until the first health check passes.
func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor())}
	if deps.Tracing != nil {
		opts = append(opts, grpc.StatsHandler(grpcinterceptors.ServerStatsHandler(*deps.Tracing)))
	}

	s := &Server{
		Server:   grpc.NewServer(opts...),
		health:   health.NewServer(),
		checks:   deps.Checks,
		interval: interval,
		logger:   logger.Named("grpc"),
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.Server, s.health)
	reflection.Register(s.Server)

	return s
}

// CheckHealth runs every check once and publishes the aggregate serving status.
func (s *Server) CheckHealth(ctx context.Context) bool {
	ok := true
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			ok = false
			s.logger.Warn("dependency check failed", zap.String("check", name), zap.Error(err))
		}
	}

	s.mu.Lock()
	changed := s.serving != ok
	s.serving = ok
	s.mu.Unlock()

	if ok {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	} else {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}
	if changed {
		s.logger.Info("serving status changed", zap.Bool("serving", ok))
	}
	return ok
}

// RunHealthChecks checks immediately and then on every interval until ctx ends.
func (s *Server) RunHealthChecks(ctx context.Context) {
	s.CheckHealth(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckHealth(ctx)
		}
	}
}

// GracefulStop flips health to NOT_SERVING before draining connections.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
}
