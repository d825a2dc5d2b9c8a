package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/user-directory/internal/core/port"
	"github.com/arklim/user-directory/internal/infra/cache"
	"github.com/arklim/user-directory/internal/infra/config"
	"github.com/arklim/user-directory/internal/infra/database"
	kafkainfra "github.com/arklim/user-directory/internal/infra/kafka"
	"github.com/arklim/user-directory/internal/infra/logger"
	redisinfra "github.com/arklim/user-directory/internal/infra/redis"
	"github.com/arklim/user-directory/internal/infra/security"
	"github.com/arklim/user-directory/internal/infra/telemetry"
	"github.com/arklim/user-directory/internal/repository/cached"
	"github.com/arklim/user-directory/internal/repository/memory"
	postgresrepo "github.com/arklim/user-directory/internal/repository/postgres"
	redisrepo "github.com/arklim/user-directory/internal/repository/redis"
	transportgrpc "github.com/arklim/user-directory/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/user-directory/internal/transport/grpc/interceptors"
	"github.com/arklim/user-directory/internal/transport/http/middleware"
	"github.com/arklim/user-directory/internal/transport/http/routes"
	"github.com/arklim/user-directory/internal/usecase"
)

const (
	memoryCacheCleanup = 5 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

type Application struct {
	cfg        *config.AppConfig
	handler    http.Handler
	logger     *zap.Logger
	tracer     *telemetry.TracerProvider
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	rateStore  *memory.SlidingLogStore
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log, grpcAddr: fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)}
	if err := a.build(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tracer = tracer

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := database.Migrate(ctx, a.pool, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var backend port.Cache
	switch cfg.Cache.Backend {
	case "redis":
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		backend = redisrepo.NewCacheStore(a.redis.Redis())
	default:
		backend = memory.NewCacheStore(memoryCacheCleanup)
	}
	cacheClient := cache.NewClient(backend,
		cache.WithKeyPrefix(cfg.Cache.KeyPrefix),
		cache.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cache.WithLogger(log),
	)

	registry := prometheus.DefaultRegisterer
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		return fmt.Errorf("init grpc metrics: %w", err)
	}

	users := cached.NewUserRepository(postgresrepo.NewUserRepository(a.pool), cacheClient, log,
		cached.WithTTLs(cfg.Cache.UserTTL, cfg.Cache.ListTTL),
		cached.WithMetrics(metrics),
	)

	hasher, err := security.NewCredentialHasher(cfg.Credential.Algorithm, security.Argon2Config{
		Memory:      cfg.Credential.Argon2Memory,
		Iterations:  cfg.Credential.Argon2Iterations,
		Parallelism: cfg.Credential.Argon2Parallelism,
		SaltLength:  security.DefaultArgon2Config().SaltLength,
		KeyLength:   security.DefaultArgon2Config().KeyLength,
	})
	if err != nil {
		return fmt.Errorf("init credential hasher: %w", err)
	}
	policy := security.NewPasswordPolicy(cfg.Credential.MinPasswordLength, cfg.Credential.MinStrengthScore)
	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		Secret:   []byte(cfg.JWT.SecretKey),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.AccessTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}

	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	authService := usecase.NewAuthService(users, hasher, tokens, policy, events, log)
	userService := usecase.NewUserService(users, hasher, policy, events, log)

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		a.rateStore = memory.NewSlidingLogStore(cfg.RateLimit.Retention(),
			memory.WithSweepInterval(cfg.RateLimit.SweepInterval),
			memory.WithSweepObserver(metrics.SetTrackedClients),
		)
		rateLimiter = middleware.NewRateLimiter(a.rateStore, cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowDuration, log).
			WithMetrics(metrics)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Gatherer:    prometheus.DefaultGatherer,
		Auth:        authService,
		Users:       userService,
		Tokens:      tokens,
		Database:    a.pool,
		Cache:       cacheClient,
	})
	a.handler = traced(engine)

	a.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Logger:  log,
		Metrics: grpcMetrics,
		Tracing: &grpcinterceptors.TracingOptions{
			TracerProvider: otel.GetTracerProvider(),
			Propagators:    otel.GetTextMapPropagator(),
		},
		Checks: map[string]transportgrpc.CheckFunc{
			"database": a.pool.Ping,
			"cache":    cacheClient.HealthCheck,
		},
	})

	return nil
}

// traced opens a server span per request; health checks and scrapes are skipped.
func traced(engine *gin.Engine) http.Handler {
	return otelhttp.NewHandler(engine, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				return false
			}
			return true
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close(context.Background())

	if a.rateStore != nil {
		a.rateStore.StartJanitor(ctx, a.cfg.RateLimit.SweepInterval)
	}

	grpcErrCh := make(chan error, 1)
	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go a.grpcServer.RunHealthChecks(ctx)
	go func() {
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting user directory API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err = <-serverErrCh:
	case err = <-grpcErrCh:
	}

	a.grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	return err
}

// close releases whatever build managed to open, in reverse order.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
		a.tracer = nil
	}
}
