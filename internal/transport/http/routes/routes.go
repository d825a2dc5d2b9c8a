package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/infra/config"
	"github.com/arklim/user-directory/internal/transport/http/handlers"
	"github.com/arklim/user-directory/internal/transport/http/middleware"
	"github.com/arklim/user-directory/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Auth        *usecase.AuthService
	Users       *usecase.UserService
	Tokens      middleware.TokenParser
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware. The rate
// governor runs ahead of every route, health and metrics included.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	// ClientIP, and with it the rate governor identity, only reads
	// X-Forwarded-For from these peers. None by default.
	var proxies []string
	if deps.Config != nil && len(deps.Config.App.TrustedProxies) > 0 {
		proxies = deps.Config.App.TrustedProxies
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		log.Warn("invalid trusted proxies, trusting none", zap.Strings("trusted_proxies", proxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(deps.HTTPMetrics.Handler())
	if deps.Config != nil && len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	}
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("cache", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Auth == nil || deps.Users == nil || deps.Tokens == nil {
		return r
	}

	api := r.Group("/api/v1")
	{
		handlers.NewAuthHandler(deps.Auth).RegisterRoutes(api.Group("/auth"))
		handlers.NewUserHandler(deps.Auth, deps.Users).
			RegisterRoutes(api.Group("/users"), middleware.RequireAuth(deps.Tokens))
	}

	return r
}
