package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/infra/logger"
)

const readinessTimeout = 2 * time.Second

// HealthCheckFunc reports whether a dependency is usable.
type HealthCheckFunc func(ctx context.Context) error

type readinessCheck struct {
	name  string
	check HealthCheckFunc
}

// HealthHandler exposes liveness and readiness endpoints.
type HealthHandler struct {
	startedAt time.Time
	checks    []readinessCheck
}

// HealthOption configures HealthHandler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck adds a named dependency to /readyz.
func WithReadinessCheck(name string, fn HealthCheckFunc) HealthOption {
	return func(h *HealthHandler) {
		if fn != nil {
			h.checks = append(h.checks, readinessCheck{name: name, check: fn})
		}
	}
}

func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{startedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status always answers 200 while the process serves requests.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", StartedAt: h.startedAt})
}

// Readiness runs every check and answers 503 if any fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for _, rc := range h.checks {
		if err := rc.check(ctx); err != nil {
			logger.WithContext(ctx).Warn("readiness check failed", zap.String("check", rc.name), zap.Error(err))
			resp.Checks[rc.name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[rc.name] = "ok"
	}
	c.JSON(status, resp)
}
