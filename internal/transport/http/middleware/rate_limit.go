package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arklim/user-directory/internal/core/port"
	appLogger "github.com/arklim/user-directory/internal/infra/logger"
	"github.com/arklim/user-directory/internal/infra/telemetry"
)

const (
	rateLimitProblemType  = "https://user-directory.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"

	// UnknownClient scopes requests whose client address cannot be determined.
	UnknownClient = "unknown"

	DefaultRateLimit  = 100
	DefaultRateWindow = time.Minute
)

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// IdentifierFunc extracts the identity a request is counted against.
type IdentifierFunc func(*gin.Context) string

// ClientIPIdentifier counts by gin's resolved client IP, or UnknownClient.
// The engine must restrict trusted proxies; otherwise any caller can pick its
// own identity through X-Forwarded-For.
func ClientIPIdentifier(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return UnknownClient
}

// RateLimiter rejects a client once it has sent more than limit requests in
// the trailing window. Every request is recorded, rejected ones included.
type RateLimiter struct {
	store      port.RateLimitStore
	limit      int
	window     time.Duration
	identifier IdentifierFunc
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	now        func() time.Time
	faultLog   rate.Sometimes
}

func NewRateLimiter(store port.RateLimitStore, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		store:      store,
		limit:      limit,
		window:     window,
		identifier: ClientIPIdentifier,
		logger:     logger,
		now:        time.Now,
		faultLog:   rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

func (rl *RateLimiter) WithIdentifier(fn IdentifierFunc) *RateLimiter {
	if fn != nil {
		rl.identifier = fn
	}
	return rl
}

func (rl *RateLimiter) WithMetrics(m *telemetry.Metrics) *RateLimiter {
	rl.metrics = m
	return rl
}

// Handler returns the gin middleware. A store failure lets the request through.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.store == nil {
			c.Next()
			return
		}

		identity := rl.identifier(c)
		if identity == "" {
			identity = UnknownClient
		}
		now := rl.now()

		win, err := rl.store.RecordAndCount(c.Request.Context(), identity, now, rl.window)
		if err != nil {
			rl.faultLog.Do(func() {
				rl.logger.Warn("rate limit check failed, allowing request",
					zap.String("client_ip", appLogger.MaskIP(identity)),
					zap.Error(err),
				)
			})
			c.Next()
			return
		}

		remaining := rl.limit - win.Count
		reset := win.Oldest.Add(rl.window)
		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if win.Count > rl.limit {
			rl.metrics.ObserveRejection()
			rl.reject(c, reset.Sub(now))
			return
		}

		c.Next()
	}
}

// reject answers 429. retryAfter is when the oldest counted request leaves
// the window; a client that keeps sending may need to wait longer.
func (rl *RateLimiter) reject(c *gin.Context, retryAfter time.Duration) {
	seconds := max(int(math.Ceil(retryAfter.Seconds())), 1)
	c.Header("Retry-After", strconv.Itoa(seconds))

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}
