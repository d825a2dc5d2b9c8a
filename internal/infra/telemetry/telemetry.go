package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "udir"

// Cache result labels.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheError  = "error"
	CacheStored = "stored"
	CacheEvict  = "evicted"
)

// Metrics holds the domain collectors shared by the cache-aside repository and
// the rate governor.
type Metrics struct {
	CacheRequests       *prometheus.CounterVec
	RateLimitRejections prometheus.Counter
	RateLimitClients    prometheus.Gauge
}

// NewMetrics registers the domain collectors. Collectors already registered
// under the same name are reused so that tests can build the app repeatedly.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	cacheRequests, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Cache operations partitioned by operation and result.",
	}, []string{"op", "result"}))
	if err != nil {
		return nil, err
	}

	rejections, err := Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the per-client rate governor.",
	}))
	if err != nil {
		return nil, err
	}

	clients, err := Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rate_limit_tracked_clients",
		Help:      "Client identities currently tracked by the rate governor.",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		CacheRequests:       cacheRequests,
		RateLimitRejections: rejections,
		RateLimitClients:    clients,
	}, nil
}

// ObserveCache increments the cache counter; safe on a nil receiver.
func (m *Metrics) ObserveCache(op, result string) {
	if m == nil || m.CacheRequests == nil {
		return
	}
	m.CacheRequests.WithLabelValues(op, result).Inc()
}

// ObserveRejection increments the rate-limit rejection counter; safe on a nil receiver.
func (m *Metrics) ObserveRejection() {
	if m == nil || m.RateLimitRejections == nil {
		return
	}
	m.RateLimitRejections.Inc()
}

// SetTrackedClients records the size of the governor's client map.
func (m *Metrics) SetTrackedClients(n int) {
	if m == nil || m.RateLimitClients == nil {
		return
	}
	m.RateLimitClients.Set(float64(n))
}

// Register adds c to reg, returning the collector already registered under the
// same descriptor when there is one.
func Register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}
