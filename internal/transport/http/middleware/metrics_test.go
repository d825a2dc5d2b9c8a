package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMetricsRouter(t *testing.T) (*gin.Engine, *HTTPMetrics, *prometheus.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewHTTPMetrics returned error: %v", err)
	}

	router := gin.New()
	router.Use(metrics.Handler())
	return router, metrics, registry
}

func TestHTTPMetricsLabelsByRouteTemplate(t *testing.T) {
	router, metrics, _ := newMetricsRouter(t)
	router.GET("/api/v1/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/users", func(c *gin.Context) { c.Status(http.StatusCreated) })

	for _, id := range []string{"u-1", "u-2", "u-3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/"+id, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/users", nil))

	get := prometheus.Labels{"method": http.MethodGet, "route": "/api/v1/users/:id", "status": "200"}
	if got := testutil.ToFloat64(metrics.Requests.With(get)); got != 3 {
		t.Fatalf("expected three reads under one template, got %v", got)
	}
	post := prometheus.Labels{"method": http.MethodPost, "route": "/api/v1/users", "status": "201"}
	if got := testutil.ToFloat64(metrics.Requests.With(post)); got != 1 {
		t.Fatalf("expected one create, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("in-flight gauge did not settle, got %v", got)
	}
	if n := testutil.CollectAndCount(metrics.Duration); n != 2 {
		t.Fatalf("expected two latency series, got %d", n)
	}
}

func TestHTTPMetricsCollapsesUnmatchedRoutes(t *testing.T) {
	router, metrics, registry := newMetricsRouter(t)

	for _, path := range []string{"/a", "/b/c", "/d?x=1"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	unmatched := prometheus.Labels{"method": http.MethodGet, "route": "unmatched", "status": "404"}
	if got := testutil.ToFloat64(metrics.Requests.With(unmatched)); got != 3 {
		t.Fatalf("expected 3 unmatched requests in one series, got %v", got)
	}

	again, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("re-registration should reuse collectors: %v", err)
	}
	if again.Requests != metrics.Requests {
		t.Fatal("expected existing collector to be reused")
	}
}

func TestHTTPMetricsNilIsPassThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var metrics *HTTPMetrics
	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", rr.Code)
	}
}
