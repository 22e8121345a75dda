package core

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	authDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_auth_decisions_total",
			Help: "Authorization decisions by outcome",
		},
		[]string{"outcome"},
	)

	signInAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_signin_attempts_total",
			Help: "Sign-in attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	invoiceMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_invoice_mutations_total",
			Help: "Invoice mutations by operation and result",
		},
		[]string{"operation", "result"},
	)

	viewInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_view_invalidations_total",
			Help: "Cached view invalidations by path",
		},
		[]string{"path"},
	)

	viewCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_view_cache_lookups_total",
			Help: "View cache lookups by result",
		},
		[]string{"result"},
	)

	revalidationJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_revalidation_jobs_total",
			Help: "Background view revalidation jobs by result",
		},
		[]string{"result"},
	)
)

// MetricsMiddleware records request count and latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		c.Next()
		httpRequestsInFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func mutationResult(err error) string {
	if err == nil {
		return "ok"
	}
	if me, ok := AsMutationError(err); ok {
		return me.Kind.String()
	}
	return "error"
}

func signInResult(err error) string {
	if err == nil {
		return "ok"
	}
	if ae, ok := AsAuthError(err); ok {
		return ae.Kind.String()
	}
	return "error"
}
