package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metricsConfig struct {
	namespace string
	buckets   []float64
	registry  prometheus.Registerer
	skip      func(r *http.Request) bool
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*metricsConfig)

// WithNamespace sets the metric namespace (default: "devd").
func WithNamespace(namespace string) MetricsOption {
	return func(c *metricsConfig) { c.namespace = namespace }
}

// WithBuckets sets the duration histogram buckets (default:
// prometheus.DefBuckets).
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *metricsConfig) { c.buckets = buckets }
}

// WithRegistry sets the registry the histogram is registered in (default:
// prometheus.DefaultRegisterer).
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *metricsConfig) { c.registry = registry }
}

// WithSkip excludes requests from the histogram. Long-lived requests such
// as WebSocket upgrades would otherwise record connection lifetimes.
func WithSkip(skip func(r *http.Request) bool) MetricsOption {
	return func(c *metricsConfig) { c.skip = skip }
}

// Prometheus creates middleware that observes request duration labeled by
// method, route and status code. Requests outside a chi route are labeled
// with route "unmatched" to keep label cardinality bounded.
//
// The histogram is registered immediately; calling Prometheus twice with the
// same registry panics.
func Prometheus(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := metricsConfig{
		namespace: "devd",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	duration := promauto.With(config.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   config.buckets,
	}, []string{"method", "route", "status"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip != nil && config.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			duration.WithLabelValues(r.Method, route, strconv.Itoa(statusOf(ww))).
				Observe(time.Since(start).Seconds())
		})
	}
}
