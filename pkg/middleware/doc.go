// Package middleware provides net/http middleware for tracing and metrics.
//
// Both middlewares wrap any http.Handler and work with chi routers, where
// they label requests by route pattern instead of raw path.
//
// # OpenTelemetry Middleware
//
// OpenTelemetry starts a server span per request using the global tracer
// provider:
//
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("devd/server"),
//	    middleware.WithFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/metrics"
//	    }),
//	))
//
// # Prometheus Metrics
//
// Prometheus observes request duration by method, route and status:
//
//	devd_http_request_duration_seconds
//
// The collectors are registered when Prometheus is called, so call it once
// per registry and reuse the returned middleware.
//
//	mw := middleware.Prometheus(
//	    middleware.WithRegistry(reg),
//	    middleware.WithSkip(func(r *http.Request) bool { return r.URL.Path == "/ws" }),
//	)
//	r.Use(mw)
package middleware
