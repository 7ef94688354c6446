package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMeterName is the instrumentation scope for API request metrics
const HTTPMetricsMeterName = "github.com/stacklok/boostsync/http"

// unmatchedRoute labels requests chi could not route, keeping label values bounded
const unmatchedRoute = "unmatched"

// HTTPMetrics counts and times requests to the status API
type HTTPMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

// NewHTTPMetrics creates the API instruments. A nil provider yields nil metrics,
// whose Middleware is a pass-through.
func NewHTTPMetrics(provider metric.MeterProvider) (*HTTPMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(HTTPMetricsMeterName)

	duration, err := meter.Float64Histogram(
		"boostsync_http_request_duration_seconds",
		metric.WithDescription("Time spent serving API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("request duration histogram: %w", err)
	}

	requests, err := meter.Int64Counter(
		"boostsync_http_requests_total",
		metric.WithDescription("API requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("request counter: %w", err)
	}

	return &HTTPMetrics{duration: duration, requests: requests}, nil
}

// Middleware records one observation per request. Prometheus scrapes of
// /metrics are not counted.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// The request context can be cancelled by the time the handler returns
		ctx := r.Context()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", getRoutePattern(r)),
			attribute.String("status_class", statusClass(ww.Status())),
		)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		m.requests.Add(ctx, 1, attrs)
	})
}

// statusClass buckets a status code as "2xx", "4xx" and so on
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", code/100)
}

// getRoutePattern returns the chi route template (e.g. "/vanity") once routing
// has run, or unmatchedRoute.
func getRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// MetricsMiddleware builds HTTPMetrics from provider and returns its middleware
func MetricsMiddleware(provider metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	metrics, err := NewHTTPMetrics(provider)
	if err != nil {
		return nil, err
	}
	return metrics.Middleware, nil
}
