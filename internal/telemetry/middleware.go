package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMiddleware wraps the otelhttp handler with chi route pattern
func OTelMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return fmt.Sprintf("%s %s", r.Method, routePattern(r))
			}),
		)
	}
}

// MetricsMiddleware records RED metrics (Requests, Errors, Duration) into the
// OTLP meters and the Prometheus registry. Either may be nil.
func MetricsMiddleware(metrics *Metrics, registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			// Route pattern is only known after chi matched the request.
			route := routePattern(r)

			if registry != nil {
				registry.ObserveHTTP(r.Method, route, strconv.Itoa(ww.statusCode), elapsed)
			}

			if metrics != nil {
				attrs := []attribute.KeyValue{
					attribute.String("method", r.Method),
					attribute.String("route", route),
					attribute.Int("status", ww.statusCode),
				}
				metrics.RequestsTotal.Add(r.Context(), 1, metric.WithAttributes(attrs...))
				metrics.RequestDuration.Record(r.Context(), elapsed.Seconds(), metric.WithAttributes(attrs...))
			}
		})
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
