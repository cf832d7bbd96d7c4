package client

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewBackendHTTPClient creates the http.Client used for one CRM backend.
//
// Includes:
// - Request ID propagation via RequestIDTransport
// - OpenTelemetry client spans named after the backend
// - A hard timeout for the whole request lifecycle
//
// http.DefaultClient has no timeout; every outbound call here must be bounded.
func NewBackendHTTPClient(backend string, timeout time.Duration) *http.Client {
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()

	transport := otelhttp.NewTransport(
		NewRequestIDTransport(baseTransport),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s %s", backend, r.Method, r.URL.Path)
		}),
	)

	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: limitRedirects,
	}
}

// NewCustomHTTPClient creates an http.Client with custom timeout and request ID propagation
// but without tracing. Used for token endpoints and health probes.
func NewCustomHTTPClient(timeout time.Duration) *http.Client {
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	transport := NewRequestIDTransport(baseTransport)

	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: limitRedirects,
	}
}

func limitRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return http.ErrUseLastResponse
	}
	return nil
}
