package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aircall-sync/internal/http/client"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/observability/requestid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureServer records the correlation headers of the last request.
func captureServer(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	got := &http.Header{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	return ts, got
}

func doGet(t *testing.T, httpClient *http.Client, ctx context.Context, url string, headers map[string]string) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDTransport_PropagatesHeaders(t *testing.T) {
	ts, got := captureServer(t)
	httpClient := &http.Client{Transport: client.NewRequestIDTransport(nil)}

	ctx := requestid.SetRequestID(context.Background(), "req-123")
	ctx = logger.SetEventIDInContext(ctx, "evt-42")

	doGet(t, httpClient, ctx, ts.URL, nil)

	assert.Equal(t, "req-123", got.Get(requestid.Header))
	assert.Equal(t, "evt-42", got.Get(client.EventIDHeader))
}

func TestRequestIDTransport_PreservesExistingHeader(t *testing.T) {
	ts, got := captureServer(t)
	httpClient := &http.Client{Transport: client.NewRequestIDTransport(nil)}

	ctx := requestid.SetRequestID(context.Background(), "context-req")
	doGet(t, httpClient, ctx, ts.URL, map[string]string{requestid.Header: "explicit-req"})

	assert.Equal(t, "explicit-req", got.Get(requestid.Header))
}

func TestRequestIDTransport_NoHeaderWithoutContext(t *testing.T) {
	ts, got := captureServer(t)
	httpClient := &http.Client{Transport: client.NewRequestIDTransport(nil)}

	doGet(t, httpClient, context.Background(), ts.URL, nil)

	assert.Empty(t, got.Get(requestid.Header))
	assert.Empty(t, got.Get(client.EventIDHeader))
}

func TestNewBackendHTTPClient(t *testing.T) {
	ts, got := captureServer(t)
	httpClient := client.NewBackendHTTPClient("zoho", 5*time.Second)

	require.NotNil(t, httpClient.Transport)
	assert.Equal(t, 5*time.Second, httpClient.Timeout)

	ctx := requestid.SetRequestID(context.Background(), "req-otel")
	doGet(t, httpClient, ctx, ts.URL, nil)
	assert.Equal(t, "req-otel", got.Get(requestid.Header))
}

func TestNewCustomHTTPClient(t *testing.T) {
	httpClient := client.NewCustomHTTPClient(15 * time.Second)

	require.NotNil(t, httpClient)
	assert.Equal(t, 15*time.Second, httpClient.Timeout)
	assert.NotNil(t, httpClient.Transport)
}

func BenchmarkRequestIDTransport_WithContext(b *testing.B) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	httpClient := &http.Client{Transport: client.NewRequestIDTransport(nil)}
	ctx := requestid.SetRequestID(context.Background(), "bench-req-123")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
		resp, _ := httpClient.Do(req)
		resp.Body.Close()
	}
}
