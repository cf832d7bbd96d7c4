package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aircall-sync/internal/http/middleware"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/observability/requestid"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	handler := middleware.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, strings.HasPrefix(seen, "req_"), "got %q", seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddleware_PreservesExistingID(t *testing.T) {
	var seen string
	handler := middleware.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "aircall-delivery-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "aircall-delivery-7", seen)
	assert.Equal(t, "aircall-delivery-7", rec.Header().Get("X-Request-Id"))
}

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewWithCore("test", core), logs
}

func TestRequestLoggingMiddleware_LogsRoutePattern(t *testing.T) {
	log, logs := observedLogger()

	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(log))
	r.Post("/webhook/aircall", func(w http.ResponseWriter, r *http.Request) {
		assert.Same(t, log, logger.GetLogger(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook/aircall?token=s3cret&x=1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/webhook/aircall", fields["route"])
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, "http", fields["module"])
	assert.NotEmpty(t, fields["request_id"])
	assert.NotContains(t, fields["query"], "s3cret")
	assert.Equal(t, "192.0.2.1", fields["remote_addr"])
}

func TestRecoveryMiddleware(t *testing.T) {
	log, logs := observedLogger()

	handler := middleware.RequestLoggingMiddleware(log)(
		middleware.RecoveryMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("mapper bug")
		})),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.Len(t, logs.FilterMessage("panic_recovered").All(), 1)

	httpErrors := logs.FilterMessage("http_error").All()
	require.Len(t, httpErrors, 1)
	assert.Equal(t, "panic", httpErrors[0].ContextMap()["kind"])
}
