package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"aircall-sync/internal/config"
	"aircall-sync/internal/domain"
	"aircall-sync/internal/http/handler"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/service"
	"aircall-sync/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct{ err error }

func (s stubResolver) Resolve(ctx context.Context, phone string, hints domain.ContactHint) (domain.ContactRecord, error) {
	if s.err != nil {
		return domain.ContactRecord{}, s.err
	}
	return domain.ContactRecord{ID: "c-" + phone, Phone: phone}, nil
}

type stubWriter struct{}

func (stubWriter) Record(ctx context.Context, c domain.ContactRecord, event *domain.CallEvent) (domain.ActivityRecord, error) {
	return domain.ActivityRecord{ID: "a-1", ContactID: c.ID, Duration: event.Duration}, nil
}

type captureJournal struct {
	mu      sync.Mutex
	results []domain.SyncResult
}

func (j *captureJournal) InsertResult(ctx context.Context, result domain.SyncResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, result)
	return nil
}

type app struct {
	router     http.Handler
	dispatcher *service.Dispatcher
	journal    *captureJournal
	registry   *telemetry.Registry
}

func newApp(t *testing.T, cfg *config.Config, zohoErr error) *app {
	t.Helper()
	log := logger.Nop()
	registry := telemetry.NewRegistry()
	journal := &captureJournal{}

	syncService := service.NewSyncService([]service.Target{
		{Name: "oggo", Resolver: stubResolver{}, Writer: stubWriter{}},
		{Name: "zoho", Resolver: stubResolver{err: zohoErr}, Writer: stubWriter{}},
	}, log)
	dispatcher := service.NewDispatcher(service.DispatcherConfig{
		Workers:   2,
		QueueSize: 10,
		Processor: syncService,
		Journal:   journal,
		Recorder:  registry,
		Logger:    log,
	})
	dispatcher.Start(context.Background())
	t.Cleanup(func() { _ = dispatcher.Shutdown(context.Background()) })

	r := buildRouter(RouterDeps{
		Cfg:            cfg,
		Log:            log,
		Registry:       registry,
		WebhookHandler: handler.NewWebhookHandler(dispatcher),
		HealthHandler:  handler.NewHealthHandler("aircall-sync", syncService.Targets(), nil),
	})
	return &app{router: r, dispatcher: dispatcher, journal: journal, registry: registry}
}

const webhookBody = `{"id":812345,"event":"call.ended","direction":"inbound","from":"+33612345678","to":"+33100000000","duration":42,"started_at":1700000000}`

func TestWebhookToJournal(t *testing.T) {
	a := newApp(t, &config.Config{OTELServiceName: "test", AircallWebhookToken: "hook"}, errors.New("zoho down"))

	req := httptest.NewRequest(http.MethodPost, "/webhook/aircall", strings.NewReader(webhookBody))
	req.Header.Set("X-Aircall-Token", "hook")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp handler.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "812345:ended", resp.Data.EventID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.dispatcher.Shutdown(ctx))

	require.Len(t, a.journal.results, 1)
	result := a.journal.results[0]
	assert.Equal(t, domain.OverallPartialSuccess, result.Status)
	assert.Equal(t, domain.StateCompleted, result.Outcomes["oggo"].State)
	assert.Equal(t, domain.StateFailed, result.Outcomes["zoho"].State)
	assert.Equal(t, domain.StateContactResolving, result.Outcomes["zoho"].FailedAt)

	mw := httptest.NewRecorder()
	a.router.ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), `sync_events_total{status="partial_success"} 1`)
	assert.Contains(t, mw.Body.String(), `webhook_deliveries_total{result="accepted"} 1`)
	assert.Contains(t, mw.Body.String(), `sync_backend_outcomes_total{backend="zoho",error_kind="unknown",state="failed"} 1`)
}

func TestWebhook_RejectsWrongToken(t *testing.T) {
	a := newApp(t, &config.Config{OTELServiceName: "test", AircallWebhookToken: "hook"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/aircall", strings.NewReader(webhookBody))
	req.Header.Set("X-Aircall-Token", "nope")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, a.journal.results)
}

func TestWebhook_InvalidEventIsRejectedSynchronously(t *testing.T) {
	a := newApp(t, &config.Config{OTELServiceName: "test"}, nil)

	body := `{"id":1,"event":"call.ended","direction":"outbound","from":"+33612345678","started_at":1700000000}`
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/aircall", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	mw := httptest.NewRecorder()
	a.router.ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, mw.Body.String(), `webhook_deliveries_total{result="invalid"} 1`)
}

func TestWebhook_AfterShutdownIsUnavailable(t *testing.T) {
	a := newApp(t, &config.Config{OTELServiceName: "test"}, nil)
	require.NoError(t, a.dispatcher.Shutdown(context.Background()))

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/aircall", strings.NewReader(webhookBody)))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
}

func TestHealthEndpoint(t *testing.T) {
	a := newApp(t, &config.Config{OTELServiceName: "test"}, nil)

	for _, path := range []string{"/", "/health", "/ready"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

			var resp handler.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, []string{"oggo", "zoho"}, resp.Backends)
		})
	}
}

func TestHealthEndpoint_PreservesRequestID(t *testing.T) {
	a := newApp(t, &config.Config{OTELServiceName: "test"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req_custom123")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, "req_custom123", w.Header().Get("X-Request-Id"))
}

func TestDebugRoutes_OnlyInDev(t *testing.T) {
	debug := handler.NewDebugHandler("dev", nil)

	prod := buildRouter(RouterDeps{Cfg: &config.Config{OTELServiceName: "test", AppEnv: "production"}, DebugHandler: debug})
	w := httptest.NewRecorder()
	prod.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/credentials", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	dev := buildRouter(RouterDeps{Cfg: &config.Config{OTELServiceName: "test", AppEnv: "dev"}, DebugHandler: debug})
	w = httptest.NewRecorder()
	dev.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/credentials", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildBackends(t *testing.T) {
	cfg := &config.Config{
		RequestTimeoutSeconds:         5,
		CredentialSafetyMarginSeconds: 60,
		DefaultCountryCode:            "33",
		OggoInsuranceType:             "auto",
		Oggo: config.BackendConfig{
			Enabled: true, BaseURL: "https://oggo.test", TokenURL: "https://oggo.test/oauth/token",
			ClientID: "id", ClientSecret: "secret", RefreshToken: "r", ActivityType: "task",
		},
		Zoho: config.BackendConfig{
			Enabled: true, BaseURL: "https://zoho.test", TokenURL: "https://accounts.zoho.test/oauth/v2/token",
			ClientID: "id", ClientSecret: "secret", RefreshToken: "r", ActivityType: "call",
		},
	}

	set := buildBackends(cfg, logger.Nop(), nil, telemetry.NewRegistry())

	require.Len(t, set.targets, 2)
	assert.Equal(t, "oggo", set.targets[0].Name)
	assert.Equal(t, "zoho", set.targets[1].Name)
	assert.Len(t, set.caches, 2)
	assert.Len(t, set.inspectors(), 2)

	names := []string{}
	for _, c := range set.checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"oggo", "zoho"}, names)

	cfg.Oggo.Enabled = false
	set = buildBackends(cfg, logger.Nop(), nil, nil)
	require.Len(t, set.targets, 1)
	assert.Equal(t, "zoho", set.caches[0].Backend())
	assert.False(t, set.caches[0].Status().Cached)
}
