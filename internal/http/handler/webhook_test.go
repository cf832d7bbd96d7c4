package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/http/httperr"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	events []*domain.CallEvent
	err    error
}

func (s *recordingSubmitter) Submit(ctx context.Context, event *domain.CallEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	s.events = append(s.events, event)
	return s.err
}

func postWebhook(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/aircall", strings.NewReader(body))
	req = req.WithContext(logger.InitRootErrorContext(logger.SetLoggerInContext(context.Background(), logger.Nop())))
	rec := httptest.NewRecorder()
	h.HandleAircall(rec, req)
	return rec
}

func newTestWebhookHandler(sub Submitter) *WebhookHandler {
	h := NewWebhookHandler(sub)
	h.now = func() time.Time { return time.Unix(1700000999, 0) }
	return h
}

func TestHandleAircall_Accepted(t *testing.T) {
	sub := &recordingSubmitter{}
	h := newTestWebhookHandler(sub)

	rec := postWebhook(t, h, `{
		"id": 812345,
		"event": "call.ended",
		"direction": "inbound",
		"from": "+33612345678",
		"to": "+33100000000",
		"duration": 42,
		"started_at": 1700000000,
		"status": "answered",
		"recording_url": "https://rec.example/42.mp3",
		"notes": "asked for a quote",
		"tags": ["vip", {"name": "auto"}, ""],
		"comments": [{"content": "call back tomorrow"}, "prefers email"],
		"contact": {"name": "Jean Dupont", "email": "jean@example.fr", "company": "Dupont SARL"},
		"token": "ignored-here"
	}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp WebhookResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "812345:ended", resp.Data.EventID)
	assert.Equal(t, "accepted", resp.Data.Status)

	require.Len(t, sub.events, 1)
	e := sub.events[0]
	assert.Equal(t, domain.EventEnded, e.Kind)
	assert.Equal(t, domain.DirectionInbound, e.Direction)
	assert.Equal(t, 42, e.Duration)
	assert.Equal(t, int64(1700000000), e.Timestamp)
	assert.Equal(t, domain.CallStatusAnswered, e.Status)
	assert.Equal(t, []string{"vip", "auto"}, e.Tags)
	assert.Equal(t, "asked for a quote\ncall back tomorrow\nprefers email", e.Notes)
	assert.Equal(t, "Jean", e.Contact.FirstName())
	assert.Equal(t, "Dupont", e.Contact.LastName())
	assert.Equal(t, "Dupont SARL", e.Contact.Company)
}

func TestHandleAircall_Defaults(t *testing.T) {
	sub := &recordingSubmitter{}
	h := newTestWebhookHandler(sub)

	rec := postWebhook(t, h, `{"event":"created","direction":"outbound","to":"0612345678",
		"contact":{"first_name":"Ana","last_name":"Lima"}}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	e := sub.events[0]
	assert.Len(t, e.ID, 36, "missing id gets a uuid")
	assert.Equal(t, int64(1700000999), e.Timestamp, "missing started_at falls back to receive time")
	assert.Equal(t, "Ana Lima", e.Contact.Name)
	assert.Empty(t, e.Tags)
}

func TestHandleAircall_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "malformed json", body: `{"event":`, status: http.StatusBadRequest, code: httperr.ErrCodeInvalidFormat},
		{name: "inbound without from", body: `{"id":"1","event":"call.ended","direction":"inbound","to":"+331"}`, status: http.StatusBadRequest, code: httperr.ErrCodeValidationError},
		{name: "unknown direction", body: `{"id":"1","event":"call.ended","direction":"sideways","from":"+331"}`, status: http.StatusBadRequest, code: httperr.ErrCodeValidationError},
		{name: "unknown event", body: `{"id":"1","event":"call.transferred","direction":"inbound","from":"+331"}`, status: http.StatusBadRequest, code: httperr.ErrCodeValidationError},
		{name: "queue full", body: `{"id":"1","event":"call.ended","direction":"inbound","from":"+331"}`, err: service.ErrQueueFull, status: http.StatusServiceUnavailable, code: httperr.ErrCodeQueueFull},
		{name: "shutting down", body: `{"id":"1","event":"call.ended","direction":"inbound","from":"+331"}`, err: service.ErrShuttingDown, status: http.StatusServiceUnavailable, code: httperr.ErrCodeShuttingDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, newTestWebhookHandler(&recordingSubmitter{err: tt.err}), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			var resp httperr.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.False(t, resp.OK)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestHandleAircall_Duplicate(t *testing.T) {
	rec := postWebhook(t, newTestWebhookHandler(&recordingSubmitter{err: service.ErrDuplicateEvent}),
		`{"id":"9","event":"call.ended","direction":"inbound","from":"+331"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp WebhookResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "duplicate", resp.Data.Status)
	assert.Equal(t, "9:ended", resp.Data.EventID)
}

func TestHandleAircall_TooLarge(t *testing.T) {
	body := `{"notes":"` + strings.Repeat("x", 1<<20) + `"}`
	rec := postWebhook(t, newTestWebhookHandler(&recordingSubmitter{}), body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
