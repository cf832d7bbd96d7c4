package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/http/httperr"
	"aircall-sync/internal/http/middleware"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Submitter accepts call events for asynchronous processing.
type Submitter interface {
	Submit(ctx context.Context, event *domain.CallEvent) error
}

// WebhookHandler recebe os webhooks da Aircall e os entrega ao dispatcher.
type WebhookHandler struct {
	submitter Submitter
	now       func() time.Time
}

func NewWebhookHandler(submitter Submitter) *WebhookHandler {
	return &WebhookHandler{submitter: submitter, now: time.Now}
}

// WebhookResponse is the body of an accepted delivery.
type WebhookResponse struct {
	OK   bool              `json:"ok"`
	Data WebhookAckPayload `json:"data"`
}

type WebhookAckPayload struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// tag accepts "vip" or {"name":"vip"}.
type tag string

func (t *tag) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = tag(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*t = tag(obj.Name)
	return nil
}

// comment accepts "text" or {"content":"text"}.
type comment string

func (c *comment) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = comment(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*c = comment(obj.Content)
	return nil
}

// aircallPayload is the flat webhook body sent by the Aircall relay.
type aircallPayload struct {
	ID           flexString `json:"id"`
	Event        string     `json:"event"`
	Direction    string     `json:"direction"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	Duration     int        `json:"duration"`
	StartedAt    int64      `json:"started_at"`
	Timestamp    int64      `json:"timestamp"`
	Status       string     `json:"status"`
	RecordingURL string     `json:"recording_url"`
	Notes        string     `json:"notes"`
	Tags         []tag      `json:"tags"`
	Comments     []comment  `json:"comments"`
	Contact      *struct {
		Name      string `json:"name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Company   string `json:"company"`
	} `json:"contact"`
}

// toEvent maps the wire payload to a CallEvent.
//
// Aircall reuses the call id for every event of a call, so the event id is
// "<call id>:<kind>". Deliveries without an id get a random one.
func (p aircallPayload) toEvent(now time.Time) *domain.CallEvent {
	kind := domain.EventKind(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p.Event)), "call."))

	id := strings.TrimSpace(string(p.ID))
	if id == "" {
		id = uuid.NewString()
	} else if kind != "" {
		id = id + ":" + string(kind)
	}

	ts := p.StartedAt
	if ts == 0 {
		ts = p.Timestamp
	}
	if ts == 0 {
		ts = now.Unix()
	}

	event := &domain.CallEvent{
		ID:           id,
		Kind:         kind,
		Direction:    domain.Direction(strings.ToLower(strings.TrimSpace(p.Direction))),
		From:         strings.TrimSpace(p.From),
		To:           strings.TrimSpace(p.To),
		Duration:     p.Duration,
		Timestamp:    ts,
		Status:       domain.CallStatus(strings.ToLower(p.Status)),
		RecordingURL: strings.TrimSpace(p.RecordingURL),
		Notes:        strings.TrimSpace(p.Notes),
		Tags:         make([]string, 0, len(p.Tags)),
	}

	for _, t := range p.Tags {
		if s := strings.TrimSpace(string(t)); s != "" {
			event.Tags = append(event.Tags, s)
		}
	}

	notes := []string{}
	if event.Notes != "" {
		notes = append(notes, event.Notes)
	}
	for _, c := range p.Comments {
		if s := strings.TrimSpace(string(c)); s != "" {
			notes = append(notes, s)
		}
	}
	event.Notes = strings.Join(notes, "\n")

	if p.Contact != nil {
		name := strings.TrimSpace(p.Contact.Name)
		if name == "" {
			name = strings.TrimSpace(p.Contact.FirstName + " " + p.Contact.LastName)
		}
		event.Contact = domain.ContactHint{
			Name:    name,
			Email:   strings.TrimSpace(p.Contact.Email),
			Company: strings.TrimSpace(p.Contact.Company),
		}
	}
	return event
}

// HandleAircall handles POST /webhook/aircall.
//
// The event is validated synchronously and processed in the background;
// the response never waits for the backends.
func (h *WebhookHandler) HandleAircall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, middleware.MaxWebhookBytes+1))
	if err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "unable to read request body")
		return
	}
	if len(body) > middleware.MaxWebhookBytes {
		httperr.WriteError(w, ctx, http.StatusRequestEntityTooLarge, httperr.ErrCodeInvalidFormat, "payload exceeds "+strconv.Itoa(middleware.MaxWebhookBytes)+" bytes")
		return
	}

	var payload aircallPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON payload")
		return
	}

	event := payload.toEvent(h.now())
	ctx = logger.SetEventIDInContext(ctx, event.ID)

	err = h.submitter.Submit(ctx, event)
	switch {
	case err == nil:
		log.Info(ctx, "webhook accepted",
			logger.Module("webhook"),
			logger.Action("receive"),
			zap.String("event_kind", string(event.Kind)),
			zap.String("direction", string(event.Direction)),
		)
		httperr.WriteJSON(w, http.StatusAccepted, WebhookResponse{OK: true, Data: WebhookAckPayload{EventID: event.ID, Status: "accepted"}})
	case errors.Is(err, service.ErrDuplicateEvent):
		log.Info(ctx, "webhook redelivery ignored",
			logger.Module("webhook"),
			logger.Action("receive"),
		)
		httperr.WriteJSON(w, http.StatusOK, WebhookResponse{OK: true, Data: WebhookAckPayload{EventID: event.ID, Status: "duplicate"}})
	case errors.Is(err, service.ErrQueueFull):
		httperr.ServiceUnavailable503(w, ctx, httperr.ErrCodeQueueFull, "sync queue is full, retry later")
	case errors.Is(err, service.ErrShuttingDown):
		httperr.ServiceUnavailable503(w, ctx, httperr.ErrCodeShuttingDown, "service is shutting down, retry later")
	default:
		if httperr.Validation(w, ctx, err) {
			return
		}
		logger.SetRootError(ctx, err)
		httperr.InternalError(w, ctx)
	}
}
