package oggo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aircall-sync/internal/activity"
	"aircall-sync/internal/backend"
	"aircall-sync/internal/domain"
)

// DefaultInsuranceType is the project type created for every call.
const DefaultInsuranceType = "auto"

// ProjectBuilder maps a call to an insurance project of insuranceType.
func ProjectBuilder(insuranceType string) activity.Builder {
	if insuranceType == "" {
		insuranceType = DefaultInsuranceType
	}
	return func(contact domain.ContactRecord, event *domain.CallEvent) domain.ActivityPayload {
		return domain.ProjectPayload{
			CallDetails:   domain.NewCallDetails(contact, event),
			InsuranceType: strings.ToLower(insuranceType),
		}
	}
}

// TaskBuilder maps a call to a completed OGGO task.
func TaskBuilder() activity.Builder {
	return func(contact domain.ContactRecord, event *domain.CallEvent) domain.ActivityPayload {
		d := domain.NewCallDetails(contact, event)
		return domain.TaskPayload{
			CallDetails: d,
			Subject:     taskSubject(d),
		}
	}
}

func taskSubject(d domain.CallDetails) string {
	switch d.CallType {
	case domain.CallTypeMissed:
		return "Appel manqué"
	case domain.CallTypeOutbound:
		return "Appel sortant"
	default:
		return "Appel entrant"
	}
}

type callInfo struct {
	Direction    string   `json:"direction"`
	Type         string   `json:"type"`
	Duration     int      `json:"duration"`
	StartedAt    string   `json:"started_at"`
	RecordingURL string   `json:"recording_url,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Tags         []string `json:"tags"`
}

type projectRequest struct {
	ContactUUID string   `json:"contact_uuid"`
	Source      string   `json:"source"`
	Call        callInfo `json:"call"`
}

type taskRequest struct {
	ContactUUID string   `json:"contact_uuid"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date"`
	Status      string   `json:"status"`
	Call        callInfo `json:"call"`
}

// ActivityStore implements activity.Store for OGGO projects and tasks.
type ActivityStore struct {
	api API
}

// NewActivityStore creates an OGGO activity store.
func NewActivityStore(api API) *ActivityStore {
	return &ActivityStore{api: api}
}

// Create submits the payload. Call logs are not an OGGO concept.
func (s *ActivityStore) Create(ctx context.Context, payload domain.ActivityPayload) (string, error) {
	var req backend.Request

	switch p := payload.(type) {
	case domain.ProjectPayload:
		req = backend.Request{
			Method: http.MethodPost,
			Path:   "/project/" + url.PathEscape(p.InsuranceType),
			Body: projectRequest{
				ContactUUID: p.ContactID,
				Source:      "aircall",
				Call:        toCallInfo(p.CallDetails),
			},
			AuthRequired: true,
		}
	case domain.TaskPayload:
		req = backend.Request{
			Method: http.MethodPost,
			Path:   "/task",
			Body: taskRequest{
				ContactUUID: p.ContactID,
				Subject:     p.Subject,
				Description: describe(p.CallDetails),
				DueDate:     p.StartedAt.Format("2006-01-02"),
				Status:      "DONE",
				Call:        toCallInfo(p.CallDetails),
			},
			AuthRequired: true,
		}
	default:
		return "", domain.NewValidationError("activity", fmt.Sprintf("oggo does not support %s activities", payload.Kind()))
	}

	resp, err := s.api.Execute(ctx, req)
	if err != nil {
		return "", err
	}
	return decodeID(resp.Body), nil
}

func toCallInfo(d domain.CallDetails) callInfo {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return callInfo{
		Direction:    string(d.Direction),
		Type:         string(d.CallType),
		Duration:     d.Duration,
		StartedAt:    d.StartedAt.Format(time.RFC3339),
		RecordingURL: d.RecordingURL,
		Notes:        d.Notes,
		Tags:         tags,
	}
}

func describe(d domain.CallDetails) string {
	lines := []string{fmt.Sprintf("Durée: %ds", d.Duration)}
	if d.RecordingURL != "" {
		lines = append(lines, "Enregistrement: "+d.RecordingURL)
	}
	if len(d.Tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(d.Tags, ", "))
	}
	if d.Notes != "" {
		lines = append(lines, d.Notes)
	}
	return strings.Join(lines, "\n")
}

// decodeID extracts uuid or id from a bare or {"data": ...} response.
func decodeID(body []byte) string {
	var envelope struct {
		UUID string `json:"uuid"`
		ID   string `json:"id"`
		Data *struct {
			UUID string `json:"uuid"`
			ID   string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Data != nil {
		envelope.UUID, envelope.ID = envelope.Data.UUID, envelope.Data.ID
	}
	if envelope.UUID != "" {
		return envelope.UUID
	}
	return envelope.ID
}

// Ping checks OGGO reachability through the unauthenticated health endpoint.
func Ping(ctx context.Context, api API) error {
	_, err := api.Execute(ctx, backend.Request{Method: http.MethodGet, Path: "/health"})
	return err
}
