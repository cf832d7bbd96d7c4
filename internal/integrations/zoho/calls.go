package zoho

import (
	"context"
	"fmt"
	"strings"

	"aircall-sync/internal/activity"
	"aircall-sync/internal/domain"
)

// Zoho datetime layout for Call_Start_Time (ISO 8601 with offset, no fraction).
const zohoDateTime = "2006-01-02T15:04:05-07:00"

// CallBuilder maps a call to a Zoho Calls record linked to the lead.
func CallBuilder() activity.Builder {
	return func(contact domain.ContactRecord, event *domain.CallEvent) domain.ActivityPayload {
		d := domain.NewCallDetails(contact, event)
		return domain.CallLogPayload{
			CallDetails: d,
			Subject:     subject(d),
			Module:      LeadsModule,
		}
	}
}

// TaskBuilder maps a call to a completed Zoho task linked to the lead.
func TaskBuilder() activity.Builder {
	return func(contact domain.ContactRecord, event *domain.CallEvent) domain.ActivityPayload {
		d := domain.NewCallDetails(contact, event)
		return domain.TaskPayload{
			CallDetails: d,
			Subject:     subject(d),
			Module:      LeadsModule,
		}
	}
}

func subject(d domain.CallDetails) string {
	switch d.CallType {
	case domain.CallTypeMissed:
		return "Missed call"
	case domain.CallTypeOutbound:
		return "Outbound call"
	default:
		return "Inbound call"
	}
}

// FormatDuration renders seconds as Zoho's mm:ss Call_Duration.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func callType(t domain.CallType) string {
	switch t {
	case domain.CallTypeMissed:
		return "Missed"
	case domain.CallTypeOutbound:
		return "Outbound"
	default:
		return "Inbound"
	}
}

type lookup struct {
	ID string `json:"id"`
}

type callRecord struct {
	Subject       string `json:"Subject"`
	CallType      string `json:"Call_Type"`
	CallStartTime string `json:"Call_Start_Time"`
	CallDuration  string `json:"Call_Duration"`
	Description   string `json:"Description,omitempty"`
	WhatID        lookup `json:"What_Id"`
	SeModule      string `json:"$se_module"`
}

type taskRecord struct {
	Subject     string `json:"Subject"`
	Status      string `json:"Status"`
	DueDate     string `json:"Due_Date"`
	Description string `json:"Description,omitempty"`
	WhatID      lookup `json:"What_Id"`
	SeModule    string `json:"$se_module"`
}

// ActivityStore implements activity.Store for Zoho Calls and Tasks.
type ActivityStore struct {
	api API
}

// NewActivityStore creates a Zoho activity store.
func NewActivityStore(api API) *ActivityStore {
	return &ActivityStore{api: api}
}

// Create submits the payload. Insurance projects are not a Zoho concept.
func (s *ActivityStore) Create(ctx context.Context, payload domain.ActivityPayload) (string, error) {
	var (
		module string
		record interface{}
	)

	switch p := payload.(type) {
	case domain.CallLogPayload:
		module = "Calls"
		record = toCallRecord(p)
	case domain.TaskPayload:
		module = "Tasks"
		record = toTaskRecord(p)
	default:
		return "", domain.NewValidationError("activity", fmt.Sprintf("zoho does not support %s activities", payload.Kind()))
	}

	id, _, err := insert(ctx, s.api, module, record)
	return id, err
}

func toCallRecord(p domain.CallLogPayload) callRecord {
	return callRecord{
		Subject:       p.Subject,
		CallType:      callType(p.CallType),
		CallStartTime: p.StartedAt.Format(zohoDateTime),
		CallDuration:  FormatDuration(p.Duration),
		Description:   describe(p.CallDetails),
		WhatID:        lookup{ID: p.ContactID},
		SeModule:      moduleOrLeads(p.Module),
	}
}

func toTaskRecord(p domain.TaskPayload) taskRecord {
	return taskRecord{
		Subject:     p.Subject,
		Status:      "Completed",
		DueDate:     p.StartedAt.Format("2006-01-02"),
		Description: describe(p.CallDetails),
		WhatID:      lookup{ID: p.ContactID},
		SeModule:    moduleOrLeads(p.Module),
	}
}

func moduleOrLeads(module string) string {
	if module == "" {
		return LeadsModule
	}
	return module
}

func describe(d domain.CallDetails) string {
	lines := []string{}
	if d.Notes != "" {
		lines = append(lines, d.Notes)
	}
	if d.RecordingURL != "" {
		lines = append(lines, "Recording: "+d.RecordingURL)
	}
	if len(d.Tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(d.Tags, ", "))
	}
	return strings.Join(lines, "\n")
}
