package domain

import (
	"time"
)

// ActivityKind representa o tipo de registro de atividade criado no backend.
type ActivityKind string

const (
	ActivityProject ActivityKind = "project"
	ActivityTask    ActivityKind = "task"
	ActivityCallLog ActivityKind = "call_log"
)

// CallType é o tipo de chamada do ponto de vista do CRM.
type CallType string

const (
	CallTypeInbound  CallType = "inbound"
	CallTypeOutbound CallType = "outbound"
	CallTypeMissed   CallType = "missed"
)

// CallDetails contém os dados da chamada comuns a todas as variantes.
type CallDetails struct {
	ContactID    string
	Direction    Direction
	CallType     CallType
	Duration     int
	StartedAt    time.Time
	RecordingURL string
	Notes        string
	Tags         []string
}

// ActivityPayload é a variante específica de cada backend.
//
// Implementada apenas por ProjectPayload, TaskPayload e CallLogPayload.
type ActivityPayload interface {
	Kind() ActivityKind
	Details() CallDetails
	isActivityPayload()
}

// ProjectPayload: projeto de seguro (OGGO).
type ProjectPayload struct {
	CallDetails
	InsuranceType string
}

func (p ProjectPayload) Kind() ActivityKind   { return ActivityProject }
func (p ProjectPayload) Details() CallDetails { return p.CallDetails }
func (ProjectPayload) isActivityPayload()     {}

// TaskPayload: tarefa concluída representando a chamada.
type TaskPayload struct {
	CallDetails
	Subject string
	Module  string
}

func (p TaskPayload) Kind() ActivityKind   { return ActivityTask }
func (p TaskPayload) Details() CallDetails { return p.CallDetails }
func (TaskPayload) isActivityPayload()     {}

// CallLogPayload: registro de chamada (Zoho Calls).
type CallLogPayload struct {
	CallDetails
	Subject string
	Module  string
}

func (p CallLogPayload) Kind() ActivityKind   { return ActivityCallLog }
func (p CallLogPayload) Details() CallDetails { return p.CallDetails }
func (CallLogPayload) isActivityPayload()     {}

// NewCallDetails builds the backend-neutral part of an activity payload.
func NewCallDetails(contact ContactRecord, event *CallEvent) CallDetails {
	callType := CallType(event.Direction)
	if event.Missed() {
		callType = CallTypeMissed
	}

	tags := make([]string, 0, len(event.Tags))
	tags = append(tags, event.Tags...)

	return CallDetails{
		ContactID:    contact.ID,
		Direction:    event.Direction,
		CallType:     callType,
		Duration:     event.Duration,
		StartedAt:    event.StartedAt(),
		RecordingURL: event.RecordingURL,
		Notes:        event.Notes,
		Tags:         tags,
	}
}

// ActivityRecord é a representação da chamada sincronizada no backend.
// Criado uma vez por evento e backend; nunca atualizado.
type ActivityRecord struct {
	ID           string       `json:"id"`
	Backend      string       `json:"backend"`
	Kind         ActivityKind `json:"kind"`
	ContactID    string       `json:"contactId"`
	Direction    Direction    `json:"direction"`
	Duration     int          `json:"duration"`
	Timestamp    time.Time    `json:"timestamp"`
	RecordingURL string       `json:"recordingUrl,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	Tags         []string     `json:"tags"`
}

// NewActivityRecord fills an ActivityRecord from the payload that produced it.
func NewActivityRecord(backend, id string, p ActivityPayload) ActivityRecord {
	d := p.Details()
	return ActivityRecord{
		ID:           id,
		Backend:      backend,
		Kind:         p.Kind(),
		ContactID:    d.ContactID,
		Direction:    d.Direction,
		Duration:     d.Duration,
		Timestamp:    d.StartedAt,
		RecordingURL: d.RecordingURL,
		Notes:        d.Notes,
		Tags:         d.Tags,
	}
}
