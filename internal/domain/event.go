package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventKind representa o tipo de evento de chamada enviado pela Aircall.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventAnswered  EventKind = "answered"
	EventEnded     EventKind = "ended"
	EventTagged    EventKind = "tagged"
	EventCommented EventKind = "commented"
)

// Direction representa o sentido da chamada.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// CallStatus é o status reportado pela plataforma (answered, voicemail...).
type CallStatus string

const (
	CallStatusAnswered    CallStatus = "answered"
	CallStatusVoicemail   CallStatus = "voicemail"
	CallStatusNotAnswered CallStatus = "not_answered"
)

// ContactHint é o contato embutido no webhook. Todos os campos são opcionais.
type ContactHint struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// FirstName retorna a primeira palavra do nome, ou "" se ausente.
func (h ContactHint) FirstName() string {
	parts := strings.Fields(h.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName retorna o restante do nome após a primeira palavra.
func (h ContactHint) LastName() string {
	parts := strings.Fields(h.Name)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

// CallEvent é o registro imutável recebido da plataforma de telefonia.
//
// Construído uma vez por webhook e somente lido depois disso.
// ID identifica o evento para logs e reconciliação manual.
type CallEvent struct {
	ID           string      `json:"id" validate:"required"`
	Kind         EventKind   `json:"event" validate:"required,oneof=created answered ended tagged commented"`
	Direction    Direction   `json:"direction" validate:"required,oneof=inbound outbound"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	Duration     int         `json:"duration" validate:"min=0"`
	Timestamp    int64       `json:"timestamp" validate:"min=0"`
	Status       CallStatus  `json:"status,omitempty"`
	RecordingURL string      `json:"recordingUrl,omitempty" validate:"omitempty,url"`
	Notes        string      `json:"notes,omitempty"`
	Tags         []string    `json:"tags"`
	Contact      ContactHint `json:"contact"`
}

var eventValidator = validator.New()

// Validate checks the event shape and that the number relevant to the
// direction is present. Returns a *ValidationError on failure.
func (e *CallEvent) Validate() error {
	if err := eventValidator.Struct(e); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			f := verrs[0]
			return NewValidationError(strings.ToLower(f.Field()), "failed '"+f.Tag()+"' rule")
		}
		return NewValidationError("event", err.Error())
	}

	if strings.TrimSpace(e.CallerNumber()) == "" {
		field := "from"
		if e.Direction == DirectionOutbound {
			field = "to"
		}
		return NewValidationError(field, "caller number is required for "+string(e.Direction)+" calls")
	}
	return nil
}

// CallerNumber returns the external party's number: from for inbound, to for outbound.
func (e *CallEvent) CallerNumber() string {
	if e.Direction == DirectionOutbound {
		return e.To
	}
	return e.From
}

// StartedAt converts the epoch-seconds timestamp to UTC.
func (e *CallEvent) StartedAt() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Missed reports whether an inbound call never got answered.
func (e *CallEvent) Missed() bool {
	if e.Direction != DirectionInbound {
		return false
	}
	if e.Status == CallStatusNotAnswered {
		return true
	}
	return e.Status == "" && e.Duration == 0 && e.Kind == EventEnded
}
