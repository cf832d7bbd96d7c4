package domain

import "time"

// SyncState é o estado de um evento em um backend.
type SyncState string

const (
	StateReceived         SyncState = "received"
	StateContactResolving SyncState = "contact_resolving"
	StateContactResolved  SyncState = "contact_resolved"
	StateActivityWriting  SyncState = "activity_writing"
	StateCompleted        SyncState = "completed"
	StateFailed           SyncState = "failed"
)

// OverallStatus agrega os resultados por backend.
type OverallStatus string

const (
	OverallCompleted      OverallStatus = "completed"
	OverallPartialSuccess OverallStatus = "partial_success"
	OverallFailed         OverallStatus = "failed"
)

// BackendOutcome é o resultado de um backend para um evento.
//
// FailedAt guarda o último estado alcançado antes da falha.
type BackendOutcome struct {
	Backend   string          `json:"backend"`
	State     SyncState       `json:"state"`
	FailedAt  SyncState       `json:"failedAt,omitempty"`
	Contact   *ContactRecord  `json:"contact,omitempty"`
	Activity  *ActivityRecord `json:"activity,omitempty"`
	Err       error           `json:"-"`
	ErrorKind ErrorKind       `json:"errorKind,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// Succeeded reports whether the backend reached Completed.
func (o BackendOutcome) Succeeded() bool {
	return o.State == StateCompleted
}

// SyncResult é o mapa de resultados por backend de um evento.
type SyncResult struct {
	EventID   string                    `json:"eventId"`
	EventKind EventKind                 `json:"eventKind"`
	Status    OverallStatus             `json:"status"`
	Outcomes  map[string]BackendOutcome `json:"outcomes"`
}

// Aggregate computes the overall status from the per-backend outcomes.
// An empty outcome map counts as failed.
func Aggregate(outcomes map[string]BackendOutcome) OverallStatus {
	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		}
	}

	switch {
	case succeeded == 0:
		return OverallFailed
	case succeeded == len(outcomes):
		return OverallCompleted
	default:
		return OverallPartialSuccess
	}
}
