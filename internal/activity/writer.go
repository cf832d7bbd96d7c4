package activity

import (
	"context"
	"fmt"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
)

// Store is the activity capability of one backend.
// Create returns the backend identifier of the new record, which may be empty.
type Store interface {
	Create(ctx context.Context, payload domain.ActivityPayload) (string, error)
}

// Builder maps a resolved contact and a call event to the backend's payload variant.
// Builders are pure: no I/O, no clock.
type Builder func(contact domain.ContactRecord, event *domain.CallEvent) domain.ActivityPayload

// Writer records one call activity per event in one backend.
type Writer struct {
	backend string
	store   Store
	build   Builder
	log     *logger.Logger
}

// NewWriter creates an activity writer for backend.
func NewWriter(backend string, store Store, build Builder, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{
		backend: backend,
		store:   store,
		build:   build,
		log:     log,
	}
}

// Record builds the payload for event linked to contact and submits it once.
// There is no idempotency key: a redelivered event writes a second record.
func (w *Writer) Record(ctx context.Context, contact domain.ContactRecord, event *domain.CallEvent) (domain.ActivityRecord, error) {
	if contact.ID == "" {
		return domain.ActivityRecord{}, domain.NewValidationError("contact_id", "activity requires a resolved contact")
	}

	payload := w.build(contact, event)

	id, err := w.store.Create(ctx, payload)
	if err != nil {
		return domain.ActivityRecord{}, fmt.Errorf("activity write failed: %w", err)
	}

	record := domain.NewActivityRecord(w.backend, id, payload)

	w.log.Info(ctx, "activity recorded",
		logger.Module("activity"),
		logger.Action("record"),
		logger.Backend(w.backend),
		zap.String("activity_kind", string(record.Kind)),
		zap.String("activity_id", record.ID),
		zap.String("contact_id", record.ContactID),
	)

	return record, nil
}
