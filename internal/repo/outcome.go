package repo

import (
	"context"
	"fmt"
	"time"

	"aircall-sync/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutcomeRow é uma linha do journal: um evento em um backend.
type OutcomeRow struct {
	ID           string
	EventID      string
	EventKind    domain.EventKind
	Backend      string
	State        domain.SyncState
	FailedAt     domain.SyncState
	ErrorKind    domain.ErrorKind
	ErrorText    string
	ContactID    string
	ActivityID   string
	ActivityKind domain.ActivityKind
	Overall      domain.OverallStatus
	Duration     time.Duration
	CreatedAt    time.Time
}

// OutcomeRepository persists per-backend sync outcomes for manual reconciliation.
type OutcomeRepository struct {
	pool *pgxpool.Pool
}

func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

// RowsFromResult flattens a SyncResult into one row per backend.
func RowsFromResult(result domain.SyncResult) []OutcomeRow {
	rows := make([]OutcomeRow, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		row := OutcomeRow{
			ID:        uuid.NewString(),
			EventID:   result.EventID,
			EventKind: result.EventKind,
			Backend:   o.Backend,
			State:     o.State,
			FailedAt:  o.FailedAt,
			ErrorKind: o.ErrorKind,
			Overall:   result.Status,
			Duration:  o.Duration,
		}
		if o.Err != nil {
			row.ErrorText = o.Err.Error()
		}
		if o.Contact != nil {
			row.ContactID = o.Contact.ID
		}
		if o.Activity != nil {
			row.ActivityID = o.Activity.ID
			row.ActivityKind = o.Activity.Kind
		}
		rows = append(rows, row)
	}
	return rows
}

// InsertResult writes every backend outcome of result in one batch.
func (r *OutcomeRepository) InsertResult(ctx context.Context, result domain.SyncResult) error {
	rows := RowsFromResult(result)
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO sync_outcomes (
			id, event_id, event_kind, backend, state, failed_at, error_kind, error_text,
			contact_id, activity_id, activity_kind, overall, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query,
			row.ID, row.EventID, string(row.EventKind), row.Backend, string(row.State),
			nullText(string(row.FailedAt)), nullText(string(row.ErrorKind)), nullText(row.ErrorText),
			nullText(row.ContactID), nullText(row.ActivityID), nullText(string(row.ActivityKind)),
			string(row.Overall), row.Duration.Milliseconds(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert sync outcome for event %s: %w", result.EventID, err)
		}
	}
	return nil
}

// ListByEvent returns the journal rows of one event, oldest first.
func (r *OutcomeRepository) ListByEvent(ctx context.Context, eventID string) ([]OutcomeRow, error) {
	query := `
		SELECT id, event_id, event_kind, backend, state, failed_at, error_kind, error_text,
		       contact_id, activity_id, activity_kind, overall, duration_ms, created_at
		FROM sync_outcomes
		WHERE event_id = $1
		ORDER BY created_at ASC, backend ASC
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var (
			row                                 OutcomeRow
			eventKind, state, overall           string
			failedAt, errorKind, errorText      pgtype.Text
			contactID, activityID, activityKind pgtype.Text
			durationMs                          int64
		)
		if err := rows.Scan(
			&row.ID, &row.EventID, &eventKind, &row.Backend, &state, &failedAt, &errorKind, &errorText,
			&contactID, &activityID, &activityKind, &overall, &durationMs, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync outcome: %w", err)
		}

		row.EventKind = domain.EventKind(eventKind)
		row.State = domain.SyncState(state)
		row.Overall = domain.OverallStatus(overall)
		row.FailedAt = domain.SyncState(textValue(failedAt))
		row.ErrorKind = domain.ErrorKind(textValue(errorKind))
		row.ErrorText = textValue(errorText)
		row.ContactID = textValue(contactID)
		row.ActivityID = textValue(activityID)
		row.ActivityKind = domain.ActivityKind(textValue(activityKind))
		row.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync outcomes: %w", err)
	}
	return out, nil
}

// CleanupOlderThan deletes journal rows created before now minus retention.
func (r *OutcomeRepository) CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM sync_outcomes WHERE created_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sync outcomes: %w", err)
	}
	return result.RowsAffected(), nil
}

// Ping checks the journal database connection.
func (r *OutcomeRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
