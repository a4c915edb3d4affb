package event

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/tranquileza/leadflow/internal/db"
	"github.com/tranquileza/leadflow/internal/model"
)

const eventColumns = `id, provider, contact_id, message_id, dedupe_key, payload, status,
	attempt_count, permanent_failed, last_error, resolved_email, created_at, updated_at`

// Store persists raw events in Postgres.
type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes a new raw event. Redeliveries collide on the
// (provider, dedupe_key) or (provider, message_id) unique indexes and are
// silently dropped; the return value reports whether this delivery was the
// first. The event's ID is assigned here when empty.
func (s *Store) Insert(ctx context.Context, ev *model.RawEvent) (bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = model.EventStatusNew
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO raw_events (id, provider, contact_id, message_id, dedupe_key, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`,
		ev.ID, ev.Provider, ev.ContactID, ev.MessageID, ev.DedupeKey, ev.Payload, ev.Status)
	if err != nil {
		return false, eris.Wrap(err, "event: insert")
	}
	return tag.RowsAffected() == 1, nil
}

// PatchStatus records the terminal outcome of one processing pass.
func (s *Store) PatchStatus(ctx context.Context, id string, status model.EventStatus, lastError, resolvedEmail string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE raw_events
		SET status = $1, last_error = $2, resolved_email = $3, updated_at = now()
		WHERE id = $4`,
		status, lastError, resolvedEmail, id)
	if err != nil {
		return eris.Wrapf(err, "event: patch status %s", id)
	}
	return nil
}

// IncrementAttempt bumps the attempt counter and returns the new count.
func (s *Store) IncrementAttempt(ctx context.Context, id string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		UPDATE raw_events
		SET attempt_count = attempt_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING attempt_count`,
		id).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "event: increment attempt %s", id)
	}
	return count, nil
}

// MarkPermanentFailed takes an event out of the reprocessable set for good.
func (s *Store) MarkPermanentFailed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE raw_events
		SET permanent_failed = true, updated_at = now()
		WHERE id = $1`,
		id)
	if err != nil {
		return eris.Wrapf(err, "event: mark permanent failed %s", id)
	}
	return nil
}

// SelectReprocessable returns the oldest unfinished events still inside the
// attempt budget, capped at limit.
func (s *Store) SelectReprocessable(ctx context.Context, maxAttempts, limit int) ([]model.RawEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM raw_events
		WHERE status IN ('new', 'failed')
		  AND NOT permanent_failed
		  AND attempt_count < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		maxAttempts, limit)
	if err != nil {
		return nil, eris.Wrap(err, "event: select reprocessable")
	}
	return scanEvents(rows)
}

// ListRecent returns the newest events for the debug surface.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]model.RawEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM raw_events
		ORDER BY created_at DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "event: list recent")
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]model.RawEvent, error) {
	defer rows.Close()

	var events []model.RawEvent
	for rows.Next() {
		var ev model.RawEvent
		if err := rows.Scan(
			&ev.ID, &ev.Provider, &ev.ContactID, &ev.MessageID, &ev.DedupeKey,
			&ev.Payload, &ev.Status, &ev.AttemptCount, &ev.PermanentFailed,
			&ev.LastError, &ev.ResolvedEmail, &ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "event: scan row")
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "event: iterate rows")
	}
	return events, nil
}
