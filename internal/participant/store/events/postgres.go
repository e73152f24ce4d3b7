package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registrar/internal/participant/models"
)

// Schema creates the event table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS participant_events (
	stream_key   TEXT        NOT NULL,
	sequence     BIGINT      NOT NULL,
	event_id     UUID        NOT NULL,
	aggregate_id TEXT        NOT NULL,
	kind         TEXT        NOT NULL,
	payload      JSONB       NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (stream_key, sequence)
)`

const uniqueViolation = "23505"

const maxAppendAttempts = 5

// PostgresStore persists streams in PostgreSQL. The next sequence number is
// computed inside the insert; a concurrent append to the same stream loses the
// primary key race and is retried.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the event table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure participant_events schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, aggregateType string, event *models.Event) error {
	kind, payload, err := models.EncodePayload(event.Payload)
	if err != nil {
		return err
	}
	key := streamKey(aggregateType, event.AggregateID)
	query := `
		INSERT INTO participant_events (stream_key, sequence, event_id, aggregate_id, kind, payload, occurred_at)
		SELECT $1::text, COALESCE(MAX(sequence), 0) + 1, $2::uuid, $3::text, $4::text, $5::jsonb, $6::timestamptz
		FROM participant_events
		WHERE stream_key = $1
		RETURNING sequence
	`
	for attempt := 1; ; attempt++ {
		var seq int64
		err = s.db.QueryRowContext(ctx, query,
			key, event.ID.String(), event.AggregateID, string(kind), string(payload), event.OccurredAt,
		).Scan(&seq)
		if err == nil {
			event.Sequence = seq
			return nil
		}
		if !isUniqueViolation(err) || attempt >= maxAppendAttempts {
			return fmt.Errorf("append event to %s: %w", key, err)
		}
	}
}

func (s *PostgresStore) Load(ctx context.Context, aggregateType, aggregateID string) ([]models.Event, error) {
	key := streamKey(aggregateType, aggregateID)
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_id, aggregate_id, kind, payload, occurred_at
		FROM participant_events
		WHERE stream_key = $1
		ORDER BY sequence
	`, key)
	if err != nil {
		return nil, fmt.Errorf("load stream %s: %w", key, err)
	}
	defer rows.Close()

	out := make([]models.Event, 0)
	for rows.Next() {
		var (
			e       models.Event
			eventID uuid.UUID
			kind    string
			payload []byte
		)
		if err := rows.Scan(&e.Sequence, &eventID, &e.AggregateID, &kind, &payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event in %s: %w", key, err)
		}
		e.ID = eventID
		e.Payload, err = models.DecodePayload(models.Kind(kind), payload)
		if err != nil {
			return nil, fmt.Errorf("stream %s sequence %d: %w", key, e.Sequence, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream %s: %w", key, err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
