package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/remedyops/remedy/internal/models"
)

const eventColumns = `id, incident_id, type, description, actor, metadata, created_at`

func insertEvent(ctx context.Context, q querier, e *models.IncidentEvent) error {
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = q.ExecContext(ctx, `INSERT INTO incident_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.IncidentID, string(e.Type), e.Description, e.Actor, metadata,
		timeToNano(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func scanEvent(row interface{ Scan(...any) error }) (*models.IncidentEvent, error) {
	var (
		e         models.IncidentEvent
		metadata  sql.NullString
		eventType string
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.IncidentID, &eventType, &e.Description, &e.Actor,
		&metadata, &createdAt); err != nil {
		return nil, err
	}

	e.Type = models.IncidentEventType(eventType)
	e.CreatedAt = nanoToTime(createdAt)
	if err := unmarshalJSON(metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &e, nil
}

// InsertEvent appends a timeline event inside the transaction. There is
// no update or delete path for events.
func (t *Tx) InsertEvent(ctx context.Context, e *models.IncidentEvent) error {
	return insertEvent(ctx, t.tx, e)
}

// ListEventsByIncident returns an incident's timeline in ascending
// creation order, with the ULID event ID as a stable tiebreaker.
func (s *Store) ListEventsByIncident(ctx context.Context, incidentID string) ([]*models.IncidentEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM incident_events WHERE incident_id = ?
		 ORDER BY created_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*models.IncidentEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
