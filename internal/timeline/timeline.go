// Package timeline is the append-only event log for incidents. Events
// are written inside the caller's transaction so a failed write aborts
// the state transition that triggered it.
package timeline

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
)

// Recorder appends immutable timeline events and reads timelines back.
type Recorder struct {
	store *store.Store
	now   func() time.Time
}

// NewRecorder creates a timeline recorder over the given store.
func NewRecorder(s *store.Store) *Recorder {
	return &Recorder{store: s, now: time.Now}
}

// Record appends one event inside the caller's transaction. Event IDs are
// ULIDs, so ID order matches creation order as a tiebreaker for events
// created in the same nanosecond.
func (r *Recorder) Record(ctx context.Context, tx *store.Tx, incidentID string, eventType models.IncidentEventType, description, actor string, metadata map[string]string) (*models.IncidentEvent, error) {
	event := &models.IncidentEvent{
		ID:          ulid.Make().String(),
		IncidentID:  incidentID,
		Type:        eventType,
		Description: description,
		Actor:       actor,
		Metadata:    metadata,
		CreatedAt:   r.now(),
	}
	if err := tx.InsertEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Timeline returns all events for an incident in ascending creation
// order, suitable for postmortem reconstruction.
func (r *Recorder) Timeline(ctx context.Context, incidentID string) ([]*models.IncidentEvent, error) {
	return r.store.ListEventsByIncident(ctx, incidentID)
}
