package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
)

func newTestRecorder(t *testing.T) (*Recorder, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewRecorder(s), s
}

func seedIncident(t *testing.T, s *store.Store) string {
	t.Helper()
	inc := &models.Incident{
		ID:         "inc-1",
		Title:      "test",
		Severity:   models.SeverityLow,
		Service:    "svc",
		Status:     models.IncidentDetected,
		DetectedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateIncident(context.Background(), inc))
	return inc.ID
}

func TestRecordAssignsULID(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()
	id := seedIncident(t, s)

	var event *models.IncidentEvent
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		event, err = r.Record(ctx, tx, id, models.EventNote, "first note", "alice", map[string]string{"k": "v"})
		return err
	}))

	assert.Len(t, event.ID, 26)
	assert.Equal(t, models.EventNote, event.Type)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestTimelinePreservesCreationOrder(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()
	id := seedIncident(t, s)

	descriptions := []string{"one", "two", "three", "four"}
	for _, d := range descriptions {
		require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
			_, err := r.Record(ctx, tx, id, models.EventNote, d, "alice", nil)
			return err
		}))
	}

	events, err := r.Timeline(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i, d := range descriptions {
		assert.Equal(t, d, events[i].Description)
	}
	// ULIDs are monotonically comparable as strings within the sequence.
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].ID, events[i].ID)
	}
}

func TestRecordFailsInsideAbortedTransaction(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()
	id := seedIncident(t, s)

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := r.Record(ctx, tx, id, models.EventNote, "will vanish", "alice", nil); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	events, err := r.Timeline(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, events)
}
