package store

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testIncident(id string) *models.Incident {
	return &models.Incident{
		ID:         id,
		Title:      "Latency spike on checkout",
		Severity:   models.SeverityHigh,
		Service:    "checkout",
		Category:   "resource_saturation",
		Status:     models.IncidentDetected,
		DetectedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		MetricsSnapshot: map[string]models.MetricReading{
			"latency_p99": {Current: 2400, Expected: 300, Deviation: 7.0},
		},
	}
}

func TestIncidentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inc := testIncident("inc-1")
	require.NoError(t, s.CreateIncident(ctx, inc))

	got, err := s.GetIncident(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, inc.Title, got.Title)
	assert.Equal(t, models.IncidentDetected, got.Status)
	assert.Equal(t, int64(1), got.Version)
	require.Contains(t, got.MetricsSnapshot, "latency_p99")
	assert.InDelta(t, 7.0, got.MetricsSnapshot["latency_p99"].Deviation, 0.001)
	assert.True(t, got.DetectedAt.Equal(inc.DetectedAt))
	assert.Nil(t, got.ResolvedAt)
}

func TestGetIncidentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetIncident(context.Background(), "missing")
	assert.ErrorIs(t, err, remerrors.ErrNotFound)
}

func TestIncidentOptimisticConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIncident(ctx, testIncident("inc-1")))

	var first, second *models.Incident
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		var err error
		first, err = tx.GetIncident(ctx, "inc-1")
		return err
	}))
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		var err error
		second, err = tx.GetIncident(ctx, "inc-1")
		return err
	}))

	first.Status = models.IncidentAnalyzing
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateIncident(ctx, first)
	}))

	// The second writer holds a stale version.
	conflictsBefore := testutil.ToFloat64(telemetry.TransitionConflicts)
	second.Status = models.IncidentEscalated
	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateIncident(ctx, second)
	})
	assert.ErrorIs(t, err, remerrors.ErrConcurrentModification)
	assert.Equal(t, conflictsBefore+1, testutil.ToFloat64(telemetry.TransitionConflicts))

	got, err := s.GetIncident(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.IncidentAnalyzing, got.Status, "first writer wins")
}

func TestActionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIncident(ctx, testIncident("inc-1")))

	action := &models.Action{
		ID:               "act-1",
		IncidentID:       "inc-1",
		Type:             models.ActionRestartService,
		TargetService:    "checkout",
		RiskLevel:        models.RiskMedium,
		RiskScore:        0.4,
		Status:           models.ActionPendingApproval,
		RequiresApproval: true,
		Parameters:       map[string]string{"grace": "30s"},
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.CreateAction(ctx, action))

	got, err := s.GetAction(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, models.ActionRestartService, got.Type)
	assert.Equal(t, "30s", got.Parameters["grace"])
	assert.Nil(t, got.ExecutionResult)

	list, err := s.ListActionsByIncident(ctx, "inc-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestEventOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIncident(ctx, testIncident("inc-1")))

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	// Same timestamp; ULID lexicographic order breaks the tie.
	ids := []string{"01AAAAAAAAAAAAAAAAAAAAAAAA", "01BBBBBBBBBBBBBBBBBBBBBBBB", "01CCCCCCCCCCCCCCCCCCCCCCCC"}
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		for _, id := range ids {
			err := tx.InsertEvent(ctx, &models.IncidentEvent{
				ID:          id,
				IncidentID:  "inc-1",
				Type:        models.EventNote,
				Description: "note " + id,
				Actor:       "tester",
				CreatedAt:   at,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	events, err := s.ListEventsByIncident(ctx, "inc-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, id := range ids {
		assert.Equal(t, id, events[i].ID)
	}
}

func TestPatternUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := &models.IncidentPattern{
		ID:              "checkout:memory_leak",
		Name:            "checkout memory_leak incidents",
		Service:         "checkout",
		Category:        "memory_leak",
		OccurrenceCount: 1,
		SuccessRate:     1.0,
		FirstSeen:       now,
		LastSeen:        now,
	}
	require.NoError(t, s.UpsertPattern(ctx, p))

	p.OccurrenceCount = 2
	p.SuccessRate = 0.5
	p.LastSeen = now.Add(time.Hour)
	require.NoError(t, s.UpsertPattern(ctx, p))

	got, err := s.GetPattern(ctx, "checkout:memory_leak")
	require.NoError(t, err)
	assert.Equal(t, 2, got.OccurrenceCount)
	assert.InDelta(t, 0.5, got.SuccessRate, 0.001)
	assert.True(t, got.FirstSeen.Equal(now), "first seen survives upserts")

	all, err := s.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScheduleValidation(t *testing.T) {
	s := newTestStore(t)
	start := time.Now().UTC()

	err := s.CreateSchedule(context.Background(), &models.OnCallSchedule{
		ID:        "sched-1",
		Engineer:  "alice",
		StartTime: start,
		EndTime:   start,
		Priority:  models.PriorityPrimary,
		Channel:   models.ChannelWebhook,
	})
	assert.Error(t, err)
}

func TestNotificationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIncident(ctx, testIncident("inc-1")))

	n := &models.Notification{
		ID:               "notif-1",
		IncidentID:       "inc-1",
		Engineer:         "alice",
		Channel:          models.ChannelWebhook,
		Priority:         models.SeverityHigh,
		SLATargetSeconds: 900,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.CreateNotification(ctx, n))

	sent := time.Now().UTC()
	n.SentAt = &sent
	require.NoError(t, s.UpdateNotification(ctx, n))

	got, err := s.GetNotification(ctx, "notif-1")
	require.NoError(t, err)
	require.NotNil(t, got.SentAt)
	assert.Nil(t, got.AcknowledgedAt)
	assert.False(t, got.Escalated)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.CreateIncident(ctx, testIncident("inc-rollback")); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = s.GetIncident(ctx, "inc-rollback")
	assert.ErrorIs(t, err, remerrors.ErrNotFound)
}
