package oncall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := NewResolver(s)
	r.now = func() time.Time { return testNow }
	return r, s
}

func addSchedule(t *testing.T, s *store.Store, id, engineer, service string, priority models.EscalationPriority) {
	t.Helper()
	require.NoError(t, s.CreateSchedule(context.Background(), &models.OnCallSchedule{
		ID:        id,
		Engineer:  engineer,
		Service:   service,
		StartTime: testNow.Add(-time.Hour),
		EndTime:   testNow.Add(time.Hour),
		Priority:  priority,
		Channel:   models.ChannelWebhook,
		Active:    true,
	}))
}

func TestCurrentPrefersPrimary(t *testing.T) {
	r, s := newTestResolver(t)
	addSchedule(t, s, "s1", "bob", "checkout", models.PrioritySecondary)
	addSchedule(t, s, "s2", "alice", "checkout", models.PriorityPrimary)

	sched, err := r.Current(context.Background(), "checkout")
	require.NoError(t, err)
	assert.Equal(t, "alice", sched.Engineer)
}

func TestCurrentSpecificBeatsWildcard(t *testing.T) {
	r, s := newTestResolver(t)
	addSchedule(t, s, "s1", "oncall-global", "", models.PriorityPrimary)
	addSchedule(t, s, "s2", "alice", "checkout", models.PriorityPrimary)

	sched, err := r.Current(context.Background(), "checkout")
	require.NoError(t, err)
	assert.Equal(t, "alice", sched.Engineer)

	// Services with no dedicated schedule fall through to the wildcard.
	sched, err = r.Current(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, "oncall-global", sched.Engineer)
}

func TestCurrentIgnoresExpiredShifts(t *testing.T) {
	r, s := newTestResolver(t)
	require.NoError(t, s.CreateSchedule(context.Background(), &models.OnCallSchedule{
		ID:        "old",
		Engineer:  "carol",
		Service:   "checkout",
		StartTime: testNow.Add(-48 * time.Hour),
		EndTime:   testNow.Add(-24 * time.Hour),
		Priority:  models.PriorityPrimary,
		Channel:   models.ChannelWebhook,
		Active:    true,
	}))

	_, err := r.Current(context.Background(), "checkout")
	assert.ErrorIs(t, err, remerrors.ErrNotFound)
}

func TestEscalationTarget(t *testing.T) {
	r, s := newTestResolver(t)
	addSchedule(t, s, "s1", "alice", "checkout", models.PriorityPrimary)
	addSchedule(t, s, "s2", "bob", "checkout", models.PrioritySecondary)
	addSchedule(t, s, "s3", "carol", "checkout", models.PriorityTertiary)

	next, err := r.EscalationTarget(context.Background(), "checkout", "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", next.Engineer)

	next, err = r.EscalationTarget(context.Background(), "checkout", "bob")
	require.NoError(t, err)
	assert.Equal(t, "carol", next.Engineer)

	// Chain exhausted.
	_, err = r.EscalationTarget(context.Background(), "checkout", "carol")
	assert.ErrorIs(t, err, remerrors.ErrNotFound)
}
