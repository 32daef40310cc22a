package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ActionStatus
		to      ActionStatus
		allowed bool
	}{
		{"pending to approved", ActionPendingApproval, ActionApproved, true},
		{"pending to rejected", ActionPendingApproval, ActionRejected, true},
		{"pending to executing", ActionPendingApproval, ActionExecuting, false},
		{"pending to succeeded", ActionPendingApproval, ActionSucceeded, false},
		{"approved to executing", ActionApproved, ActionExecuting, true},
		{"approved to rejected", ActionApproved, ActionRejected, false},
		{"executing to succeeded", ActionExecuting, ActionSucceeded, true},
		{"executing to failed", ActionExecuting, ActionFailed, true},
		{"executing to approved", ActionExecuting, ActionApproved, false},
		{"rejected is terminal", ActionRejected, ActionApproved, false},
		{"succeeded is terminal", ActionSucceeded, ActionExecuting, false},
		{"failed is terminal", ActionFailed, ActionExecuting, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestActionTerminalStates(t *testing.T) {
	assert.True(t, ActionRejected.IsTerminal())
	assert.True(t, ActionSucceeded.IsTerminal())
	assert.True(t, ActionFailed.IsTerminal())
	assert.False(t, ActionPendingApproval.IsTerminal())
	assert.False(t, ActionApproved.IsTerminal())
	assert.False(t, ActionExecuting.IsTerminal())
}

func TestIncidentTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    IncidentStatus
		to      IncidentStatus
		allowed bool
	}{
		{"detected to analyzing", IncidentDetected, IncidentAnalyzing, true},
		{"detected to executing", IncidentDetected, IncidentExecuting, false},
		{"analyzing to pending approval", IncidentAnalyzing, IncidentPendingApproval, true},
		{"pending to approved", IncidentPendingApproval, IncidentApproved, true},
		{"approved to executing", IncidentApproved, IncidentExecuting, true},
		{"executing to resolved", IncidentExecuting, IncidentResolved, true},
		{"executing to escalated", IncidentExecuting, IncidentEscalated, true},
		{"escalated back to analyzing", IncidentEscalated, IncidentAnalyzing, true},
		{"escalated to resolved", IncidentEscalated, IncidentResolved, true},
		{"resolved is terminal", IncidentResolved, IncidentAnalyzing, false},
		{"any stage can escalate", IncidentPendingApproval, IncidentEscalated, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestIncidentResolve(t *testing.T) {
	detected := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	resolved := detected.Add(42 * time.Minute)

	inc := &Incident{Status: IncidentExecuting, DetectedAt: detected}
	inc.Resolve(resolved)

	assert.Equal(t, IncidentResolved, inc.Status)
	require.NotNil(t, inc.ResolvedAt)
	assert.Equal(t, resolved, *inc.ResolvedAt)
	assert.InDelta(t, 2520.0, inc.ResolutionTimeSeconds, 0.001)
}

func TestPatternID(t *testing.T) {
	assert.Equal(t, "checkout:memory_leak", PatternID("checkout", "memory_leak"))
}

func TestPatternClone(t *testing.T) {
	p := &IncidentPattern{
		ID:               "svc:cat",
		SignalIndicators: []string{"latency_p99"},
	}
	clone := p.Clone()
	clone.SignalIndicators[0] = "changed"
	clone.OccurrenceCount = 99

	assert.Equal(t, "latency_p99", p.SignalIndicators[0])
	assert.Zero(t, p.OccurrenceCount)
}

func TestNotificationSLAMet(t *testing.T) {
	sent := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	within := sent.Add(5 * time.Minute)
	late := sent.Add(20 * time.Minute)

	n := Notification{SLATargetSeconds: 900, SentAt: &sent}
	assert.False(t, n.SLAMet(), "unacknowledged never meets SLA")

	n.AcknowledgedAt = &within
	assert.True(t, n.SLAMet())

	n.AcknowledgedAt = &late
	assert.False(t, n.SLAMet())
}

func TestScheduleCoversAt(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Hour)
	sched := &OnCallSchedule{Engineer: "alice", StartTime: start, EndTime: end, Active: true}

	assert.True(t, sched.CoversAt(start))
	assert.True(t, sched.CoversAt(start.Add(6*time.Hour)))
	assert.False(t, sched.CoversAt(end), "end is exclusive")
	assert.False(t, sched.CoversAt(start.Add(-time.Second)))

	sched.Active = false
	assert.False(t, sched.CoversAt(start.Add(time.Hour)))
}

func TestScheduleMatches(t *testing.T) {
	wildcard := &OnCallSchedule{Engineer: "bob"}
	assert.True(t, wildcard.Matches("anything"))

	specific := &OnCallSchedule{Engineer: "carol", Service: "checkout"}
	assert.True(t, specific.Matches("checkout"))
	assert.False(t, specific.Matches("payments"))
}

func TestEscalationPriorityOrder(t *testing.T) {
	assert.Less(t, PriorityPrimary.Order(), PrioritySecondary.Order())
	assert.Less(t, PrioritySecondary.Order(), PriorityTertiary.Order())
	assert.Greater(t, EscalationPriority("bogus").Order(), PriorityTertiary.Order())
}
