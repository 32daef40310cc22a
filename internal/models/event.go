package models

import "time"

// IncidentEventType describes a timeline event type.
type IncidentEventType string

const (
	EventIncidentDetected  IncidentEventType = "incident_detected"
	EventAnalysisStarted   IncidentEventType = "analysis_started"
	EventHypothesesReady   IncidentEventType = "hypotheses_ready"
	EventIncidentAssigned  IncidentEventType = "incident_assigned"
	EventActionProposed    IncidentEventType = "action_proposed"
	EventActionApproved    IncidentEventType = "action_approved"
	EventActionRejected    IncidentEventType = "action_rejected"
	EventExecutionStarted  IncidentEventType = "execution_started"
	EventExecutionFinished IncidentEventType = "execution_finished"
	EventVerification      IncidentEventType = "verification"
	EventIncidentEscalated IncidentEventType = "incident_escalated"
	EventIncidentResolved  IncidentEventType = "incident_resolved"
	EventNote              IncidentEventType = "note"
)

// IncidentEvent is one immutable entry of an incident's timeline. Events
// are append-only: there is no update or delete path, and the timeline is
// ordered by creation time (event IDs are ULIDs, so ID order matches
// creation order as a tiebreaker).
type IncidentEvent struct {
	ID          string            `json:"id"`
	IncidentID  string            `json:"incidentId"`
	Type        IncidentEventType `json:"type"`
	Description string            `json:"description"`
	Actor       string            `json:"actor"` // system name or person
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
