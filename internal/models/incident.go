// Package models defines the persisted entities of the incident-response
// core: incidents, hypotheses, actions, timeline events, learned patterns,
// on-call schedules and notifications.
package models

import (
	"time"
)

// Severity captures incident impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IncidentStatus represents the current lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentDetected        IncidentStatus = "detected"
	IncidentAnalyzing       IncidentStatus = "analyzing"
	IncidentPendingApproval IncidentStatus = "pending_approval"
	IncidentApproved        IncidentStatus = "approved"
	IncidentExecuting       IncidentStatus = "executing"
	IncidentResolved        IncidentStatus = "resolved"
	IncidentEscalated       IncidentStatus = "escalated"
)

// incidentTransitions is the closed transition table for incidents.
// Transitions are driven by action state changes or explicit
// detection/assignment/resolution calls, never by timers.
var incidentTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentDetected:        {IncidentAnalyzing, IncidentEscalated, IncidentResolved},
	IncidentAnalyzing:       {IncidentPendingApproval, IncidentEscalated, IncidentResolved},
	IncidentPendingApproval: {IncidentApproved, IncidentEscalated, IncidentResolved},
	IncidentApproved:        {IncidentExecuting, IncidentEscalated, IncidentResolved},
	IncidentExecuting:       {IncidentResolved, IncidentEscalated},
	IncidentEscalated:       {IncidentAnalyzing, IncidentPendingApproval, IncidentResolved},
	IncidentResolved:        {},
}

// CanTransition reports whether moving from the current status to target
// is a legal incident transition.
func (s IncidentStatus) CanTransition(target IncidentStatus) bool {
	for _, next := range incidentTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s IncidentStatus) IsTerminal() bool {
	return len(incidentTransitions[s]) == 0
}

// MetricReading is one entry of an incident's metric snapshot.
type MetricReading struct {
	Current   float64 `json:"current"`
	Expected  float64 `json:"expected"`
	Deviation float64 `json:"deviation"`
}

// Incident represents a detected anomaly and everything learned about it.
// Incidents are never deleted; resolved incidents are kept for history
// and learning.
type Incident struct {
	ID                    string                   `json:"id"`
	Title                 string                   `json:"title"`
	Description           string                   `json:"description,omitempty"`
	Severity              Severity                 `json:"severity"`
	Service               string                   `json:"service"`
	Components            []string                 `json:"components,omitempty"`
	Category              string                   `json:"category,omitempty"`
	Status                IncidentStatus           `json:"status"`
	DetectedAt            time.Time                `json:"detectedAt"`
	DetectionSource       string                   `json:"detectionSource,omitempty"`
	MetricsSnapshot       map[string]MetricReading `json:"metricsSnapshot,omitempty"`
	Context               map[string]string        `json:"context,omitempty"`
	AssignedTo            string                   `json:"assignedTo,omitempty"`
	ResolvedAt            *time.Time               `json:"resolvedAt,omitempty"`
	ResolutionTimeSeconds float64                  `json:"resolutionTimeSeconds,omitempty"`
	Version               int64                    `json:"version"`
}

// Resolve marks the incident resolved at the given instant and computes
// the resolution duration from the detection time.
func (i *Incident) Resolve(at time.Time) {
	i.Status = IncidentResolved
	i.ResolvedAt = &at
	i.ResolutionTimeSeconds = at.Sub(i.DetectedAt).Seconds()
}

// Hypothesis is a ranked candidate root cause attached to an incident.
// Once validation feedback is recorded only the validation fields may
// change.
type Hypothesis struct {
	ID                string            `json:"id"`
	IncidentID        string            `json:"incidentId"`
	Description       string            `json:"description"`
	Category          string            `json:"category"`
	Confidence        float64           `json:"confidence"` // 0.0 - 1.0
	Evidence          map[string]string `json:"evidence,omitempty"`
	SupportingSignals []string          `json:"supportingSignals,omitempty"`
	Rank              int               `json:"rank"` // >= 1, unique per incident
	SourceModel       string            `json:"sourceModel,omitempty"`
	Validated         *bool             `json:"validated,omitempty"`
	ValidationNote    string            `json:"validationNote,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}
