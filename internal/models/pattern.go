package models

import (
	"fmt"
	"time"
)

// IncidentPattern is a learned signature of a recurring incident
// category. The in-memory copy held by the learning engine is a cache;
// the durable row is the source of truth across restarts.
type IncidentPattern struct {
	ID                   string    `json:"id"` // "{service}:{category}"
	Name                 string    `json:"name"`
	Service              string    `json:"service"`
	Category             string    `json:"category"`
	SignalIndicators     []string  `json:"signalIndicators,omitempty"`
	ConfidenceAdjustment float64   `json:"confidenceAdjustment"` // signed, clamped
	OccurrenceCount      int       `json:"occurrenceCount"`      // monotone
	SuccessRate          float64   `json:"successRate"`          // 0.0 - 1.0
	FirstSeen            time.Time `json:"firstSeen"`
	LastSeen             time.Time `json:"lastSeen"`
}

// PatternID builds the semantic identity key for a service+category pair.
func PatternID(service, category string) string {
	return fmt.Sprintf("%s:%s", service, category)
}

// Clone returns a deep copy so cached patterns can be handed out without
// exposing the cache's backing slice.
func (p *IncidentPattern) Clone() *IncidentPattern {
	if p == nil {
		return nil
	}
	clone := *p
	if len(p.SignalIndicators) > 0 {
		clone.SignalIndicators = append([]string(nil), p.SignalIndicators...)
	}
	return &clone
}

// OutcomeReport is the feedback captured when an incident reaches a
// conclusion. It drives the pattern merge in the learning engine.
type OutcomeReport struct {
	ID                string     `json:"id"`
	IncidentID        string     `json:"incidentId"`
	HypothesisID      string     `json:"hypothesisId,omitempty"`
	HypothesisCorrect *bool      `json:"hypothesisCorrect,omitempty"`
	ActionID          string     `json:"actionId,omitempty"`
	ActionEffective   *bool      `json:"actionEffective,omitempty"`
	HumanOverride     bool       `json:"humanOverride,omitempty"`
	OverrideReason    string     `json:"overrideReason,omitempty"`
	ResolutionNotes   string     `json:"resolutionNotes,omitempty"`
	CapturedAt        time.Time  `json:"capturedAt"`
}
