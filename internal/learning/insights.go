package learning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/remedyops/remedy/internal/models"
)

// Insights summarizes learning over a trailing window. Pure aggregation
// of historical data; computing insights never mutates anything.
type Insights struct {
	WindowDays          int                       `json:"windowDays"`
	Since               time.Time                 `json:"since"`
	OutcomesCaptured    int                       `json:"outcomesCaptured"`
	IncidentsResolved   int                       `json:"incidentsResolved"`
	ResolutionRate      float64                   `json:"resolutionRate"`
	HypothesesReviewed  int                       `json:"hypothesesReviewed"`
	HypothesisAccuracy  float64                   `json:"hypothesisAccuracy"`
	ActionsReviewed     int                       `json:"actionsReviewed"`
	ActionEffectiveness float64                   `json:"actionEffectiveness"`
	HumanOverrides      int                       `json:"humanOverrides"`
	TopPatterns         []*models.IncidentPattern `json:"topPatterns,omitempty"`
}

// GenerateInsights aggregates outcome reports captured in the trailing
// window.
func (e *Engine) GenerateInsights(ctx context.Context, days int) (*Insights, error) {
	if days <= 0 {
		days = 30
	}
	since := e.now().AddDate(0, 0, -days)

	outcomes, err := e.store.ListOutcomesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}

	insights := &Insights{
		WindowDays:       days,
		Since:            since,
		OutcomesCaptured: len(outcomes),
	}

	var hypCorrect, actEffective int
	seenIncidents := make(map[string]bool)
	for _, o := range outcomes {
		if o.HypothesisCorrect != nil {
			insights.HypothesesReviewed++
			if *o.HypothesisCorrect {
				hypCorrect++
			}
		}
		if o.ActionEffective != nil {
			insights.ActionsReviewed++
			if *o.ActionEffective {
				actEffective++
			}
		}
		if o.HumanOverride {
			insights.HumanOverrides++
		}

		if !seenIncidents[o.IncidentID] {
			seenIncidents[o.IncidentID] = true
			if inc, err := e.store.GetIncident(ctx, o.IncidentID); err == nil && inc.Status == models.IncidentResolved {
				insights.IncidentsResolved++
			}
		}
	}

	if len(seenIncidents) > 0 {
		insights.ResolutionRate = float64(insights.IncidentsResolved) / float64(len(seenIncidents))
	}
	if insights.HypothesesReviewed > 0 {
		insights.HypothesisAccuracy = float64(hypCorrect) / float64(insights.HypothesesReviewed)
	}
	if insights.ActionsReviewed > 0 {
		insights.ActionEffectiveness = float64(actEffective) / float64(insights.ActionsReviewed)
	}

	insights.TopPatterns = e.topPatterns(5)
	return insights, nil
}

// topPatterns returns the most frequently seen patterns from the cache.
func (e *Engine) topPatterns(limit int) []*models.IncidentPattern {
	e.mu.RLock()
	defer e.mu.RUnlock()

	patterns := make([]*models.IncidentPattern, 0, len(e.cache))
	for _, p := range e.cache {
		patterns = append(patterns, p.Clone())
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].OccurrenceCount > patterns[j].OccurrenceCount
	})
	if limit > 0 && len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns
}
