package ai

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/remedyops/remedy/internal/models"
)

// HeuristicGenerator produces hypotheses from the incident's metric
// snapshot using fixed signal rules. It needs no network and is the
// fallback when no LLM backend is configured.
type HeuristicGenerator struct{}

// NewHeuristicGenerator creates the rule-based generator.
func NewHeuristicGenerator() *HeuristicGenerator { return &HeuristicGenerator{} }

func (h *HeuristicGenerator) Name() string { return "heuristic" }

// signalRule maps a metric-name fragment to a hypothesis template. Base
// confidence is scaled by how far the metric deviated.
type signalRule struct {
	fragment    string
	category    string
	description string
	base        float64
}

var signalRules = []signalRule{
	{"latency", "resource_saturation", "Elevated latency suggests the service is saturated or a downstream dependency is slow", 0.55},
	{"error", "bad_deploy", "Error rate spike is most often a recent deploy or config push", 0.6},
	{"cpu", "resource_saturation", "CPU pressure indicates undersized capacity or a runaway workload", 0.5},
	{"memory", "memory_leak", "Memory growth beyond the expected envelope points at a leak or cache misconfiguration", 0.5},
	{"connection", "connection_exhaustion", "Connection count anomaly suggests pool exhaustion or a retry storm", 0.5},
	{"queue", "backpressure", "Queue depth growth means consumers are not keeping up with producers", 0.45},
	{"disk", "storage_pressure", "Disk usage or IO anomaly indicates storage pressure", 0.45},
}

// Generate inspects the metric snapshot and emits one hypothesis per
// matching rule, confidence-weighted by deviation. With no matching
// signals it returns a single low-confidence unknown-cause hypothesis.
func (h *HeuristicGenerator) Generate(_ context.Context, inc *models.Incident) ([]*models.Hypothesis, error) {
	// Deterministic iteration over the snapshot.
	names := make([]string, 0, len(inc.MetricsSnapshot))
	for name := range inc.MetricsSnapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	byCategory := map[string]*models.Hypothesis{}
	var hypotheses []*models.Hypothesis
	for _, name := range names {
		reading := inc.MetricsSnapshot[name]
		for _, rule := range signalRules {
			if !strings.Contains(strings.ToLower(name), rule.fragment) {
				continue
			}
			confidence := clampConfidence(rule.base + 0.3*math.Min(math.Abs(reading.Deviation), 1))

			if existing, ok := byCategory[rule.category]; ok {
				// Corroborating signal strengthens the hypothesis.
				existing.Confidence = clampConfidence(existing.Confidence + 0.1)
				existing.SupportingSignals = append(existing.SupportingSignals, name)
				existing.Evidence[name] = fmt.Sprintf("deviation %.2f", reading.Deviation)
				continue
			}

			hyp := &models.Hypothesis{
				IncidentID:        inc.ID,
				Description:       rule.description,
				Category:          rule.category,
				Confidence:        confidence,
				Evidence:          map[string]string{name: fmt.Sprintf("deviation %.2f", reading.Deviation)},
				SupportingSignals: []string{name},
				SourceModel:       h.Name(),
			}
			byCategory[rule.category] = hyp
			hypotheses = append(hypotheses, hyp)
		}
	}

	if len(hypotheses) == 0 {
		hypotheses = append(hypotheses, &models.Hypothesis{
			IncidentID:  inc.ID,
			Description: "No known signal pattern matched; manual investigation required",
			Category:    "unknown",
			Confidence:  0.2,
			SourceModel: h.Name(),
		})
	}
	return hypotheses, nil
}
