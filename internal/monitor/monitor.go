// Package monitor drives the detection and analysis pipeline. It owns
// no timers: CheckOnce and GenerateOnce perform a single pass each and
// are scheduled by the caller (CLI invocation or the server loop).
package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/remedyops/remedy/internal/ai"
	"github.com/remedyops/remedy/internal/learning"
	"github.com/remedyops/remedy/internal/lifecycle"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/notify"
	"github.com/remedyops/remedy/internal/store"
)

// ServiceMetrics is one service's current readings from a metrics source.
type ServiceMetrics struct {
	Service string
	Metrics map[string]models.MetricReading
}

// MetricsSource supplies current readings for monitored services.
type MetricsSource interface {
	Collect(ctx context.Context) ([]ServiceMetrics, error)
}

// StaticSource returns a fixed set of readings. Used by the check-once
// command and in tests.
type StaticSource struct {
	Readings []ServiceMetrics
}

func (s *StaticSource) Collect(context.Context) ([]ServiceMetrics, error) {
	return s.Readings, nil
}

// Monitor runs detection sweeps and the analysis pipeline.
type Monitor struct {
	store     *store.Store
	lifecycle *lifecycle.Engine
	learning  *learning.Engine
	generator ai.HypothesisGenerator
	planner   *ai.Planner
	notifier  *notify.Manager
	source    MetricsSource
	threshold float64 // minimum |deviation| that opens an incident
	now       func() time.Time
}

// Config wires a monitor.
type Config struct {
	Store     *store.Store
	Lifecycle *lifecycle.Engine
	Learning  *learning.Engine
	Generator ai.HypothesisGenerator
	Planner   *ai.Planner
	Notifier  *notify.Manager
	Source    MetricsSource
	Threshold float64
}

// New creates a monitor.
func New(cfg Config) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.25
	}
	return &Monitor{
		store:     cfg.Store,
		lifecycle: cfg.Lifecycle,
		learning:  cfg.Learning,
		generator: cfg.Generator,
		planner:   cfg.Planner,
		notifier:  cfg.Notifier,
		source:    cfg.Source,
		threshold: cfg.Threshold,
		now:       time.Now,
	}
}

// openStatuses are the incident states that suppress duplicate detection
// for the same service.
var openStatuses = []models.IncidentStatus{
	models.IncidentDetected,
	models.IncidentAnalyzing,
	models.IncidentPendingApproval,
	models.IncidentApproved,
	models.IncidentExecuting,
	models.IncidentEscalated,
}

// CheckOnce performs one detection sweep: collect readings, open an
// incident per service whose metrics deviate past the threshold, and
// escalate overdue notifications on open incidents. Returns the newly
// created incidents.
func (m *Monitor) CheckOnce(ctx context.Context) ([]*models.Incident, error) {
	if m.source == nil {
		return nil, fmt.Errorf("no metrics source configured")
	}
	readings, err := m.source.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	open, err := m.openServices(ctx)
	if err != nil {
		return nil, err
	}

	var created []*models.Incident
	for _, svc := range readings {
		if open[svc.Service] {
			continue
		}
		inc := m.detect(svc)
		if inc == nil {
			continue
		}
		if err := m.lifecycle.CreateIncident(ctx, inc); err != nil {
			return created, err
		}
		log.Info().Str("incident", inc.ID).Str("service", inc.Service).
			Str("severity", string(inc.Severity)).Msg("Incident detected")
		created = append(created, inc)
	}

	if m.notifier != nil {
		if err := m.sweepSLAs(ctx); err != nil {
			log.Warn().Err(err).Msg("SLA escalation sweep failed")
		}
	}
	return created, nil
}

func (m *Monitor) openServices(ctx context.Context) (map[string]bool, error) {
	open := map[string]bool{}
	for _, status := range openStatuses {
		incidents, err := m.store.ListIncidentsByStatus(ctx, status, 0)
		if err != nil {
			return nil, err
		}
		for _, inc := range incidents {
			open[inc.Service] = true
		}
	}
	return open, nil
}

// detect builds an incident from a service's readings, or nil when no
// metric deviates past the threshold.
func (m *Monitor) detect(svc ServiceMetrics) *models.Incident {
	snapshot := map[string]models.MetricReading{}
	worst := 0.0
	worstMetric := ""
	for name, r := range svc.Metrics {
		if r.Deviation == 0 && r.Expected != 0 {
			r.Deviation = (r.Current - r.Expected) / r.Expected
		}
		snapshot[name] = r
		if math.Abs(r.Deviation) > math.Abs(worst) {
			worst = r.Deviation
			worstMetric = name
		}
	}
	if math.Abs(worst) < m.threshold {
		return nil
	}

	return &models.Incident{
		ID:       uuid.NewString(),
		Title:    fmt.Sprintf("%s anomaly on %s", worstMetric, svc.Service),
		Severity: severityForDeviation(math.Abs(worst)),
		Service:  svc.Service,
		Description: fmt.Sprintf("%s deviated %.0f%% from expected",
			worstMetric, worst*100),
		Status:          models.IncidentDetected,
		DetectedAt:      m.now(),
		DetectionSource: "metrics",
		MetricsSnapshot: snapshot,
	}
}

func severityForDeviation(deviation float64) models.Severity {
	switch {
	case deviation >= 2.0:
		return models.SeverityCritical
	case deviation >= 1.0:
		return models.SeverityHigh
	case deviation >= 0.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func (m *Monitor) sweepSLAs(ctx context.Context) error {
	for _, status := range openStatuses {
		incidents, err := m.store.ListIncidentsByStatus(ctx, status, 0)
		if err != nil {
			return err
		}
		for _, inc := range incidents {
			if _, err := m.notifier.EscalateOverdue(ctx, inc); err != nil {
				log.Warn().Err(err).Str("incident", inc.ID).Msg("Escalation failed")
			}
		}
	}
	return nil
}

// GenerateOnce advances every DETECTED incident through analysis: start
// analysis, generate hypotheses (confidence-adjusted by learned
// patterns), propose remediation actions for the top hypothesis, and
// page the on-call engineer. Returns the number of incidents processed.
func (m *Monitor) GenerateOnce(ctx context.Context) (int, error) {
	detected, err := m.store.ListIncidentsByStatus(ctx, models.IncidentDetected, 0)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, inc := range detected {
		if err := m.analyzeIncident(ctx, inc); err != nil {
			log.Error().Err(err).Str("incident", inc.ID).Msg("Analysis failed")
			continue
		}
		processed++
	}
	return processed, nil
}

func (m *Monitor) analyzeIncident(ctx context.Context, inc *models.Incident) error {
	if err := m.lifecycle.BeginAnalysis(ctx, inc.ID, lifecycle.SystemActor); err != nil {
		return err
	}

	hypotheses, err := m.generator.Generate(ctx, inc)
	if err != nil {
		// Analysis cannot proceed and no later pass rescans ANALYZING
		// incidents, so route the incident to a human instead of
		// leaving it stranded.
		if _, escErr := m.lifecycle.EscalateIncident(ctx, inc.ID, lifecycle.SystemActor,
			"Hypothesis generation failed: "+err.Error()); escErr != nil {
			log.Error().Err(escErr).Str("incident", inc.ID).Msg("Failed to escalate after generation failure")
		}
		return fmt.Errorf("generate hypotheses: %w", err)
	}

	if m.learning != nil {
		for _, h := range hypotheses {
			h.Confidence = m.learning.AdjustedConfidence(ctx, inc.Service, h.Category, h.Confidence)
		}
		ai.RankByConfidence(hypotheses)
	}

	if err := m.lifecycle.AttachHypotheses(ctx, inc.ID, hypotheses); err != nil {
		return err
	}

	top := hypotheses[0]
	for _, draft := range m.planner.Plan(inc, top) {
		if err := m.lifecycle.ProposeAction(ctx, draft); err != nil {
			return err
		}
	}

	if m.notifier != nil {
		if _, err := m.notifier.NotifyIncident(ctx, inc); err != nil {
			// Paging failure leaves the incident waiting for approval,
			// it does not abort the analysis.
			log.Warn().Err(err).Str("incident", inc.ID).Msg("Failed to page on-call")
		}
	}
	return nil
}
