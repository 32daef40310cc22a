package ai

import (
	"math"

	"github.com/remedyops/remedy/internal/models"
)

// actionPlan is the remediation template for one hypothesis category.
type actionPlan struct {
	actionType models.ActionType
	baseRisk   float64
	blast      string
}

// plansByCategory maps hypothesis categories to remediation templates.
// The first entry per category is the preferred action; a diagnostic is
// always appended as the safe alternative.
var plansByCategory = map[string][]actionPlan{
	"bad_deploy": {
		{models.ActionRollbackDeploy, 0.55, "service"},
	},
	"memory_leak": {
		{models.ActionRestartService, 0.4, "service"},
	},
	"resource_saturation": {
		{models.ActionScaleUp, 0.35, "service"},
	},
	"connection_exhaustion": {
		{models.ActionRestartService, 0.4, "service"},
	},
	"backpressure": {
		{models.ActionScaleUp, 0.35, "service"},
	},
	"storage_pressure": {
		{models.ActionClearCache, 0.3, "node"},
	},
	"dependency_failure": {
		{models.ActionFailover, 0.7, "region"},
	},
}

// severityWeight scales action risk with incident impact.
var severityWeight = map[models.Severity]float64{
	models.SeverityLow:      0.0,
	models.SeverityMedium:   0.1,
	models.SeverityHigh:     0.2,
	models.SeverityCritical: 0.3,
}

// Planner turns a hypothesis into proposed remediation actions.
type Planner struct{}

// NewPlanner creates a remediation planner.
func NewPlanner() *Planner { return &Planner{} }

// Plan proposes actions for the hypothesis, most specific first and a
// run_diagnostic fallback last. Every proposal requires approval; the
// returned drafts carry no ID or status, the lifecycle engine assigns
// those at proposal time.
func (p *Planner) Plan(inc *models.Incident, hyp *models.Hypothesis) []*models.Action {
	var actions []*models.Action
	for _, plan := range plansByCategory[hyp.Category] {
		actions = append(actions, p.draft(inc, hyp, plan))
	}
	// Diagnostics carry no blast radius and are always offered.
	actions = append(actions, p.draft(inc, hyp, actionPlan{
		actionType: models.ActionRunDiagnostic,
		baseRisk:   0.05,
		blast:      "none",
	}))
	return actions
}

func (p *Planner) draft(inc *models.Incident, hyp *models.Hypothesis, plan actionPlan) *models.Action {
	score := RiskScore(plan.baseRisk, inc.Severity, hyp.Confidence)
	return &models.Action{
		IncidentID:       inc.ID,
		HypothesisID:     hyp.ID,
		Type:             plan.actionType,
		TargetService:    inc.Service,
		RiskLevel:        RiskLevelFor(score),
		RiskScore:        score,
		BlastRadius:      plan.blast,
		RequiresApproval: true,
		Parameters: map[string]string{
			"hypothesisCategory": hyp.Category,
		},
	}
}

// RiskScore combines the action's inherent risk with incident severity,
// discounted slightly when the hypothesis is high-confidence. Clamped to
// [0, 1].
func RiskScore(baseRisk float64, severity models.Severity, confidence float64) float64 {
	score := baseRisk + severityWeight[severity] - 0.1*confidence
	return math.Max(0, math.Min(1, score))
}

// RiskLevelFor buckets a risk score into a level.
func RiskLevelFor(score float64) models.RiskLevel {
	switch {
	case score >= 0.75:
		return models.RiskCritical
	case score >= 0.5:
		return models.RiskHigh
	case score >= 0.25:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
