package models

import "time"

// ActionStatus represents the approval/execution state of an action.
type ActionStatus string

const (
	ActionPendingApproval ActionStatus = "pending_approval"
	ActionApproved        ActionStatus = "approved"
	ActionRejected        ActionStatus = "rejected"
	ActionExecuting       ActionStatus = "executing"
	ActionSucceeded       ActionStatus = "succeeded"
	ActionFailed          ActionStatus = "failed"
)

// actionTransitions is the closed transition table for actions.
var actionTransitions = map[ActionStatus][]ActionStatus{
	ActionPendingApproval: {ActionApproved, ActionRejected},
	ActionApproved:        {ActionExecuting},
	ActionExecuting:       {ActionSucceeded, ActionFailed},
	ActionRejected:        {},
	ActionSucceeded:       {},
	ActionFailed:          {},
}

// CanTransition reports whether moving to target is legal from the
// current status.
func (s ActionStatus) CanTransition(target ActionStatus) bool {
	for _, next := range actionTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s ActionStatus) IsTerminal() bool {
	return len(actionTransitions[s]) == 0
}

// ActionType enumerates the remediation operations the planner proposes.
type ActionType string

const (
	ActionRestartService ActionType = "restart_service"
	ActionScaleUp        ActionType = "scale_up"
	ActionRollbackDeploy ActionType = "rollback_deploy"
	ActionClearCache     ActionType = "clear_cache"
	ActionFailover       ActionType = "failover"
	ActionRunDiagnostic  ActionType = "run_diagnostic"
)

// RiskLevel indicates the potential impact of an action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ExecutionMode selects between simulated and real execution.
type ExecutionMode string

const (
	ModeDryRun ExecutionMode = "dry_run"
	ModeLive   ExecutionMode = "live"
)

// ExecutionResult captures the outcome of one execution attempt.
type ExecutionResult struct {
	Status    string            `json:"status"` // "success" or "failed"
	Message   string            `json:"message,omitempty"`
	Simulated bool              `json:"simulated,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Action is a proposed or executed remediation tied to exactly one
// incident. Actions are never deleted; terminal actions remain as the
// audit trail.
type Action struct {
	ID               string            `json:"id"`
	IncidentID       string            `json:"incidentId"`
	HypothesisID     string            `json:"hypothesisId,omitempty"`
	Type             ActionType        `json:"type"`
	TargetService    string            `json:"targetService"`
	TargetResource   string            `json:"targetResource,omitempty"`
	RiskLevel        RiskLevel         `json:"riskLevel"`
	RiskScore        float64           `json:"riskScore"` // 0.0 - 1.0
	BlastRadius      string            `json:"blastRadius,omitempty"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	Status           ActionStatus      `json:"status"`
	RequiresApproval bool              `json:"requiresApproval"`
	ApprovedBy       string            `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time        `json:"approvedAt,omitempty"`
	RejectionReason  string            `json:"rejectionReason,omitempty"`
	ExecutionMode    ExecutionMode     `json:"executionMode,omitempty"`
	ExecutedAt       *time.Time        `json:"executedAt,omitempty"`
	ExecutionSeconds float64           `json:"executionSeconds,omitempty"`
	ExecutionResult  *ExecutionResult  `json:"executionResult,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	Version          int64             `json:"version"`
}
