// Package executor defines the capability interface invoked when an
// approved action runs in live mode, and the simulator used for dry
// runs.
package executor

import (
	"context"

	"github.com/remedyops/remedy/internal/models"
)

// Target identifies what an action operates on.
type Target struct {
	Type     models.ActionType
	Service  string
	Resource string
}

// Executor performs remediation effects. Live implementations are
// supplied by the deployment; the core only defines the contract points
// where they are invoked. Execute must return within the caller's
// context deadline rather than block indefinitely.
type Executor interface {
	Execute(ctx context.Context, target Target, params map[string]string) (*models.ExecutionResult, error)
	Validate(ctx context.Context, target Target, params map[string]string) error
	Rollback(ctx context.Context, target Target, prior *models.ExecutionResult) (*models.ExecutionResult, error)
}

// Simulator is the dry-run executor: a deterministic no-op that records
// the intended parameters and always succeeds.
type Simulator struct{}

// NewSimulator creates a dry-run executor.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Execute records what would have run and reports success.
func (s *Simulator) Execute(_ context.Context, target Target, params map[string]string) (*models.ExecutionResult, error) {
	details := map[string]string{
		"actionType": string(target.Type),
		"service":    target.Service,
	}
	if target.Resource != "" {
		details["resource"] = target.Resource
	}
	for k, v := range params {
		details["param."+k] = v
	}

	return &models.ExecutionResult{
		Status:    "success",
		Message:   "simulated execution, no changes applied",
		Simulated: true,
		Details:   details,
	}, nil
}

// Validate always accepts; there is nothing to check for a no-op.
func (s *Simulator) Validate(_ context.Context, _ Target, _ map[string]string) error {
	return nil
}

// Rollback is a no-op for simulated executions.
func (s *Simulator) Rollback(_ context.Context, _ Target, _ *models.ExecutionResult) (*models.ExecutionResult, error) {
	return &models.ExecutionResult{
		Status:    "success",
		Message:   "nothing to roll back for a simulated execution",
		Simulated: true,
	}, nil
}
