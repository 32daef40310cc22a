package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyops/remedy/internal/models"
)

func TestSimulatorExecute(t *testing.T) {
	sim := NewSimulator()

	result, err := sim.Execute(context.Background(), Target{
		Type:     models.ActionRestartService,
		Service:  "checkout",
		Resource: "checkout-7f9b",
	}, map[string]string{"grace": "30s"})

	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.True(t, result.Simulated)
	assert.Equal(t, "restart_service", result.Details["actionType"])
	assert.Equal(t, "checkout-7f9b", result.Details["resource"])
	assert.Equal(t, "30s", result.Details["param.grace"])
}

func TestSimulatorIsDeterministic(t *testing.T) {
	sim := NewSimulator()
	target := Target{Type: models.ActionClearCache, Service: "cdn"}

	first, err := sim.Execute(context.Background(), target, nil)
	require.NoError(t, err)
	second, err := sim.Execute(context.Background(), target, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSimulatorValidateAndRollback(t *testing.T) {
	sim := NewSimulator()
	target := Target{Type: models.ActionFailover, Service: "db"}

	assert.NoError(t, sim.Validate(context.Background(), target, nil))

	result, err := sim.Rollback(context.Background(), target, nil)
	require.NoError(t, err)
	assert.True(t, result.Simulated)
}
