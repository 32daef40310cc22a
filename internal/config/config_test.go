package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REMEDY_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7655", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.InDelta(t, 0.05, cfg.ConfidenceStep, 1e-9)
	assert.InDelta(t, 0.3, cfg.ConfidenceClamp, 1e-9)
	assert.InDelta(t, 0.25, cfg.DeviationThreshold, 1e-9)
	assert.NotEmpty(t, cfg.TokenSecret, "ephemeral secret is generated when unset")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REMEDY_DATA_DIR", t.TempDir())
	t.Setenv("REMEDY_LISTEN", ":9090")
	t.Setenv("REMEDY_TOKEN_SECRET", "fixed-secret")
	t.Setenv("LEARNING_CONFIDENCE_STEP", "0.1")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "fixed-secret", cfg.TokenSecret)
	assert.InDelta(t, 0.1, cfg.ConfidenceStep, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
}

func TestLoadRejectsBadTunables(t *testing.T) {
	t.Setenv("REMEDY_DATA_DIR", t.TempDir())
	t.Setenv("LEARNING_CONFIDENCE_STEP", "0.5")
	t.Setenv("LEARNING_CONFIDENCE_CLAMP", "0.3")

	_, err := Load()
	assert.Error(t, err, "step must not exceed clamp")
}

func TestEnvParsingFallsBack(t *testing.T) {
	t.Setenv("REMEDY_DATA_DIR", t.TempDir())
	t.Setenv("NOTIFY_WEBHOOK_RETRIES", "lots")
	t.Setenv("ANOMALY_DEVIATION_THRESHOLD", "wide")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.WebhookRetries)
	assert.InDelta(t, 0.25, cfg.DeviationThreshold, 1e-9)
}
