// Package config loads runtime configuration from the environment, with
// optional .env file support for development.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime settings for the orchestrator.
type Config struct {
	ListenAddr string
	DataDir    string

	LogLevel  string
	LogFormat string

	// Acknowledgement tokens
	TokenSecret string
	TokenTTL    time.Duration

	// Learning engine tunables. The confidence nudge applied per outcome
	// and the symmetric clamp that bounds total drift.
	ConfidenceStep  float64
	ConfidenceClamp float64

	// Detection
	DeviationThreshold float64

	// Hypothesis generation
	OpenAIAPIKey      string
	OpenAIModel       string
	MaxConcurrentLLM  int64
	GenerationTimeout time.Duration

	// Execution
	ExecutionTimeout time.Duration

	// Notifications
	WebhookURL        string
	WebhookRetries    int
	DefaultSLASeconds int
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env file")
	}

	cfg := &Config{
		ListenAddr:         envString("REMEDY_LISTEN", ":7655"),
		DataDir:            envString("REMEDY_DATA_DIR", "./data"),
		LogLevel:           envString("LOG_LEVEL", "info"),
		LogFormat:          envString("LOG_FORMAT", "auto"),
		TokenSecret:        os.Getenv("REMEDY_TOKEN_SECRET"),
		TokenTTL:           time.Duration(envInt("ACK_TOKEN_TTL_HOURS", 24)) * time.Hour,
		ConfidenceStep:     envFloat("LEARNING_CONFIDENCE_STEP", 0.05),
		ConfidenceClamp:    envFloat("LEARNING_CONFIDENCE_CLAMP", 0.3),
		DeviationThreshold: envFloat("ANOMALY_DEVIATION_THRESHOLD", 0.25),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        envString("OPENAI_MODEL", "gpt-4o-mini"),
		MaxConcurrentLLM:   int64(envInt("MAX_CONCURRENT_GENERATIONS", 2)),
		GenerationTimeout:  time.Duration(envInt("GENERATION_TIMEOUT_SECONDS", 60)) * time.Second,
		ExecutionTimeout:   time.Duration(envInt("EXECUTION_TIMEOUT_SECONDS", 120)) * time.Second,
		WebhookURL:         os.Getenv("NOTIFY_WEBHOOK_URL"),
		WebhookRetries:     envInt("NOTIFY_WEBHOOK_RETRIES", 3),
		DefaultSLASeconds:  envInt("NOTIFY_SLA_SECONDS", 900),
	}

	if cfg.TokenSecret == "" {
		// Without a configured secret, tokens do not survive restarts.
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		cfg.TokenSecret = secret
		log.Warn().Msg("REMEDY_TOKEN_SECRET not set, generated ephemeral secret; ack tokens will be invalidated on restart")
	}

	if cfg.ConfidenceClamp <= 0 {
		return nil, fmt.Errorf("LEARNING_CONFIDENCE_CLAMP must be positive, got %v", cfg.ConfidenceClamp)
	}
	if cfg.ConfidenceStep <= 0 || cfg.ConfidenceStep > cfg.ConfidenceClamp {
		return nil, fmt.Errorf("LEARNING_CONFIDENCE_STEP must be in (0, clamp], got %v", cfg.ConfidenceStep)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-integer environment value")
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-numeric environment value")
	}
	return fallback
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
