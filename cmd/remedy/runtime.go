package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/remedyops/remedy/internal/ai"
	"github.com/remedyops/remedy/internal/config"
	"github.com/remedyops/remedy/internal/learning"
	"github.com/remedyops/remedy/internal/lifecycle"
	"github.com/remedyops/remedy/internal/monitor"
	"github.com/remedyops/remedy/internal/notify"
	"github.com/remedyops/remedy/internal/oncall"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/timeline"
	"github.com/remedyops/remedy/internal/tokens"
	"github.com/remedyops/remedy/internal/websocket"
)

// metricsFile optionally points at a JSON file of service readings used
// as the detection source.
var metricsFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics", "", "JSON file of service metric readings for detection sweeps")
}

// runtime holds the wired service graph.
type runtime struct {
	store     *store.Store
	timeline  *timeline.Recorder
	lifecycle *lifecycle.Engine
	learning  *learning.Engine
	oncall    *oncall.Resolver
	notify    *notify.Manager
	monitor   *monitor.Monitor
}

func buildRuntime(ctx context.Context, cfg *config.Config, hub *websocket.Hub) (*runtime, error) {
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tl := timeline.NewRecorder(st)

	learn, err := learning.NewEngine(ctx, st, cfg.ConfidenceStep, cfg.ConfidenceClamp)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init learning engine: %w", err)
	}

	var sink lifecycle.EventSink
	if hub != nil {
		sink = hub
	}
	lc := lifecycle.NewEngine(lifecycle.Config{
		Store:            st,
		Timeline:         tl,
		ExecutionTimeout: cfg.ExecutionTimeout,
		Sink:             sink,
	})

	resolver := oncall.NewResolver(st)

	var webhook notify.Notifier
	if cfg.WebhookURL != "" {
		webhook = notify.NewWebhookNotifier(cfg.WebhookURL)
	}
	tokenSvc := tokens.NewService(cfg.TokenSecret, cfg.TokenTTL)
	notifier := notify.NewManager(st, tokenSvc, resolver, tl, webhook, notify.Config{
		AckTTL:     cfg.TokenTTL,
		SLATarget:  time.Duration(cfg.DefaultSLASeconds) * time.Second,
		MaxRetries: cfg.WebhookRetries,
		BaseURL:    "http://" + cfg.ListenAddr,
	})

	var generator ai.HypothesisGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = ai.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		generator = ai.NewHeuristicGenerator()
	}
	gated := ai.NewGate(generator, int(cfg.MaxConcurrentLLM), cfg.GenerationTimeout)

	var source monitor.MetricsSource
	if metricsFile != "" {
		source, err = loadMetricsFile(metricsFile)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	mon := monitor.New(monitor.Config{
		Store:     st,
		Lifecycle: lc,
		Learning:  learn,
		Generator: gated,
		Planner:   ai.NewPlanner(),
		Notifier:  notifier,
		Source:    source,
		Threshold: cfg.DeviationThreshold,
	})

	return &runtime{
		store:     st,
		timeline:  tl,
		lifecycle: lc,
		learning:  learn,
		oncall:    resolver,
		notify:    notifier,
		monitor:   mon,
	}, nil
}

func loadMetricsFile(path string) (*monitor.StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metrics file: %w", err)
	}
	var readings []monitor.ServiceMetrics
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, fmt.Errorf("parse metrics file: %w", err)
	}
	return &monitor.StaticSource{Readings: readings}, nil
}
