package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
)

const hypothesisSystemPrompt = `You are a site reliability engineer diagnosing a production incident.
Given the incident summary and metric deviations, propose up to 3 root-cause hypotheses.
Respond with a JSON array only. Each element must have:
  "description": one-sentence root cause statement
  "category": short snake_case category (e.g. bad_deploy, memory_leak, resource_saturation)
  "confidence": number between 0 and 1
  "signals": array of metric names supporting the hypothesis`

// OpenAIGenerator asks a chat-completion model for ranked hypotheses.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates an LLM-backed generator.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (g *OpenAIGenerator) Name() string { return g.model }

type llmHypothesis struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Signals     []string `json:"signals"`
}

// Generate calls the model and parses its JSON answer. All failures are
// wrapped in GenerationError so callers can fall back to the heuristic
// generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, inc *models.Incident) ([]*models.Hypothesis, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: hypothesisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildIncidentPrompt(inc)},
		},
	})
	if err != nil {
		return nil, &remerrors.GenerationError{Model: g.model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &remerrors.GenerationError{Model: g.model, Err: fmt.Errorf("empty completion")}
	}

	parsed, err := parseHypothesisJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &remerrors.GenerationError{Model: g.model, Err: err}
	}

	hypotheses := make([]*models.Hypothesis, 0, len(parsed))
	for _, p := range parsed {
		if strings.TrimSpace(p.Description) == "" {
			continue
		}
		category := strings.TrimSpace(p.Category)
		if category == "" {
			category = "unknown"
		}
		evidence := make(map[string]string, len(p.Signals))
		for _, sig := range p.Signals {
			if r, ok := inc.MetricsSnapshot[sig]; ok {
				evidence[sig] = fmt.Sprintf("deviation %.2f", r.Deviation)
			}
		}
		hypotheses = append(hypotheses, &models.Hypothesis{
			IncidentID:        inc.ID,
			Description:       p.Description,
			Category:          category,
			Confidence:        clampConfidence(p.Confidence),
			Evidence:          evidence,
			SupportingSignals: p.Signals,
			SourceModel:       g.model,
		})
	}
	if len(hypotheses) == 0 {
		return nil, &remerrors.GenerationError{Model: g.model, Err: fmt.Errorf("no usable hypotheses in completion")}
	}

	log.Debug().Str("model", g.model).Int("count", len(hypotheses)).
		Str("incident", inc.ID).Msg("Hypotheses generated")
	return hypotheses, nil
}

func buildIncidentPrompt(inc *models.Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s\nService: %s\nSeverity: %s\n", inc.Title, inc.Service, inc.Severity)
	if inc.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", inc.Description)
	}
	if len(inc.Components) > 0 {
		fmt.Fprintf(&b, "Components: %s\n", strings.Join(inc.Components, ", "))
	}
	if len(inc.MetricsSnapshot) > 0 {
		b.WriteString("Metric deviations:\n")
		for name, r := range inc.MetricsSnapshot {
			fmt.Fprintf(&b, "  %s: current=%.2f expected=%.2f deviation=%.2f\n",
				name, r.Current, r.Expected, r.Deviation)
		}
	}
	for k, v := range inc.Context {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String()
}

// parseHypothesisJSON extracts the JSON array from a completion,
// tolerating markdown code fences around it.
func parseHypothesisJSON(content string) ([]llmHypothesis, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "["); start >= 0 {
		if end := strings.LastIndex(content, "]"); end > start {
			content = content[start : end+1]
		}
	}

	var parsed []llmHypothesis
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse completion: %w", err)
	}
	return parsed, nil
}
