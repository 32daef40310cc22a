// Package ai produces ranked root-cause hypotheses for incidents and
// plans candidate remediation actions. Generation backends sit behind a
// capability interface; an LLM-backed generator and a heuristic
// fallback ship in-repo.
package ai

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
)

// HypothesisGenerator produces ranked hypotheses for an incident.
// Implementations return hypotheses with Description, Category,
// Confidence, Evidence and SourceModel set; ranking and persistence are
// the caller's job.
type HypothesisGenerator interface {
	Generate(ctx context.Context, inc *models.Incident) ([]*models.Hypothesis, error)
	Name() string
}

// Gate serializes access to a generation backend. At most maxConcurrent
// generations run at once and each gets its own deadline, so a slow
// model cannot pile up goroutines or hold an incident forever.
type Gate struct {
	inner   HypothesisGenerator
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewGate wraps a generator with a concurrency limit and per-call timeout.
func NewGate(inner HypothesisGenerator, maxConcurrent int, timeout time.Duration) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gate{
		inner:   inner,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
	}
}

func (g *Gate) Name() string { return g.inner.Name() }

// Generate acquires a slot, runs the inner generator under the deadline,
// and normalizes the result: hypotheses sorted by confidence descending
// with ranks assigned from 1.
func (g *Gate) Generate(ctx context.Context, inc *models.Incident) ([]*models.Hypothesis, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, &remerrors.GenerationError{Model: g.inner.Name(), Err: err}
	}
	defer g.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	hypotheses, err := g.inner.Generate(ctx, inc)
	if err != nil {
		return nil, err
	}
	if len(hypotheses) == 0 {
		return nil, &remerrors.GenerationError{
			Model: g.inner.Name(),
			Err:   fmt.Errorf("no hypotheses produced"),
		}
	}

	RankByConfidence(hypotheses)
	return hypotheses, nil
}

// RankByConfidence sorts hypotheses by confidence descending and assigns
// ranks starting at 1. Ties keep their existing relative order.
func RankByConfidence(hypotheses []*models.Hypothesis) {
	sort.SliceStable(hypotheses, func(i, j int) bool {
		return hypotheses[i].Confidence > hypotheses[j].Confidence
	})
	for i, h := range hypotheses {
		h.Rank = i + 1
	}
}

// clampConfidence bounds a confidence value to [0, 1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
