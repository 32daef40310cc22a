// Package learning maintains the pattern store that feeds confidence
// scoring. Patterns live in a write-through, two-tier store: the durable
// row is the source of truth and its write is the commit point; the
// in-memory cache is only mutated after the durable write succeeds, so
// cache and store never silently diverge.
package learning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/telemetry"
)

// Engine is the learning engine. Construct one per process and pass it
// by reference; there is no global instance.
type Engine struct {
	store *store.Store

	mu    sync.RWMutex
	cache map[string]*models.IncidentPattern

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	step  float64 // confidence nudge per outcome
	clamp float64 // symmetric bound on total adjustment

	now func() time.Time
}

// NewEngine creates the learning engine and hydrates the cache from the
// durable store.
func NewEngine(ctx context.Context, s *store.Store, step, clamp float64) (*Engine, error) {
	if step <= 0 || clamp <= 0 {
		return nil, fmt.Errorf("confidence step and clamp must be positive")
	}

	e := &Engine{
		store: s,
		cache: make(map[string]*models.IncidentPattern),
		locks: make(map[string]*sync.Mutex),
		step:  step,
		clamp: clamp,
		now:   time.Now,
	}

	patterns, err := s.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate pattern cache: %w", err)
	}
	for _, p := range patterns {
		e.cache[p.ID] = p
	}
	if len(patterns) > 0 {
		log.Info().Int("patterns", len(patterns)).Msg("Loaded learned patterns")
	}
	return e, nil
}

// patternLock serializes mutation per pattern ID so concurrent outcome
// captures for the same pattern never lose an update.
func (e *Engine) patternLock(id string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	return mu
}

// Pattern returns the pattern for a service+category pair, hydrating the
// cache from the store on a miss. Returns NotFound when no pattern has
// been learned yet.
func (e *Engine) Pattern(ctx context.Context, service, category string) (*models.IncidentPattern, error) {
	id := models.PatternID(service, category)

	e.mu.RLock()
	cached, ok := e.cache[id]
	e.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	p, err := e.store.GetPattern(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[id] = p
	e.mu.Unlock()
	return p.Clone(), nil
}

// AdjustedConfidence applies the learned confidence adjustment for the
// pattern to a base score, clamped into [0, 1]. Unknown patterns leave
// the base score untouched.
func (e *Engine) AdjustedConfidence(ctx context.Context, service, category string, base float64) float64 {
	p, err := e.Pattern(ctx, service, category)
	if err != nil {
		return base
	}
	adjusted := base + p.ConfidenceAdjustment
	if adjusted < 0 {
		return 0
	}
	if adjusted > 1 {
		return 1
	}
	return adjusted
}

// CaptureOutcome merges one outcome report into the affected pattern.
// The update rule:
//
//	occurrence_count += 1
//	success_rate      = (rate*(n-1) + effective) / n
//	confidence_adjustment += step (correct) or -= step (override), clamped
//
// The durable write commits first; the cache is updated only on durable
// success.
func (e *Engine) CaptureOutcome(ctx context.Context, outcome *models.OutcomeReport) (*models.IncidentPattern, error) {
	if outcome.IncidentID == "" {
		return nil, fmt.Errorf("outcome requires an incident: %w", remerrors.ErrInvalidInput)
	}
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.CapturedAt.IsZero() {
		outcome.CapturedAt = e.now()
	}

	inc, err := e.store.GetIncident(ctx, outcome.IncidentID)
	if err != nil {
		return nil, err
	}
	category, err := e.outcomeCategory(ctx, inc, outcome)
	if err != nil {
		return nil, err
	}
	id := models.PatternID(inc.Service, category)

	mu := e.patternLock(id)
	mu.Lock()
	defer mu.Unlock()

	updated := e.nextPattern(ctx, id, inc.Service, category, outcome)

	// The pattern row and the outcome report land in one transaction;
	// its commit is the commit point. The cache is touched only after,
	// so a failed capture leaves both tiers on the previous state.
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpsertPattern(ctx, updated); err != nil {
			return fmt.Errorf("persist pattern: %w", err)
		}
		if err := tx.CreateOutcome(ctx, outcome); err != nil {
			return fmt.Errorf("persist outcome: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[id] = updated
	e.mu.Unlock()

	if outcome.HypothesisID != "" && outcome.HypothesisCorrect != nil {
		if err := e.store.ValidateHypothesis(ctx, outcome.HypothesisID, *outcome.HypothesisCorrect, outcome.ResolutionNotes); err != nil {
			log.Warn().Err(err).Str("hypothesis", outcome.HypothesisID).Msg("Failed to record hypothesis validation")
		}
	}

	telemetry.OutcomesCaptured.Inc()
	log.Debug().
		Str("pattern", id).
		Int("occurrences", updated.OccurrenceCount).
		Float64("successRate", updated.SuccessRate).
		Float64("confidenceAdjustment", updated.ConfidenceAdjustment).
		Msg("Outcome captured")
	return updated.Clone(), nil
}

// nextPattern computes the merged pattern without mutating the cached
// copy. Must be called with the pattern's lock held.
func (e *Engine) nextPattern(ctx context.Context, id, service, category string, outcome *models.OutcomeReport) *models.IncidentPattern {
	now := e.now()

	var current *models.IncidentPattern
	e.mu.RLock()
	if cached, ok := e.cache[id]; ok {
		current = cached.Clone()
	}
	e.mu.RUnlock()
	if current == nil {
		if stored, err := e.store.GetPattern(ctx, id); err == nil {
			current = stored
		} else if !errors.Is(err, remerrors.ErrNotFound) {
			log.Warn().Err(err).Str("pattern", id).Msg("Pattern read failed, treating as new")
		}
	}
	if current == nil {
		current = &models.IncidentPattern{
			ID:        id,
			Name:      fmt.Sprintf("%s %s incidents", service, category),
			Service:   service,
			Category:  category,
			FirstSeen: now,
		}
	}

	current.OccurrenceCount++
	n := float64(current.OccurrenceCount)

	effective := 0.0
	if outcome.ActionEffective != nil && *outcome.ActionEffective {
		effective = 1.0
	}
	current.SuccessRate = (current.SuccessRate*(n-1) + effective) / n

	switch {
	case outcome.HumanOverride:
		current.ConfidenceAdjustment -= e.step
	case boolValue(outcome.HypothesisCorrect) && boolValue(outcome.ActionEffective):
		current.ConfidenceAdjustment += e.step
	}
	if current.ConfidenceAdjustment > e.clamp {
		current.ConfidenceAdjustment = e.clamp
	}
	if current.ConfidenceAdjustment < -e.clamp {
		current.ConfidenceAdjustment = -e.clamp
	}

	current.LastSeen = now
	return current
}

// outcomeCategory resolves which pattern category the outcome belongs
// to: the incident's own category, falling back to the referenced
// hypothesis, then to "uncategorized".
func (e *Engine) outcomeCategory(ctx context.Context, inc *models.Incident, outcome *models.OutcomeReport) (string, error) {
	if inc.Category != "" {
		return inc.Category, nil
	}
	if outcome.HypothesisID != "" {
		h, err := e.store.GetHypothesis(ctx, outcome.HypothesisID)
		if err != nil {
			return "", err
		}
		if h.Category != "" {
			return h.Category, nil
		}
	}
	return "uncategorized", nil
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
