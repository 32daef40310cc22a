// Package oncall resolves which engineer should be paged for a service
// and who comes next in the escalation chain.
package oncall

import (
	"context"
	"sort"
	"time"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
)

// Resolver answers on-call queries against the schedule store.
type Resolver struct {
	store *store.Store
	now   func() time.Time
}

// NewResolver creates an on-call resolver.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s, now: time.Now}
}

// chainFor returns the schedules covering the service right now, ordered
// by escalation priority. Service-specific schedules beat wildcards at
// the same priority.
func (r *Resolver) chainFor(ctx context.Context, service string) ([]*models.OnCallSchedule, error) {
	schedules, err := r.store.ListActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var matching []*models.OnCallSchedule
	for _, s := range schedules {
		if s.CoversAt(now) && s.Matches(service) {
			matching = append(matching, s)
		}
	}

	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].Priority.Order() != matching[j].Priority.Order() {
			return matching[i].Priority.Order() < matching[j].Priority.Order()
		}
		// Specific beats wildcard.
		return matching[i].Service != "" && matching[j].Service == ""
	})
	return matching, nil
}

// Current returns the engineer on call for the service right now,
// preferring primary over secondary over tertiary.
func (r *Resolver) Current(ctx context.Context, service string) (*models.OnCallSchedule, error) {
	chain, err := r.chainFor(ctx, service)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, remerrors.NewNotFound("oncall schedule", service)
	}
	return chain[0], nil
}

// EscalationTarget returns the next responder after the given engineer,
// or NotFound when the chain is exhausted.
func (r *Resolver) EscalationTarget(ctx context.Context, service, afterEngineer string) (*models.OnCallSchedule, error) {
	chain, err := r.chainFor(ctx, service)
	if err != nil {
		return nil, err
	}
	for i, s := range chain {
		if s.Engineer == afterEngineer && i+1 < len(chain) {
			return chain[i+1], nil
		}
	}
	return nil, remerrors.NewNotFound("escalation target", service)
}
