package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/telemetry"
)

// BeginAnalysis moves a detected incident into analysis.
func (e *Engine) BeginAnalysis(ctx context.Context, incidentID, actor string) error {
	var event *models.IncidentEvent
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		inc, err := tx.GetIncident(ctx, incidentID)
		if err != nil {
			return err
		}
		event, err = e.transitionIncident(ctx, tx, inc, models.IncidentAnalyzing,
			models.EventAnalysisStarted, "Root cause analysis started", actor, nil)
		return err
	})
	if err != nil {
		return err
	}
	e.emit(event)
	return nil
}

// AttachHypotheses stores ranked hypotheses for an incident under
// analysis. Ranks must be unique and start at 1.
func (e *Engine) AttachHypotheses(ctx context.Context, incidentID string, hypotheses []*models.Hypothesis) error {
	if len(hypotheses) == 0 {
		return fmt.Errorf("no hypotheses to attach: %w", remerrors.ErrInvalidInput)
	}

	var event *models.IncidentEvent
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		inc, err := tx.GetIncident(ctx, incidentID)
		if err != nil {
			return err
		}

		for i, h := range hypotheses {
			if h.ID == "" {
				h.ID = uuid.New().String()
			}
			h.IncidentID = incidentID
			if h.Rank == 0 {
				h.Rank = i + 1
			}
			if h.CreatedAt.IsZero() {
				h.CreatedAt = e.now()
			}
			if err := tx.CreateHypothesis(ctx, h); err != nil {
				return err
			}
		}

		top := hypotheses[0]
		event, err = e.timeline.Record(ctx, tx, inc.ID, models.EventHypothesesReady,
			fmt.Sprintf("%d hypotheses generated, top: %s (%.0f%% confidence)",
				len(hypotheses), top.Description, top.Confidence*100),
			SystemActor, map[string]string{
				"count":       fmt.Sprintf("%d", len(hypotheses)),
				"topCategory": top.Category,
			})
		return err
	})
	if err != nil {
		return err
	}

	telemetry.HypothesesGenerated.Add(float64(len(hypotheses)))
	e.emit(event)
	return nil
}
