package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/executor"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/telemetry"
)

func remErrTransition(entity, id, from, to string) error {
	return remerrors.NewStateTransition(entity, id, from, to)
}

// ProposeAction records a new remediation proposal awaiting approval and
// moves the parent incident to pending approval.
func (e *Engine) ProposeAction(ctx context.Context, action *models.Action) error {
	if action.IncidentID == "" {
		return fmt.Errorf("action requires an incident: %w", remerrors.ErrInvalidInput)
	}
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	action.Status = models.ActionPendingApproval
	if action.CreatedAt.IsZero() {
		action.CreatedAt = e.now()
	}

	var events []*models.IncidentEvent
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		inc, err := tx.GetIncident(ctx, action.IncidentID)
		if err != nil {
			return err
		}
		if err := tx.CreateAction(ctx, action); err != nil {
			return err
		}

		proposed, err := e.timeline.Record(ctx, tx, inc.ID, models.EventActionProposed,
			fmt.Sprintf("Proposed %s on %s (risk %s)", action.Type, action.TargetService, action.RiskLevel),
			SystemActor, map[string]string{
				"actionId":  action.ID,
				"riskLevel": string(action.RiskLevel),
			})
		if err != nil {
			return err
		}
		events = append(events, proposed)

		transitioned, err := e.transitionIncident(ctx, tx, inc, models.IncidentPendingApproval,
			models.EventVerification, "Awaiting approval for proposed remediation", SystemActor, nil)
		if err != nil {
			return err
		}
		events = append(events, transitioned)
		return nil
	})
	if err != nil {
		return err
	}

	telemetry.TransitionsTotal.WithLabelValues("action", string(models.ActionPendingApproval)).Inc()
	e.emit(events...)
	return nil
}

// ApproveAction approves a pending action. Legal only from
// PENDING_APPROVAL; the approver, timestamp and execution mode are
// recorded and the parent incident moves to approved.
func (e *Engine) ApproveAction(ctx context.Context, actionID, approver string, mode models.ExecutionMode) (*models.Action, error) {
	if mode != models.ModeDryRun && mode != models.ModeLive {
		return nil, fmt.Errorf("unknown execution mode %q: %w", mode, remerrors.ErrInvalidInput)
	}

	var (
		action *models.Action
		events []*models.IncidentEvent
	)
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		action, err = tx.GetAction(ctx, actionID)
		if err != nil {
			return err
		}
		if !action.Status.CanTransition(models.ActionApproved) {
			return remErrTransition("action", action.ID, string(action.Status), string(models.ActionApproved))
		}

		now := e.now()
		action.Status = models.ActionApproved
		action.ApprovedBy = approver
		action.ApprovedAt = &now
		action.ExecutionMode = mode
		if err := tx.UpdateAction(ctx, action); err != nil {
			return err
		}

		inc, err := tx.GetIncident(ctx, action.IncidentID)
		if err != nil {
			return err
		}
		transitioned, err := e.transitionIncident(ctx, tx, inc, models.IncidentApproved,
			models.EventActionApproved, "Remediation approved", approver, nil)
		if err != nil {
			return err
		}

		approved, err := e.timeline.Record(ctx, tx, inc.ID, models.EventActionApproved,
			fmt.Sprintf("Action %s approved by %s (%s)", action.Type, approver, mode),
			approver, map[string]string{
				"actionId":      action.ID,
				"executionMode": string(mode),
			})
		if err != nil {
			return err
		}
		events = append(events, approved, transitioned)
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.TransitionsTotal.WithLabelValues("action", string(models.ActionApproved)).Inc()
	e.emit(events...)
	log.Info().
		Str("action", actionID).
		Str("by", approver).
		Str("mode", string(mode)).
		Msg("Action approved")
	return action, nil
}

// RejectAction rejects a pending action. The incident escalates to human
// attention and the reason is stored verbatim.
func (e *Engine) RejectAction(ctx context.Context, actionID, rejecter, reason string) (*models.Action, error) {
	var (
		action *models.Action
		events []*models.IncidentEvent
	)
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		action, err = tx.GetAction(ctx, actionID)
		if err != nil {
			return err
		}
		if !action.Status.CanTransition(models.ActionRejected) {
			return remErrTransition("action", action.ID, string(action.Status), string(models.ActionRejected))
		}

		action.Status = models.ActionRejected
		action.RejectionReason = reason
		if err := tx.UpdateAction(ctx, action); err != nil {
			return err
		}

		inc, err := tx.GetIncident(ctx, action.IncidentID)
		if err != nil {
			return err
		}
		transitioned, err := e.transitionIncident(ctx, tx, inc, models.IncidentEscalated,
			models.EventIncidentEscalated, "Remediation rejected, incident needs human attention",
			rejecter, map[string]string{"reason": reason})
		if err != nil {
			return err
		}

		rejected, err := e.timeline.Record(ctx, tx, inc.ID, models.EventActionRejected,
			fmt.Sprintf("Action %s rejected by %s: %s", action.Type, rejecter, reason),
			rejecter, map[string]string{
				"actionId": action.ID,
				"reason":   reason,
			})
		if err != nil {
			return err
		}
		events = append(events, rejected, transitioned)
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.TransitionsTotal.WithLabelValues("action", string(models.ActionRejected)).Inc()
	e.emit(events...)
	log.Info().Str("action", actionID).Str("by", rejecter).Str("reason", reason).Msg("Action rejected")
	return action, nil
}

// ExecuteAction runs an approved action. The transition to EXECUTING is
// committed durably before the effect is performed so a crash
// mid-execution leaves an observable non-terminal state. Dry-run effects
// always succeed; live effects go to the configured executor under a
// bounded timeout. Failures land in FAILED with the error recorded and
// no automatic retry.
func (e *Engine) ExecuteAction(ctx context.Context, actionID, actor string) (*models.Action, error) {
	var (
		action *models.Action
		events []*models.IncidentEvent
	)

	// Phase 1: claim the action.
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		action, err = tx.GetAction(ctx, actionID)
		if err != nil {
			return err
		}
		if !action.Status.CanTransition(models.ActionExecuting) {
			return remErrTransition("action", action.ID, string(action.Status), string(models.ActionExecuting))
		}

		now := e.now()
		action.Status = models.ActionExecuting
		action.ExecutedAt = &now
		if err := tx.UpdateAction(ctx, action); err != nil {
			return err
		}

		inc, err := tx.GetIncident(ctx, action.IncidentID)
		if err != nil {
			return err
		}
		transitioned, err := e.transitionIncident(ctx, tx, inc, models.IncidentExecuting,
			models.EventExecutionStarted, "Executing approved remediation", actor, nil)
		if err != nil {
			return err
		}

		started, err := e.timeline.Record(ctx, tx, inc.ID, models.EventExecutionStarted,
			fmt.Sprintf("Executing %s on %s (%s)", action.Type, action.TargetService, action.ExecutionMode),
			actor, map[string]string{"actionId": action.ID})
		if err != nil {
			return err
		}
		events = append(events, started, transitioned)
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("action", string(models.ActionExecuting)).Inc()
	e.emit(events...)
	events = events[:0]

	// Phase 2: perform the effect outside any transaction.
	result, execErr := e.performEffect(ctx, action)

	// Phase 3: record the outcome.
	finishedAt := e.now()
	duration := finishedAt.Sub(*action.ExecutedAt).Seconds()

	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		action.ExecutionSeconds = duration
		action.ExecutionResult = result

		inc, err := tx.GetIncident(ctx, action.IncidentID)
		if err != nil {
			return err
		}

		if execErr != nil {
			action.Status = models.ActionFailed
			if err := tx.UpdateAction(ctx, action); err != nil {
				return err
			}
			finished, err := e.timeline.Record(ctx, tx, inc.ID, models.EventExecutionFinished,
				"Execution failed: "+execErr.Error(), SystemActor, map[string]string{
					"actionId": action.ID,
					"status":   "failed",
				})
			if err != nil {
				return err
			}
			events = append(events, finished)
			// The incident stays in EXECUTING; the next step (a new
			// proposal or escalation) is a policy decision for the caller.
			return nil
		}

		action.Status = models.ActionSucceeded
		if err := tx.UpdateAction(ctx, action); err != nil {
			return err
		}
		finished, err := e.timeline.Record(ctx, tx, inc.ID, models.EventExecutionFinished,
			fmt.Sprintf("Execution succeeded in %.2fs", duration), SystemActor, map[string]string{
				"actionId": action.ID,
				"status":   "succeeded",
			})
		if err != nil {
			return err
		}
		events = append(events, finished)

		resolved, err := e.transitionIncident(ctx, tx, inc, models.IncidentResolved,
			models.EventIncidentResolved, "Incident resolved by successful remediation",
			SystemActor, map[string]string{"actionId": action.ID})
		if err != nil {
			return err
		}
		events = append(events, resolved)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if execErr != nil {
		telemetry.TransitionsTotal.WithLabelValues("action", string(models.ActionFailed)).Inc()
		log.Warn().Err(execErr).Str("action", actionID).Msg("Action execution failed")
	} else {
		telemetry.TransitionsTotal.WithLabelValues("action", string(models.ActionSucceeded)).Inc()
		log.Info().
			Str("action", actionID).
			Float64("seconds", duration).
			Bool("simulated", result != nil && result.Simulated).
			Msg("Action executed")
	}
	e.emit(events...)
	return action, nil
}

func (e *Engine) performEffect(ctx context.Context, action *models.Action) (*models.ExecutionResult, error) {
	target := executor.Target{
		Type:     action.Type,
		Service:  action.TargetService,
		Resource: action.TargetResource,
	}

	if action.ExecutionMode != models.ModeLive {
		return e.sim.Execute(ctx, target, action.Parameters)
	}

	if e.live == nil {
		err := &remerrors.ExecutionError{ActionID: action.ID, Err: fmt.Errorf("no live executor configured")}
		return &models.ExecutionResult{Status: "failed", Error: err.Error()}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.execTimeout)
	defer cancel()

	result, err := e.live.Execute(execCtx, target, action.Parameters)
	if err != nil {
		wrapped := &remerrors.ExecutionError{ActionID: action.ID, Err: err}
		if result == nil {
			result = &models.ExecutionResult{Status: "failed", Error: err.Error()}
		}
		return result, wrapped
	}
	return result, nil
}
