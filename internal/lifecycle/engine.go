// Package lifecycle implements the Action and Incident state machines.
// Every transition commits as one transaction: the status change, the
// side effect on the parent incident, and the timeline event either all
// land or none do.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/remedyops/remedy/internal/executor"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/telemetry"
	"github.com/remedyops/remedy/internal/timeline"
)

// SystemActor is recorded on events triggered by the orchestrator itself.
const SystemActor = "remedy"

// EventSink receives committed timeline events, e.g. for websocket
// broadcast. Sinks are invoked after the transaction commits.
type EventSink interface {
	EventRecorded(event *models.IncidentEvent)
}

// Engine drives the incident and action state machines.
type Engine struct {
	store       *store.Store
	timeline    *timeline.Recorder
	live        executor.Executor // nil unless a live backend is wired
	sim         *executor.Simulator
	execTimeout time.Duration
	sink        EventSink
	now         func() time.Time
}

// Config wires the engine's collaborators.
type Config struct {
	Store            *store.Store
	Timeline         *timeline.Recorder
	LiveExecutor     executor.Executor // optional
	ExecutionTimeout time.Duration
	Sink             EventSink // optional
}

// NewEngine creates a lifecycle engine.
func NewEngine(cfg Config) *Engine {
	timeout := cfg.ExecutionTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Engine{
		store:       cfg.Store,
		timeline:    cfg.Timeline,
		live:        cfg.LiveExecutor,
		sim:         executor.NewSimulator(),
		execTimeout: timeout,
		sink:        cfg.Sink,
		now:         time.Now,
	}
}

func (e *Engine) emit(events ...*models.IncidentEvent) {
	if e.sink == nil {
		return
	}
	for _, event := range events {
		if event != nil {
			e.sink.EventRecorded(event)
		}
	}
}

// CreateIncident registers a newly detected incident and opens its
// timeline.
func (e *Engine) CreateIncident(ctx context.Context, inc *models.Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.New().String()
	}
	inc.Status = models.IncidentDetected
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = e.now()
	}

	var event *models.IncidentEvent
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateIncident(ctx, inc); err != nil {
			return err
		}
		var err error
		event, err = e.timeline.Record(ctx, tx, inc.ID, models.EventIncidentDetected,
			"Incident detected: "+inc.Title, inc.DetectionSource, map[string]string{
				"severity": string(inc.Severity),
				"service":  inc.Service,
			})
		return err
	})
	if err != nil {
		return err
	}

	telemetry.TransitionsTotal.WithLabelValues("incident", string(models.IncidentDetected)).Inc()
	e.emit(event)
	log.Info().
		Str("incident", inc.ID).
		Str("service", inc.Service).
		Str("severity", string(inc.Severity)).
		Msg("Incident created")
	return nil
}

// AssignIncident records an engineer assignment.
func (e *Engine) AssignIncident(ctx context.Context, incidentID, engineer, actor string) error {
	var event *models.IncidentEvent
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		inc, err := tx.GetIncident(ctx, incidentID)
		if err != nil {
			return err
		}
		inc.AssignedTo = engineer
		if err := tx.UpdateIncident(ctx, inc); err != nil {
			return err
		}
		event, err = e.timeline.Record(ctx, tx, incidentID, models.EventIncidentAssigned,
			"Incident assigned to "+engineer, actor, map[string]string{"engineer": engineer})
		return err
	})
	if err != nil {
		return err
	}
	e.emit(event)
	return nil
}

// transitionIncident moves the incident inside the transaction, emitting
// the matching timeline event. A no-op when the incident already sits in
// the target state.
func (e *Engine) transitionIncident(ctx context.Context, tx *store.Tx, inc *models.Incident, target models.IncidentStatus, eventType models.IncidentEventType, description, actor string, metadata map[string]string) (*models.IncidentEvent, error) {
	if inc.Status == target {
		return nil, nil
	}
	if !inc.Status.CanTransition(target) {
		return nil, remErrTransition("incident", inc.ID, string(inc.Status), string(target))
	}

	inc.Status = target
	if target == models.IncidentResolved {
		inc.Resolve(e.now())
	}
	if err := tx.UpdateIncident(ctx, inc); err != nil {
		return nil, err
	}

	event, err := e.timeline.Record(ctx, tx, inc.ID, eventType, description, actor, metadata)
	if err != nil {
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("incident", string(target)).Inc()
	return event, nil
}

// ResolveIncident resolves an incident manually, outside the action
// execution path.
func (e *Engine) ResolveIncident(ctx context.Context, incidentID, actor, note string) (*models.Incident, error) {
	var (
		inc   *models.Incident
		event *models.IncidentEvent
	)
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		inc, err = tx.GetIncident(ctx, incidentID)
		if err != nil {
			return err
		}
		metadata := map[string]string{"manual": "true"}
		if note != "" {
			metadata["note"] = note
		}
		event, err = e.transitionIncident(ctx, tx, inc, models.IncidentResolved,
			models.EventIncidentResolved, "Incident resolved manually", actor, metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.emit(event)
	log.Info().Str("incident", incidentID).Str("by", actor).Msg("Incident resolved manually")
	return inc, nil
}

// EscalateIncident routes an incident to human attention.
func (e *Engine) EscalateIncident(ctx context.Context, incidentID, actor, reason string) (*models.Incident, error) {
	var (
		inc   *models.Incident
		event *models.IncidentEvent
	)
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		inc, err = tx.GetIncident(ctx, incidentID)
		if err != nil {
			return err
		}
		event, err = e.transitionIncident(ctx, tx, inc, models.IncidentEscalated,
			models.EventIncidentEscalated, "Incident escalated: "+reason, actor,
			map[string]string{"reason": reason})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.emit(event)
	return inc, nil
}
