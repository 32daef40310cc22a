package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/oncall"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/telemetry"
	"github.com/remedyops/remedy/internal/timeline"
	"github.com/remedyops/remedy/internal/tokens"
)

// SystemActor is the actor name recorded for automated notification events.
const SystemActor = "remedy"

// Config tunes the notification manager.
type Config struct {
	AckTTL     time.Duration // acknowledgement token lifetime
	SLATarget  time.Duration // ack deadline per notification
	MaxRetries int
	BaseURL    string // public base URL embedded in ack links
}

// Manager owns the notification lifecycle: resolve the on-call engineer,
// deliver, track acknowledgement, and escalate when the SLA is blown.
type Manager struct {
	store    *store.Store
	tokens   *tokens.Service
	resolver *oncall.Resolver
	timeline *timeline.Recorder
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewManager wires a notification manager. notifier may be nil, in which
// case notifications are persisted but delivery is skipped.
func NewManager(s *store.Store, ts *tokens.Service, r *oncall.Resolver, tl *timeline.Recorder, n Notifier, cfg Config) *Manager {
	if cfg.SLATarget <= 0 {
		cfg.SLATarget = 15 * time.Minute
	}
	if cfg.AckTTL <= 0 {
		cfg.AckTTL = 24 * time.Hour
	}
	return &Manager{
		store:    s,
		tokens:   ts,
		resolver: r,
		timeline: tl,
		notifier: n,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NotifyIncident pages the current on-call engineer for the incident's
// service. The notification row is committed before delivery is
// attempted, so a delivery failure leaves an auditable record.
func (m *Manager) NotifyIncident(ctx context.Context, inc *models.Incident) (*models.Notification, error) {
	schedule, err := m.resolver.Current(ctx, inc.Service)
	if err != nil {
		return nil, fmt.Errorf("resolve on-call for %s: %w", inc.Service, err)
	}
	return m.page(ctx, inc, schedule.Engineer, schedule.Channel, schedule.Recipient)
}

func (m *Manager) page(ctx context.Context, inc *models.Incident, engineer string, channel models.NotificationChannel, recipient string) (*models.Notification, error) {
	n := &models.Notification{
		ID:               uuid.NewString(),
		IncidentID:       inc.ID,
		Engineer:         engineer,
		Channel:          channel,
		Priority:         inc.Severity,
		Recipient:        recipient,
		SLATargetSeconds: int(m.cfg.SLATarget.Seconds()),
		MaxRetries:       m.cfg.MaxRetries,
		CreatedAt:        m.now(),
	}
	if err := m.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	tok, err := m.tokens.Generate(n.ID, engineer, m.cfg.AckTTL)
	if err != nil {
		return nil, fmt.Errorf("generate ack token: %w", err)
	}
	ackURL := ""
	if m.cfg.BaseURL != "" {
		ackURL = fmt.Sprintf("%s/api/notifications/%s/ack?engineer=%s&token=%s",
			m.cfg.BaseURL, n.ID, engineer, tok.Value)
	}

	if m.notifier != nil {
		if err := m.deliver(ctx, n, inc, ackURL); err != nil {
			telemetry.NotificationsSent.WithLabelValues(string(channel), "error").Inc()
			return n, fmt.Errorf("deliver notification %s: %w", n.ID, err)
		}
	}

	sentAt := m.now()
	n.SentAt = &sentAt
	n.LastError = ""
	if err := m.store.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}
	telemetry.NotificationsSent.WithLabelValues(string(channel), "ok").Inc()

	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		_, err := m.timeline.Record(ctx, tx, inc.ID, models.EventIncidentAssigned,
			fmt.Sprintf("Paged %s via %s", engineer, channel), SystemActor,
			map[string]string{"notificationId": n.ID, "engineer": engineer})
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("incident", inc.ID).Msg("Failed to record page event")
	}

	log.Info().Str("incident", inc.ID).Str("engineer", engineer).
		Str("channel", string(channel)).Msg("On-call engineer paged")
	return n, nil
}

// deliver hands the notification to the channel, retrying with linear
// backoff up to MaxRetries. Every failed attempt is recorded on the
// notification row, so RetryCount and LastError reflect what actually
// happened on the wire.
func (m *Manager) deliver(ctx context.Context, n *models.Notification, inc *models.Incident, ackURL string) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = m.notifier.Send(ctx, n, inc, ackURL)
		n.RetryCount = attempt
		if lastErr == nil {
			return nil
		}

		n.LastError = lastErr.Error()
		if uerr := m.store.UpdateNotification(ctx, n); uerr != nil {
			log.Warn().Err(uerr).Str("notification", n.ID).Msg("Failed to record delivery error")
		}
		if attempt >= m.cfg.MaxRetries {
			return lastErr
		}

		log.Debug().Err(lastErr).Int("attempt", attempt+1).
			Str("notification", n.ID).Msg("Notification delivery failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
}

// Acknowledge marks a notification acknowledged after validating the
// bearer token. Acknowledging twice is a no-op returning the stored row.
func (m *Manager) Acknowledge(ctx context.Context, notificationID, engineerID, token string) (*models.Notification, error) {
	n, err := m.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.AcknowledgedAt != nil {
		return n, nil
	}
	if n.SentAt == nil {
		return nil, remerrors.NewTokenError(remerrors.TokenMismatch)
	}

	expiresAt := n.SentAt.Add(m.cfg.AckTTL)
	if err := m.tokens.Validate(token, notificationID, engineerID, expiresAt); err != nil {
		return nil, err
	}

	ackAt := m.now()
	n.AcknowledgedAt = &ackAt
	if err := m.store.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}

	slaMet := "false"
	if n.SLAMet() {
		slaMet = "true"
	}
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		_, err := m.timeline.Record(ctx, tx, n.IncidentID, models.EventNote,
			fmt.Sprintf("Notification acknowledged by %s", engineerID), engineerID,
			map[string]string{"notificationId": n.ID, "slaMet": slaMet})
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("notification", n.ID).Msg("Failed to record acknowledgement event")
	}
	return n, nil
}

// EscalateOverdue pages the next responder for every notification on the
// incident whose SLA window has elapsed without acknowledgement. Returns
// the newly created notifications.
func (m *Manager) EscalateOverdue(ctx context.Context, inc *models.Incident) ([]*models.Notification, error) {
	existing, err := m.store.ListNotificationsByIncident(ctx, inc.ID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	var created []*models.Notification
	for _, n := range existing {
		if n.AcknowledgedAt != nil || n.Escalated || n.SentAt == nil {
			continue
		}
		if now.Sub(*n.SentAt) <= time.Duration(n.SLATargetSeconds)*time.Second {
			continue
		}

		next, err := m.resolver.EscalationTarget(ctx, inc.Service, n.Engineer)
		if err != nil {
			log.Warn().Str("incident", inc.ID).Str("after", n.Engineer).
				Msg("Escalation chain exhausted")
			continue
		}

		n.Escalated = true
		n.EscalationTarget = next.Engineer
		if err := m.store.UpdateNotification(ctx, n); err != nil {
			return created, err
		}

		escalated, err := m.page(ctx, inc, next.Engineer, next.Channel, next.Recipient)
		if err != nil {
			return created, err
		}
		created = append(created, escalated)

		err = m.store.WithTx(ctx, func(tx *store.Tx) error {
			_, err := m.timeline.Record(ctx, tx, inc.ID, models.EventIncidentEscalated,
				fmt.Sprintf("SLA missed by %s, escalated to %s", n.Engineer, next.Engineer),
				SystemActor, map[string]string{"from": n.Engineer, "to": next.Engineer})
			return err
		})
		if err != nil {
			log.Warn().Err(err).Str("incident", inc.ID).Msg("Failed to record escalation event")
		}
	}
	return created, nil
}
