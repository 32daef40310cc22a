package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
)

const notificationColumns = `id, incident_id, engineer, channel, priority, recipient,
	sla_target_seconds, retry_count, max_retries, sent_at, acknowledged_at,
	escalated, escalation_target, last_error, created_at`

// CreateNotification inserts a notification record.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.IncidentID, n.Engineer, string(n.Channel), string(n.Priority),
		n.Recipient, n.SLATargetSeconds, n.RetryCount, n.MaxRetries,
		timePtrToNull(n.SentAt), timePtrToNull(n.AcknowledgedAt), n.Escalated,
		n.EscalationTarget, n.LastError, timeToNano(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func scanNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	var (
		n         models.Notification
		channel   string
		priority  string
		sentAt    sql.NullInt64
		ackAt     sql.NullInt64
		createdAt int64
	)
	err := row.Scan(&n.ID, &n.IncidentID, &n.Engineer, &channel, &priority,
		&n.Recipient, &n.SLATargetSeconds, &n.RetryCount, &n.MaxRetries,
		&sentAt, &ackAt, &n.Escalated, &n.EscalationTarget, &n.LastError, &createdAt)
	if err != nil {
		return nil, err
	}

	n.Channel = models.NotificationChannel(channel)
	n.Priority = models.Severity(priority)
	n.SentAt = nullToTimePtr(sentAt)
	n.AcknowledgedAt = nullToTimePtr(ackAt)
	n.CreatedAt = nanoToTime(createdAt)
	return &n, nil
}

// GetNotification fetches a notification by ID.
func (s *Store) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remerrors.NewNotFound("notification", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// UpdateNotification rewrites the mutable delivery fields.
func (s *Store) UpdateNotification(ctx context.Context, n *models.Notification) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET
		retry_count = ?, sent_at = ?, acknowledged_at = ?, escalated = ?,
		escalation_target = ?, last_error = ?
		WHERE id = ?`,
		n.RetryCount, timePtrToNull(n.SentAt), timePtrToNull(n.AcknowledgedAt),
		n.Escalated, n.EscalationTarget, n.LastError, n.ID)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return remerrors.NewNotFound("notification", n.ID)
	}
	return nil
}

// ListNotificationsByIncident returns an incident's notifications, oldest first.
func (s *Store) ListNotificationsByIncident(ctx context.Context, incidentID string) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE incident_id = ? ORDER BY created_at ASC`,
		incidentID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
