package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/telemetry"
)

const incidentColumns = `id, title, description, severity, service, components, category,
	status, detected_at, detection_source, metrics_snapshot, context, assigned_to,
	resolved_at, resolution_seconds, version`

func insertIncident(ctx context.Context, q querier, inc *models.Incident) error {
	components, err := marshalJSON(inc.Components)
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}
	snapshot, err := marshalJSON(inc.MetricsSnapshot)
	if err != nil {
		return fmt.Errorf("marshal metrics snapshot: %w", err)
	}
	contextMap, err := marshalJSON(inc.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	inc.Version = 1
	_, err = q.ExecContext(ctx, `INSERT INTO incidents (`+incidentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.Title, inc.Description, string(inc.Severity), inc.Service,
		components, inc.Category, string(inc.Status), timeToNano(inc.DetectedAt),
		inc.DetectionSource, snapshot, contextMap, inc.AssignedTo,
		timePtrToNull(inc.ResolvedAt), inc.ResolutionTimeSeconds, inc.Version)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func scanIncident(row interface{ Scan(...any) error }) (*models.Incident, error) {
	var (
		inc        models.Incident
		components sql.NullString
		snapshot   sql.NullString
		contextMap sql.NullString
		detectedAt int64
		resolvedAt sql.NullInt64
		severity   string
		status     string
	)
	err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &severity, &inc.Service,
		&components, &inc.Category, &status, &detectedAt, &inc.DetectionSource,
		&snapshot, &contextMap, &inc.AssignedTo, &resolvedAt,
		&inc.ResolutionTimeSeconds, &inc.Version)
	if err != nil {
		return nil, err
	}

	inc.Severity = models.Severity(severity)
	inc.Status = models.IncidentStatus(status)
	inc.DetectedAt = nanoToTime(detectedAt)
	inc.ResolvedAt = nullToTimePtr(resolvedAt)
	if err := unmarshalJSON(components, &inc.Components); err != nil {
		return nil, fmt.Errorf("unmarshal components: %w", err)
	}
	if err := unmarshalJSON(snapshot, &inc.MetricsSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal metrics snapshot: %w", err)
	}
	if err := unmarshalJSON(contextMap, &inc.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &inc, nil
}

func getIncident(ctx context.Context, q querier, id string) (*models.Incident, error) {
	row := q.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remerrors.NewNotFound("incident", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// updateIncident applies the full incident row guarded by the version the
// caller read. Zero rows affected means a concurrent writer won.
func updateIncident(ctx context.Context, q querier, inc *models.Incident) error {
	components, err := marshalJSON(inc.Components)
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}
	snapshot, err := marshalJSON(inc.MetricsSnapshot)
	if err != nil {
		return fmt.Errorf("marshal metrics snapshot: %w", err)
	}
	contextMap, err := marshalJSON(inc.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	res, err := q.ExecContext(ctx, `UPDATE incidents SET
		title = ?, description = ?, severity = ?, service = ?, components = ?,
		category = ?, status = ?, detection_source = ?, metrics_snapshot = ?,
		context = ?, assigned_to = ?, resolved_at = ?, resolution_seconds = ?,
		version = version + 1
		WHERE id = ? AND version = ?`,
		inc.Title, inc.Description, string(inc.Severity), inc.Service, components,
		inc.Category, string(inc.Status), inc.DetectionSource, snapshot,
		contextMap, inc.AssignedTo, timePtrToNull(inc.ResolvedAt),
		inc.ResolutionTimeSeconds, inc.ID, inc.Version)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update incident rows: %w", err)
	}
	if n == 0 {
		if _, getErr := getIncident(ctx, q, inc.ID); getErr != nil {
			return getErr
		}
		telemetry.TransitionConflicts.Inc()
		return remerrors.NewConflict("incident", inc.ID)
	}
	inc.Version++
	return nil
}

func listIncidentsByStatus(ctx context.Context, q querier, status models.IncidentStatus, limit int) ([]*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE status = ? ORDER BY detected_at DESC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// CreateIncident inserts a new incident.
func (s *Store) CreateIncident(ctx context.Context, inc *models.Incident) error {
	return insertIncident(ctx, s.db, inc)
}

// GetIncident fetches an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	return getIncident(ctx, s.db, id)
}

// ListIncidentsByStatus returns incidents in the given status, newest first.
func (s *Store) ListIncidentsByStatus(ctx context.Context, status models.IncidentStatus, limit int) ([]*models.Incident, error) {
	return listIncidentsByStatus(ctx, s.db, status, limit)
}

// GetIncident fetches an incident inside the transaction.
func (t *Tx) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	return getIncident(ctx, t.tx, id)
}

// UpdateIncident writes the incident back with an optimistic version check.
func (t *Tx) UpdateIncident(ctx context.Context, inc *models.Incident) error {
	return updateIncident(ctx, t.tx, inc)
}

// CreateIncident inserts an incident inside the transaction.
func (t *Tx) CreateIncident(ctx context.Context, inc *models.Incident) error {
	return insertIncident(ctx, t.tx, inc)
}
