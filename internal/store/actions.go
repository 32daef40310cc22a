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

const actionColumns = `id, incident_id, hypothesis_id, type, target_service, target_resource,
	risk_level, risk_score, blast_radius, parameters, status, requires_approval,
	approved_by, approved_at, rejection_reason, execution_mode, executed_at,
	execution_seconds, execution_result, created_at, version`

func insertAction(ctx context.Context, q querier, a *models.Action) error {
	params, err := marshalJSON(a.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	result, err := marshalJSON(a.ExecutionResult)
	if err != nil {
		return fmt.Errorf("marshal execution result: %w", err)
	}

	a.Version = 1
	_, err = q.ExecContext(ctx, `INSERT INTO actions (`+actionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.IncidentID, a.HypothesisID, string(a.Type), a.TargetService,
		a.TargetResource, string(a.RiskLevel), a.RiskScore, a.BlastRadius, params,
		string(a.Status), a.RequiresApproval, a.ApprovedBy, timePtrToNull(a.ApprovedAt),
		a.RejectionReason, string(a.ExecutionMode), timePtrToNull(a.ExecutedAt),
		a.ExecutionSeconds, result, timeToNano(a.CreatedAt), a.Version)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

func scanAction(row interface{ Scan(...any) error }) (*models.Action, error) {
	var (
		a          models.Action
		params     sql.NullString
		result     sql.NullString
		approvedAt sql.NullInt64
		executedAt sql.NullInt64
		createdAt  int64
		actionType string
		riskLevel  string
		status     string
		mode       string
	)
	err := row.Scan(&a.ID, &a.IncidentID, &a.HypothesisID, &actionType, &a.TargetService,
		&a.TargetResource, &riskLevel, &a.RiskScore, &a.BlastRadius, &params, &status,
		&a.RequiresApproval, &a.ApprovedBy, &approvedAt, &a.RejectionReason, &mode,
		&executedAt, &a.ExecutionSeconds, &result, &createdAt, &a.Version)
	if err != nil {
		return nil, err
	}

	a.Type = models.ActionType(actionType)
	a.RiskLevel = models.RiskLevel(riskLevel)
	a.Status = models.ActionStatus(status)
	a.ExecutionMode = models.ExecutionMode(mode)
	a.ApprovedAt = nullToTimePtr(approvedAt)
	a.ExecutedAt = nullToTimePtr(executedAt)
	a.CreatedAt = nanoToTime(createdAt)
	if err := unmarshalJSON(params, &a.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	if result.Valid && result.String != "" {
		a.ExecutionResult = &models.ExecutionResult{}
		if err := unmarshalJSON(result, a.ExecutionResult); err != nil {
			return nil, fmt.Errorf("unmarshal execution result: %w", err)
		}
	}
	return &a, nil
}

func getAction(ctx context.Context, q querier, id string) (*models.Action, error) {
	row := q.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remerrors.NewNotFound("action", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}
	return a, nil
}

func updateAction(ctx context.Context, q querier, a *models.Action) error {
	params, err := marshalJSON(a.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	result, err := marshalJSON(a.ExecutionResult)
	if err != nil {
		return fmt.Errorf("marshal execution result: %w", err)
	}

	res, err := q.ExecContext(ctx, `UPDATE actions SET
		status = ?, requires_approval = ?, approved_by = ?, approved_at = ?,
		rejection_reason = ?, execution_mode = ?, executed_at = ?,
		execution_seconds = ?, execution_result = ?, parameters = ?,
		version = version + 1
		WHERE id = ? AND version = ?`,
		string(a.Status), a.RequiresApproval, a.ApprovedBy, timePtrToNull(a.ApprovedAt),
		a.RejectionReason, string(a.ExecutionMode), timePtrToNull(a.ExecutedAt),
		a.ExecutionSeconds, result, params, a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action rows: %w", err)
	}
	if n == 0 {
		if _, getErr := getAction(ctx, q, a.ID); getErr != nil {
			return getErr
		}
		telemetry.TransitionConflicts.Inc()
		return remerrors.NewConflict("action", a.ID)
	}
	a.Version++
	return nil
}

func listActionsByIncident(ctx context.Context, q querier, incidentID string) ([]*models.Action, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE incident_id = ? ORDER BY created_at ASC`,
		incidentID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CreateAction inserts a new action.
func (s *Store) CreateAction(ctx context.Context, a *models.Action) error {
	return insertAction(ctx, s.db, a)
}

// GetAction fetches an action by ID.
func (s *Store) GetAction(ctx context.Context, id string) (*models.Action, error) {
	return getAction(ctx, s.db, id)
}

// ListActionsByIncident returns an incident's actions, oldest first.
func (s *Store) ListActionsByIncident(ctx context.Context, incidentID string) ([]*models.Action, error) {
	return listActionsByIncident(ctx, s.db, incidentID)
}

// GetAction fetches an action inside the transaction.
func (t *Tx) GetAction(ctx context.Context, id string) (*models.Action, error) {
	return getAction(ctx, t.tx, id)
}

// UpdateAction writes the action back with an optimistic version check.
func (t *Tx) UpdateAction(ctx context.Context, a *models.Action) error {
	return updateAction(ctx, t.tx, a)
}

// CreateAction inserts an action inside the transaction.
func (t *Tx) CreateAction(ctx context.Context, a *models.Action) error {
	return insertAction(ctx, t.tx, a)
}
