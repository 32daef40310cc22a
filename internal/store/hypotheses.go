package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
)

const hypothesisColumns = `id, incident_id, description, category, confidence, evidence,
	supporting_signals, rank, source_model, validated, validation_note, created_at`

func insertHypothesis(ctx context.Context, q querier, h *models.Hypothesis) error {
	evidence, err := marshalJSON(h.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	signals, err := marshalJSON(h.SupportingSignals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}

	_, err = q.ExecContext(ctx, `INSERT INTO hypotheses (`+hypothesisColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.IncidentID, h.Description, h.Category, h.Confidence, evidence,
		signals, h.Rank, h.SourceModel, boolPtrToNull(h.Validated),
		h.ValidationNote, timeToNano(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert hypothesis: %w", err)
	}
	return nil
}

func scanHypothesis(row interface{ Scan(...any) error }) (*models.Hypothesis, error) {
	var (
		h         models.Hypothesis
		evidence  sql.NullString
		signals   sql.NullString
		validated sql.NullInt64
		createdAt int64
	)
	err := row.Scan(&h.ID, &h.IncidentID, &h.Description, &h.Category, &h.Confidence,
		&evidence, &signals, &h.Rank, &h.SourceModel, &validated, &h.ValidationNote,
		&createdAt)
	if err != nil {
		return nil, err
	}

	h.Validated = nullToBoolPtr(validated)
	h.CreatedAt = nanoToTime(createdAt)
	if err := unmarshalJSON(evidence, &h.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if err := unmarshalJSON(signals, &h.SupportingSignals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	return &h, nil
}

// CreateHypothesis inserts a new hypothesis.
func (s *Store) CreateHypothesis(ctx context.Context, h *models.Hypothesis) error {
	return insertHypothesis(ctx, s.db, h)
}

// GetHypothesis fetches a hypothesis by ID.
func (s *Store) GetHypothesis(ctx context.Context, id string) (*models.Hypothesis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hypothesisColumns+` FROM hypotheses WHERE id = ?`, id)
	h, err := scanHypothesis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remerrors.NewNotFound("hypothesis", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get hypothesis: %w", err)
	}
	return h, nil
}

// ListHypothesesByIncident returns an incident's hypotheses ordered by rank.
func (s *Store) ListHypothesesByIncident(ctx context.Context, incidentID string) ([]*models.Hypothesis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+hypothesisColumns+` FROM hypotheses WHERE incident_id = ? ORDER BY rank ASC`,
		incidentID)
	if err != nil {
		return nil, fmt.Errorf("list hypotheses: %w", err)
	}
	defer rows.Close()

	var hypotheses []*models.Hypothesis
	for rows.Next() {
		h, err := scanHypothesis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hypothesis: %w", err)
		}
		hypotheses = append(hypotheses, h)
	}
	return hypotheses, rows.Err()
}

// ValidateHypothesis records human validation feedback. Only the
// validation fields are mutable once a hypothesis exists.
func (s *Store) ValidateHypothesis(ctx context.Context, id string, correct bool, note string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hypotheses SET validated = ?, validation_note = ? WHERE id = ?`,
		correct, note, id)
	if err != nil {
		return fmt.Errorf("validate hypothesis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return remerrors.NewNotFound("hypothesis", id)
	}
	return nil
}

// CreateHypothesis inserts a hypothesis inside the transaction.
func (t *Tx) CreateHypothesis(ctx context.Context, h *models.Hypothesis) error {
	return insertHypothesis(ctx, t.tx, h)
}
