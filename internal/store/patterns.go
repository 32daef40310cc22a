package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	remerrors "github.com/remedyops/remedy/internal/errors"
	"github.com/remedyops/remedy/internal/models"
)

const patternColumns = `id, name, service, category, signal_indicators,
	confidence_adjustment, occurrence_count, success_rate, first_seen, last_seen`

func scanPattern(row interface{ Scan(...any) error }) (*models.IncidentPattern, error) {
	var (
		p         models.IncidentPattern
		signals   sql.NullString
		firstSeen int64
		lastSeen  int64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Service, &p.Category, &signals,
		&p.ConfidenceAdjustment, &p.OccurrenceCount, &p.SuccessRate,
		&firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}

	p.FirstSeen = nanoToTime(firstSeen)
	p.LastSeen = nanoToTime(lastSeen)
	if err := unmarshalJSON(signals, &p.SignalIndicators); err != nil {
		return nil, fmt.Errorf("unmarshal signal indicators: %w", err)
	}
	return &p, nil
}

func upsertPattern(ctx context.Context, q querier, p *models.IncidentPattern) error {
	signals, err := marshalJSON(p.SignalIndicators)
	if err != nil {
		return fmt.Errorf("marshal signal indicators: %w", err)
	}

	_, err = q.ExecContext(ctx, `INSERT INTO incident_patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			signal_indicators = excluded.signal_indicators,
			confidence_adjustment = excluded.confidence_adjustment,
			occurrence_count = excluded.occurrence_count,
			success_rate = excluded.success_rate,
			last_seen = excluded.last_seen`,
		p.ID, p.Name, p.Service, p.Category, signals, p.ConfidenceAdjustment,
		p.OccurrenceCount, p.SuccessRate, timeToNano(p.FirstSeen), timeToNano(p.LastSeen))
	if err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}
	return nil
}

// UpsertPattern writes the pattern row, replacing any previous row with
// the same semantic key. Callers treat a successful upsert as the commit
// point before mutating any in-memory copy.
func (s *Store) UpsertPattern(ctx context.Context, p *models.IncidentPattern) error {
	return upsertPattern(ctx, s.db, p)
}

// UpsertPattern writes the pattern row inside the transaction.
func (t *Tx) UpsertPattern(ctx context.Context, p *models.IncidentPattern) error {
	return upsertPattern(ctx, t.tx, p)
}

// GetPattern fetches a pattern by its semantic key.
func (s *Store) GetPattern(ctx context.Context, id string) (*models.IncidentPattern, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM incident_patterns WHERE id = ?`, id)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remerrors.NewNotFound("pattern", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	return p, nil
}

// ListPatterns returns all learned patterns.
func (s *Store) ListPatterns(ctx context.Context) ([]*models.IncidentPattern, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+patternColumns+` FROM incident_patterns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*models.IncidentPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

const outcomeColumns = `id, incident_id, hypothesis_id, hypothesis_correct, action_id,
	action_effective, human_override, override_reason, resolution_notes, captured_at`

func insertOutcome(ctx context.Context, q querier, o *models.OutcomeReport) error {
	_, err := q.ExecContext(ctx, `INSERT INTO outcome_reports (`+outcomeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.IncidentID, o.HypothesisID, boolPtrToNull(o.HypothesisCorrect),
		o.ActionID, boolPtrToNull(o.ActionEffective), o.HumanOverride,
		o.OverrideReason, o.ResolutionNotes, timeToNano(o.CapturedAt))
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// CreateOutcome inserts an outcome report.
func (s *Store) CreateOutcome(ctx context.Context, o *models.OutcomeReport) error {
	return insertOutcome(ctx, s.db, o)
}

// CreateOutcome inserts an outcome report inside the transaction.
func (t *Tx) CreateOutcome(ctx context.Context, o *models.OutcomeReport) error {
	return insertOutcome(ctx, t.tx, o)
}

// ListOutcomesSince returns outcome reports captured after the cutoff,
// oldest first.
func (s *Store) ListOutcomesSince(ctx context.Context, since time.Time) ([]*models.OutcomeReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_reports WHERE captured_at >= ? ORDER BY captured_at ASC`,
		timeToNano(since))
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.OutcomeReport
	for rows.Next() {
		var (
			o          models.OutcomeReport
			hypCorrect sql.NullInt64
			actEff     sql.NullInt64
			capturedAt int64
		)
		if err := rows.Scan(&o.ID, &o.IncidentID, &o.HypothesisID, &hypCorrect,
			&o.ActionID, &actEff, &o.HumanOverride, &o.OverrideReason,
			&o.ResolutionNotes, &capturedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.HypothesisCorrect = nullToBoolPtr(hypCorrect)
		o.ActionEffective = nullToBoolPtr(actEff)
		o.CapturedAt = nanoToTime(capturedAt)
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}
