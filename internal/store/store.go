// Package store is the durable record store for the incident-response
// core, backed by SQLite. All state transitions run inside a single
// transaction via WithTx so a status change, its side effects on the
// parent incident, and the timeline event commit or roll back together.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// querier is satisfied by both *sql.DB and *sql.Tx so row helpers can be
// shared between direct and transactional access.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the database under dataDir.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "remedy.db")
	dsn := dbPath + "?" + url.Values{
		"_txlock": []string{"immediate"},
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		service TEXT NOT NULL,
		components TEXT,
		category TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		detected_at INTEGER NOT NULL,
		detection_source TEXT NOT NULL DEFAULT '',
		metrics_snapshot TEXT,
		context TEXT,
		assigned_to TEXT NOT NULL DEFAULT '',
		resolved_at INTEGER,
		resolution_seconds REAL NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	CREATE INDEX IF NOT EXISTS idx_incidents_service ON incidents(service);

	CREATE TABLE IF NOT EXISTS hypotheses (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence REAL NOT NULL,
		evidence TEXT,
		supporting_signals TEXT,
		rank INTEGER NOT NULL,
		source_model TEXT NOT NULL DEFAULT '',
		validated INTEGER,
		validation_note TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE(incident_id, rank)
	);

	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		hypothesis_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		target_service TEXT NOT NULL,
		target_resource TEXT NOT NULL DEFAULT '',
		risk_level TEXT NOT NULL,
		risk_score REAL NOT NULL DEFAULT 0,
		blast_radius TEXT NOT NULL DEFAULT '',
		parameters TEXT,
		status TEXT NOT NULL,
		requires_approval INTEGER NOT NULL DEFAULT 1,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at INTEGER,
		rejection_reason TEXT NOT NULL DEFAULT '',
		execution_mode TEXT NOT NULL DEFAULT '',
		executed_at INTEGER,
		execution_seconds REAL NOT NULL DEFAULT 0,
		execution_result TEXT,
		created_at INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_actions_incident ON actions(incident_id);
	CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status);

	CREATE TABLE IF NOT EXISTS incident_events (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_incident ON incident_events(incident_id, created_at);

	CREATE TABLE IF NOT EXISTS incident_patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		service TEXT NOT NULL,
		category TEXT NOT NULL,
		signal_indicators TEXT,
		confidence_adjustment REAL NOT NULL DEFAULT 0,
		occurrence_count INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		UNIQUE(service, category)
	);

	CREATE TABLE IF NOT EXISTS outcome_reports (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		hypothesis_id TEXT NOT NULL DEFAULT '',
		hypothesis_correct INTEGER,
		action_id TEXT NOT NULL DEFAULT '',
		action_effective INTEGER,
		human_override INTEGER NOT NULL DEFAULT 0,
		override_reason TEXT NOT NULL DEFAULT '',
		resolution_notes TEXT NOT NULL DEFAULT '',
		captured_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_captured ON outcome_reports(captured_at);

	CREATE TABLE IF NOT EXISTS oncall_schedules (
		id TEXT PRIMARY KEY,
		engineer TEXT NOT NULL,
		service TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		priority TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT 'webhook',
		recipient TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		CHECK(end_time > start_time)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		engineer TEXT NOT NULL,
		channel TEXT NOT NULL,
		priority TEXT NOT NULL,
		recipient TEXT NOT NULL DEFAULT '',
		sla_target_seconds INTEGER NOT NULL DEFAULT 0,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 0,
		sent_at INTEGER,
		acknowledged_at INTEGER,
		escalated INTEGER NOT NULL DEFAULT 0,
		escalation_target TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_incident ON notifications(incident_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Tx is a transactional view of the store. Updates on Tx use optimistic
// version checks; a losing writer gets a ConcurrentModification error.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside an immediate transaction, committing on nil and
// rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// JSON column helpers.

func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalJSON(src sql.NullString, dst any) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}

// Time column helpers. Times are stored as Unix nanoseconds in UTC.

func timeToNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func nanoToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func timePtrToNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: timeToNano(*t), Valid: true}
}

func nullToTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := nanoToTime(n.Int64)
	return &t
}

func boolPtrToNull(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	v := int64(0)
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullToBoolPtr(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Int64 != 0
	return &b
}
