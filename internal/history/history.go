// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history records every simulation run of the panel in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/arlpanel/internal/persistence/sqlite"
)

const schemaVersion = 1

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run is one simulation run.
type Run struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Params     map[string]any    `json:"params"`
	Log        []string          `json:"log"`
	Outcomes   map[string]string `json:"outcomes"`
}

// Failed reports whether any slot of the run produced a placeholder.
func (r Run) Failed() bool {
	for _, o := range r.Outcomes {
		if o != OutcomeOK {
			return true
		}
	}
	return false
}

// OutcomeOK marks a slot that rendered; any other value is the error text.
const OutcomeOK = "ok"

// Store is the SQLite run history.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens or creates the history database at path. limit bounds the
// number of retained runs; 0 keeps everything.
func Open(ctx context.Context, path string, limit int) (*Store, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, limit: limit}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at_ms INTEGER NOT NULL,
		finished_at_ms INTEGER NOT NULL,
		params_json TEXT NOT NULL,
		log_json TEXT NOT NULL,
		outcomes_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ms);
	`
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Record stores run and prunes the oldest runs beyond the retention limit.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("history: run id is required")
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("history: encode params: %w", err)
	}
	logLines, err := json.Marshal(run.Log)
	if err != nil {
		return fmt.Errorf("history: encode log: %w", err)
	}
	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return fmt.Errorf("history: encode outcomes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at_ms, finished_at_ms, params_json, log_json, outcomes_json)
	VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		string(params), string(logLines), string(outcomes))
	if err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}

	if s.limit > 0 {
		_, err = tx.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at_ms DESC, rowid DESC LIMIT ?
		)`, s.limit)
		if err != nil {
			return fmt.Errorf("history: prune: %w", err)
		}
	}
	return tx.Commit()
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, started_at_ms, finished_at_ms, params_json, log_json, outcomes_json
	FROM runs ORDER BY started_at_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the run with id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, started_at_ms, finished_at_ms, params_json, log_json, outcomes_json
	FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Check runs a quick integrity check of the database.
func (s *Store) Check(ctx context.Context) error {
	issues, err := sqlite.VerifyIntegrity(ctx, s.db, "quick")
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("history: integrity check failed: %v", issues)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                          Run
		started, finished          int64
		params, logLines, outcomes string
	)
	if err := sc.Scan(&r.ID, &started, &finished, &params, &logLines, &outcomes); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	r.FinishedAt = time.UnixMilli(finished).UTC()
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return Run{}, fmt.Errorf("history: decode params of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(logLines), &r.Log); err != nil {
		return Run{}, fmt.Errorf("history: decode log of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(outcomes), &r.Outcomes); err != nil {
		return Run{}, fmt.Errorf("history: decode outcomes of %s: %w", r.ID, err)
	}
	return r, nil
}
