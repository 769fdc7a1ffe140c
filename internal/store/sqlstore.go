package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"envjudge/internal/evaluate"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .envjudge) if it does not exist.
// ":memory:" opens an in-memory database for tests.
func Open(path string) (*SqlStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
		return err
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", version, schemaVersion)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SqlStore) Close() error { return s.db.Close() }

// SaveRun persists a finished report with its config snapshot.
func (s *SqlStore) SaveRun(report *evaluate.Report, configJSON string) error {
	summary, err := json.Marshal(&report.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowUTC()
	_, err = tx.Exec(
		`INSERT INTO runs (id, scorer, started_at, finished_at, config, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Scorer, now, now, configJSON, string(summary))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	insertDoc, err := tx.Prepare(
		`INSERT INTO documents (run_id, name, status, reason, result) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertDoc.Close()

	for i := range report.Results {
		r := &report.Results[i]
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", r.Name, err)
		}
		if _, err := insertDoc.Exec(report.RunID, r.Name, "evaluated", "", string(payload)); err != nil {
			return fmt.Errorf("insert document %s: %w", r.Name, err)
		}
	}
	for _, sk := range report.Summary.Skipped {
		if _, err := insertDoc.Exec(report.RunID, sk.Name, "skipped", sk.Reason, nil); err != nil {
			return fmt.Errorf("insert skipped %s: %w", sk.Name, err)
		}
	}
	for _, f := range report.Summary.Failed {
		if _, err := insertDoc.Exec(report.RunID, f.Name, "failed", f.Reason, nil); err != nil {
			return fmt.Errorf("insert failed %s: %w", f.Name, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a report by run ID.
func (s *SqlStore) GetRun(runID string) (*evaluate.Report, error) {
	var scorer, summaryJSON string
	err := s.db.QueryRow(
		`SELECT scorer, summary FROM runs WHERE id = ?`, runID).Scan(&scorer, &summaryJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, err
	}

	report := &evaluate.Report{RunID: runID, Scorer: scorer}
	if err := json.Unmarshal([]byte(summaryJSON), &report.Summary); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT result FROM documents WHERE run_id = ? AND status = 'evaluated' ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var doc evaluate.DocumentResult
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return nil, fmt.Errorf("parse document result: %w", err)
		}
		report.Results = append(report.Results, doc)
	}
	return report, rows.Err()
}

// LatestRun loads the most recently saved report.
func (s *SqlStore) LatestRun() (*evaluate.Report, error) {
	var runID string
	err := s.db.QueryRow(
		`SELECT id FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no runs stored yet")
	}
	if err != nil {
		return nil, err
	}
	return s.GetRun(runID)
}

// ListRuns returns run headers, newest first.
func (s *SqlStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT id, scorer, started_at, finished_at, COALESCE(config, '') FROM runs ORDER BY finished_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.Scorer, &r.StartedAt, &r.FinishedAt, &r.ConfigJSON); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
