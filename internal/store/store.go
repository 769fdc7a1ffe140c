// Package store persists evaluation runs in SQLite so reports can be
// re-rendered and compared after the fact.
package store

import "envjudge/internal/evaluate"

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (.envjudge) if needed.
const DefaultDBPath = ".envjudge/envjudge.db"

// Run is one persisted evaluation run header.
type Run struct {
	ID         string
	Scorer     string
	StartedAt  string
	FinishedAt string
	ConfigJSON string // config snapshot for reproducibility
}

// DocumentRecord is one document outcome within a run.
type DocumentRecord struct {
	RunID  string
	Name   string
	Status string // evaluated | skipped | failed
	Reason string // empty for evaluated documents
}

// Store is the persistence facade the CLI and MCP surface use.
type Store interface {
	// SaveRun persists a finished report with its config snapshot.
	SaveRun(report *evaluate.Report, configJSON string) error
	// GetRun loads a report by run ID.
	GetRun(runID string) (*evaluate.Report, error)
	// LatestRun loads the most recently saved report.
	LatestRun() (*evaluate.Report, error)
	// ListRuns returns run headers, newest first.
	ListRuns() ([]*Run, error)
	Close() error
}
