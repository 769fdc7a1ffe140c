package store

// schemaVersion is the target schema version for this build.
const schemaVersion = 1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	scorer      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	config      TEXT,
	summary     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT NOT NULL REFERENCES runs(id),
	name    TEXT NOT NULL,
	status  TEXT NOT NULL,
	reason  TEXT,
	result  TEXT
);

CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);
`
