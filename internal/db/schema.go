// Package db provides SQLite database management for the cvmbatch state directory.
// Two databases live there: cvmbatch.db (gate users) and cvmbatch-audit.db (append-only audit log).
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const (
	StateDBFile = "cvmbatch.db"
	AuditDBFile = "cvmbatch-audit.db"
)

// StateSchema defines the tables of the state database.
const StateSchema = `
PRAGMA journal_mode=WAL;

-- Access gate principals. secret_hash is an encoded argon2id hash.
CREATE TABLE IF NOT EXISTS gate_users (
    username        TEXT PRIMARY KEY,
    secret_hash     TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);
`

// AuditSchema defines the append-only audit log table.
const AuditSchema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS audit_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp       TEXT NOT NULL,
    run_id          TEXT DEFAULT '',
    operator        TEXT NOT NULL DEFAULT 'local',
    event_type      TEXT NOT NULL,
    detail          TEXT DEFAULT '{}',
    record_hash     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_log(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_log(run_id);
`

// OpenStateDB opens or creates the state database in dir.
func OpenStateDB(dir string) (*sql.DB, error) {
	dbPath := filepath.Join(dir, StateDBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	if _, err := db.Exec(StateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state schema: %w", err)
	}

	return db, nil
}

// OpenAuditDB opens or creates the append-only audit database in dir.
func OpenAuditDB(dir string) (*sql.DB, error) {
	dbPath := filepath.Join(dir, AuditDBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}

	if _, err := db.Exec(AuditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}

	return db, nil
}

// EnsureStateDir creates the state directory and the reports directory.
func EnsureStateDir(stateDir, reportsDir string) error {
	for _, d := range []string{stateDir, reportsDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return nil
}
