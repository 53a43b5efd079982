package audit

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupAuditDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "audit.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp     TEXT NOT NULL,
		run_id        TEXT DEFAULT '',
		operator      TEXT NOT NULL DEFAULT 'local',
		event_type    TEXT NOT NULL,
		detail        TEXT DEFAULT '{}',
		record_hash   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}

	return db
}

func TestLogAndVerify(t *testing.T) {
	db := setupAuditDB(t)
	defer db.Close()

	logger, err := NewLogger(db)
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	logger.Log(EventGateSeeded, "admin", "", map[string]string{"username": "admin"})
	logger.Log(EventGateAuthorized, "admin", "", nil)
	logger.Log(EventDestructiveRun, "admin", "run-1", map[string]any{"operation": "delete-image", "total": 3})

	valid, count, err := Verify(db)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid {
		t.Error("expected valid chain")
	}
	if count != 3 {
		t.Errorf("expected 3 records, got %d", count)
	}
}

func TestChainTamperDetection(t *testing.T) {
	db := setupAuditDB(t)
	defer db.Close()

	logger, err := NewLogger(db)
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	logger.Log(EventGateDenied, "admin", "", map[string]string{"a": "1"})
	logger.Log(EventGateDenied, "admin", "", map[string]string{"b": "2"})
	logger.Log(EventGateAuthorized, "admin", "", map[string]string{"c": "3"})

	// Turn a denial into an approval after the fact
	db.Exec("UPDATE audit_log SET event_type = 'gate_authorized' WHERE id = 2")

	valid, _, err := Verify(db)
	if err == nil {
		t.Error("expected error from tampered chain")
	}
	if valid {
		t.Error("expected invalid chain after tampering")
	}
}

func TestEmptyChainIsValid(t *testing.T) {
	db := setupAuditDB(t)
	defer db.Close()

	valid, count, err := Verify(db)
	if err != nil {
		t.Fatalf("verify empty: %v", err)
	}
	if !valid {
		t.Error("expected empty chain to be valid")
	}
	if count != 0 {
		t.Errorf("expected 0 records, got %d", count)
	}
}

func TestNewLoggerRecoversPreviousHash(t *testing.T) {
	db := setupAuditDB(t)
	defer db.Close()

	logger1, _ := NewLogger(db)
	logger1.Log(EventGateSeeded, "admin", "", map[string]string{"first": "event"})

	// Second logger simulates a restart
	logger2, _ := NewLogger(db)
	logger2.Log(EventGateAuthorized, "admin", "", map[string]string{"second": "event"})

	valid, count, err := Verify(db)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid {
		t.Error("expected valid chain after logger recovery")
	}
	if count != 2 {
		t.Errorf("expected 2 records, got %d", count)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	db := setupAuditDB(t)
	defer db.Close()

	logger, _ := NewLogger(db)
	logger.Log(EventGateSeeded, "admin", "", nil)
	logger.Log(EventGateDenied, "admin", "", nil)
	logger.Log(EventDestructiveRun, "admin", "run-9", nil)

	entries, err := Recent(db, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventType != EventDestructiveRun {
		t.Errorf("expected newest entry first, got %s", entries[0].EventType)
	}
	if entries[0].RunID != "run-9" {
		t.Errorf("expected run id run-9, got %q", entries[0].RunID)
	}
}
