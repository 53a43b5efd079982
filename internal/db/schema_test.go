package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenStateDB(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenStateDB(dir)
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer db.Close()

	var name string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='gate_users'",
	).Scan(&name)
	if err != nil {
		t.Errorf("Table gate_users not found: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, StateDBFile)); err != nil {
		t.Errorf("DB file not created: %v", err)
	}
}

func TestOpenStateDBIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		db, err := OpenStateDB(dir)
		if err != nil {
			t.Fatalf("OpenStateDB attempt %d: %v", i+1, err)
		}
		db.Close()
	}
}

func TestOpenAuditDB(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenAuditDB(dir)
	if err != nil {
		t.Fatalf("OpenAuditDB: %v", err)
	}
	defer db.Close()

	var name string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='audit_log'",
	).Scan(&name)
	if err != nil {
		t.Error("audit_log table not found")
	}
}

func TestEnsureStateDir(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "state")
	reportsDir := filepath.Join(dir, "state", "reports")

	if err := EnsureStateDir(stateDir, reportsDir); err != nil {
		t.Fatalf("EnsureStateDir: %v", err)
	}

	for _, d := range []string{stateDir, reportsDir} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("Expected directory %s: %v", d, err)
		}
	}
}
