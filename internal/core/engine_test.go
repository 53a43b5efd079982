package core

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/xiansir-zhe/cloud-tool/internal/artifact"
	"github.com/xiansir-zhe/cloud-tool/internal/audit"
	"github.com/xiansir-zhe/cloud-tool/internal/db"
	"github.com/xiansir-zhe/cloud-tool/internal/logging"
)

func testOptions(t *testing.T) EngineOptions {
	t.Helper()
	dir := t.TempDir()
	return EngineOptions{
		StateDir:     filepath.Join(dir, "state"),
		ReportsDir:   filepath.Join(dir, "reports"),
		LogLevel:     "error",
		GateUsername: "admin",
		GateSeed:     "seed-secret",
		Redactor:     logging.NewRedactingWriter(io.Discard),
	}
}

func TestOpenCreatesState(t *testing.T) {
	opts := testOptions(t)

	engine, err := Open(opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer engine.Close()

	for _, name := range []string{db.StateDBFile, db.AuditDBFile} {
		if _, err := os.Stat(filepath.Join(opts.StateDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if engine.Artifacts.Root() != opts.ReportsDir {
		t.Errorf("artifact root = %q", engine.Artifacts.Root())
	}
	if !engine.Gate.Authorize("seed-secret") {
		t.Error("seeded secret should authorize")
	}
	if engine.Gate.Authorize("wrong") {
		t.Error("wrong secret should be denied")
	}
}

func TestReopenKeepsRotatedSecret(t *testing.T) {
	opts := testOptions(t)

	engine, err := Open(opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := engine.Gate.Rotate("seed-secret", "rotated-secret"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	engine.Close()

	// The seed must not overwrite an existing principal.
	engine2, err := Open(opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer engine2.Close()

	if engine2.Gate.Authorize("seed-secret") {
		t.Error("seed secret should no longer authorize")
	}
	if !engine2.Gate.Authorize("rotated-secret") {
		t.Error("rotated secret should authorize")
	}

	valid, count, err := audit.Verify(engine2.AuditDB)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid || count == 0 {
		t.Errorf("audit chain valid=%v count=%d", valid, count)
	}
}

func TestOpenRequiresDirectories(t *testing.T) {
	if _, err := Open(EngineOptions{StateDir: t.TempDir()}); err == nil {
		t.Error("expected error without reports dir")
	}
}

func TestEngineArtifacts(t *testing.T) {
	engine, err := Open(testOptions(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer engine.Close()

	rec, err := engine.Artifacts.Create(artifact.CreateInput{
		RunID:   "run-1",
		Name:    "results.csv",
		Kind:    artifact.KindResults,
		Content: []byte("a,b\n"),
	})
	if err != nil {
		t.Fatalf("create artifact: %v", err)
	}
	if rec.ByteSize != 4 {
		t.Errorf("byte size = %d", rec.ByteSize)
	}
}

func TestEngineClose(t *testing.T) {
	engine, err := Open(testOptions(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("close error: %v", err)
	}
}
