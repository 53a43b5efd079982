package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRun = "3f1c2a9e-0000-4000-8000-000000000001"

func TestStoreCreate(t *testing.T) {
	store := NewStore(t.TempDir())

	content := []byte("\xEF\xBB\xBFtarget_id,status\nins-1,Success\n")
	rec, err := store.Create(CreateInput{
		RunID:   testRun,
		Name:    "results.csv",
		Kind:    KindResults,
		Content: content,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	h := sha256.Sum256(content)
	expectedHash := hex.EncodeToString(h[:])
	if rec.ContentHash != expectedHash {
		t.Errorf("expected hash %s, got %s", expectedHash, rec.ContentHash)
	}
	if rec.ByteSize != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), rec.ByteSize)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), testRun, "results.csv"))
	if err != nil {
		t.Fatalf("artifact file not found: %v", err)
	}
	if string(data) != string(content) {
		t.Error("file content mismatch")
	}
}

func TestStoreListAndGet(t *testing.T) {
	store := NewStore(t.TempDir())

	store.Create(CreateInput{RunID: testRun, Name: "results.csv", Kind: KindResults, Content: []byte("a")})
	store.Create(CreateInput{RunID: testRun, Name: "statistics.csv", Kind: KindStatistics, Content: []byte("b")})

	recs, err := store.List(testRun)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(recs))
	}
	if recs[0].Name != "results.csv" || recs[1].Name != "statistics.csv" {
		t.Errorf("expected creation order, got %s, %s", recs[0].Name, recs[1].Name)
	}

	got, err := store.Get(testRun, "statistics.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != KindStatistics {
		t.Errorf("expected kind %s, got %s", KindStatistics, got.Kind)
	}

	if _, err := store.Get(testRun, "missing.csv"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.List("unknown-run"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown run, got %v", err)
	}
}

func TestStoreReplaceSameName(t *testing.T) {
	store := NewStore(t.TempDir())

	store.Create(CreateInput{RunID: testRun, Name: "results.csv", Kind: KindResults, Content: []byte("v1")})
	store.Create(CreateInput{RunID: testRun, Name: "results.csv", Kind: KindResults, Content: []byte("v2")})

	recs, _ := store.List(testRun)
	if len(recs) != 1 {
		t.Fatalf("expected 1 artifact after replace, got %d", len(recs))
	}
	data, err := store.ReadContent(&recs[0])
	if err != nil {
		t.Fatalf("ReadContent: %v", err)
	}
	if string(data) != "v2" {
		t.Errorf("expected replaced content, got %q", data)
	}
}

func TestStoreRejectsUnsafeNames(t *testing.T) {
	store := NewStore(t.TempDir())

	for _, name := range []string{"../escape.csv", "a/b.csv", "", ".hidden", ManifestFileName} {
		if _, err := store.Create(CreateInput{RunID: testRun, Name: name, Content: []byte("x")}); err == nil {
			t.Errorf("expected name %q to be rejected", name)
		}
	}
	if _, err := store.Create(CreateInput{RunID: "../x", Name: "ok.csv", Content: []byte("x")}); err == nil {
		t.Error("expected unsafe run id to be rejected")
	}
}

func TestReadContentIntegrity(t *testing.T) {
	store := NewStore(t.TempDir())

	rec, err := store.Create(CreateInput{RunID: testRun, Name: "results.csv", Kind: KindResults, Content: []byte("original")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	path, err := store.Path(testRun, "results.csv")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	os.WriteFile(path, []byte("tampered"), 0600)

	if _, err := store.ReadContent(rec); err == nil || !strings.Contains(err.Error(), "integrity") {
		t.Errorf("expected integrity error, got %v", err)
	}
}

func TestVerifyIntegrity(t *testing.T) {
	store := NewStore(t.TempDir())

	store.Create(CreateInput{RunID: testRun, Name: "good.csv", Kind: KindResults, Content: []byte("good")})
	store.Create(CreateInput{RunID: testRun, Name: "bad.csv", Kind: KindResults, Content: []byte("bad")})
	store.Create(CreateInput{RunID: testRun, Name: "gone.csv", Kind: KindResults, Content: []byte("gone")})

	os.WriteFile(filepath.Join(store.Root(), testRun, "bad.csv"), []byte("changed"), 0600)
	os.Remove(filepath.Join(store.Root(), testRun, "gone.csv"))

	valid, invalid, err := store.VerifyIntegrity(testRun)
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if valid != 1 {
		t.Errorf("expected 1 valid, got %d", valid)
	}
	if len(invalid) != 2 {
		t.Errorf("expected 2 invalid, got %v", invalid)
	}
}

func TestRuns(t *testing.T) {
	store := NewStore(t.TempDir())

	runs, err := store.Runs()
	if err != nil {
		t.Fatalf("Runs on empty root: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %v", runs)
	}

	store.Create(CreateInput{RunID: "run-a", Name: "results.csv", Content: []byte("a")})
	os.MkdirAll(filepath.Join(store.Root(), "not-a-run"), 0700)

	runs, _ = store.Runs()
	if len(runs) != 1 || runs[0] != "run-a" {
		t.Errorf("expected [run-a], got %v", runs)
	}
}
