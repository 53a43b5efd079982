// Package artifact stores the files a batch run produces. Each run gets its own
// directory under the reports root, with a manifest.json recording the SHA-256 of every file.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

// ManifestFileName is the per-run index file.
const ManifestFileName = "manifest.json"

// Kind categorizes stored artifacts.
type Kind string

const (
	KindResults     Kind = "results"
	KindStatistics  Kind = "statistics"
	KindMapping     Kind = "mapping"
	KindSpreadsheet Kind = "spreadsheet"
	KindResponseLog Kind = "response_log"
)

// Record describes one stored file.
type Record struct {
	RunID       string    `json:"run_id"`
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	ContentHash string    `json:"sha256"`
	ByteSize    int64     `json:"byte_size"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrNotFound is returned for unknown runs or artifact names.
var ErrNotFound = errors.New("artifact not found")

var safeName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store manages run directories under root.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root is the reports directory.
func (s *Store) Root() string { return s.root }

// CreateInput holds parameters for storing an artifact.
type CreateInput struct {
	RunID   string
	Name    string
	Kind    Kind
	Content []byte
}

// Create writes the content into the run directory and records it in the manifest.
// Writing the same name twice replaces the file and its manifest entry.
func (s *Store) Create(input CreateInput) (*Record, error) {
	if err := checkName(input.RunID); err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	if err := checkName(input.Name); err != nil {
		return nil, fmt.Errorf("artifact name: %w", err)
	}
	if input.Name == ManifestFileName {
		return nil, fmt.Errorf("artifact name %q is reserved", input.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, input.RunID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("ensuring run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, input.Name), input.Content, 0600); err != nil {
		return nil, fmt.Errorf("writing artifact file: %w", err)
	}

	h := sha256.Sum256(input.Content)
	rec := Record{
		RunID:       input.RunID,
		Name:        input.Name,
		Kind:        input.Kind,
		ContentHash: hex.EncodeToString(h[:]),
		ByteSize:    int64(len(input.Content)),
		CreatedAt:   time.Now().UTC(),
	}

	manifest, err := s.readManifest(input.RunID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	replaced := false
	for i := range manifest {
		if manifest[i].Name == rec.Name {
			manifest[i] = rec
			replaced = true
		}
	}
	if !replaced {
		manifest = append(manifest, rec)
	}
	if err := s.writeManifest(input.RunID, manifest); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateFromReader stores artifact content from a reader.
func (s *Store) CreateFromReader(input CreateInput, r io.Reader) (*Record, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading artifact content: %w", err)
	}
	input.Content = content
	return s.Create(input)
}

// List returns the artifacts of a run in creation order.
func (s *Store) List(runID string) ([]Record, error) {
	if err := checkName(runID); err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readManifest(runID)
}

// Get returns one artifact record.
func (s *Store) Get(runID, name string) (*Record, error) {
	recs, err := s.List(runID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].Name == name {
			return &recs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, runID, name)
}

// Path returns the on-disk path of a recorded artifact.
func (s *Store) Path(runID, name string) (string, error) {
	rec, err := s.Get(runID, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, rec.RunID, rec.Name), nil
}

// ReadContent returns the raw bytes of an artifact after checking its hash.
func (s *Store) ReadContent(rec *Record) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, rec.RunID, rec.Name))
	if err != nil {
		return nil, fmt.Errorf("reading artifact file: %w", err)
	}

	h := sha256.Sum256(data)
	if hex.EncodeToString(h[:]) != rec.ContentHash {
		return nil, fmt.Errorf("artifact integrity check failed: hash mismatch for %s/%s", rec.RunID, rec.Name)
	}
	return data, nil
}

// Runs lists run ids that have a manifest, newest directory first.
func (s *Store) Runs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	type run struct {
		id  string
		mod time.Time
	}
	var runs []run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(s.root, e.Name(), ManifestFileName))
		if err != nil {
			continue
		}
		runs = append(runs, run{id: e.Name(), mod: info.ModTime()})
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].mod.After(runs[j].mod) })

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}

// VerifyIntegrity checks that every file of a run matches its recorded hash.
func (s *Store) VerifyIntegrity(runID string) (valid int, invalid []string, err error) {
	recs, err := s.List(runID)
	if err != nil {
		return 0, nil, err
	}

	for _, rec := range recs {
		data, readErr := os.ReadFile(filepath.Join(s.root, rec.RunID, rec.Name))
		if readErr != nil {
			invalid = append(invalid, fmt.Sprintf("%s: file missing", rec.Name))
			continue
		}

		h := sha256.Sum256(data)
		if hex.EncodeToString(h[:]) != rec.ContentHash {
			invalid = append(invalid, fmt.Sprintf("%s: hash mismatch", rec.Name))
			continue
		}
		valid++
	}

	return valid, invalid, nil
}

func (s *Store) readManifest(runID string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Join(s.root, runID, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return recs, nil
}

func (s *Store) writeManifest(runID string, recs []Record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.root, runID, ManifestFileName), data, 0600)
}

// checkName rejects anything that could escape the run directory.
func checkName(name string) error {
	if !safeName.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}
